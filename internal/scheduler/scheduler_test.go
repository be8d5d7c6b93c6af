package scheduler

import (
	"context"
	"testing"

	"support_portal_backend/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func TestQueueTriggerTaskRoundTrip(t *testing.T) {
	payload := QueueTriggerPayload{
		StaffID:   uuid.NewString(),
		ProjectID: uuid.NewString(),
	}

	task, err := NewQueueTriggerTask(payload)
	if err != nil {
		t.Fatalf("NewQueueTriggerTask: %v", err)
	}
	if task.Type() != TaskQueueTrigger {
		t.Errorf("task type = %q, want %q", task.Type(), TaskQueueTrigger)
	}

	parsed, err := ParseQueueTriggerPayload(task)
	if err != nil {
		t.Fatalf("ParseQueueTriggerPayload: %v", err)
	}
	if parsed != payload {
		t.Errorf("parsed = %+v, want %+v", parsed, payload)
	}
}

func TestParseQueueTriggerPayloadInvalid(t *testing.T) {
	task := asynq.NewTask(TaskQueueTrigger, []byte("not json"))
	if _, err := ParseQueueTriggerPayload(task); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestRedisClientOpt(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		tlsInsecure bool
		wantAddr    string
		wantDB      int
		wantErr     bool
	}{
		{
			name:     "plain url",
			url:      "redis://localhost:6379",
			wantAddr: "localhost:6379",
		},
		{
			name:     "with db",
			url:      "redis://localhost:6379/3",
			wantAddr: "localhost:6379",
			wantDB:   3,
		},
		{
			name:    "malformed",
			url:     "://nope",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := redisClientOpt(tt.url, tt.tlsInsecure)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("redisClientOpt: %v", err)
			}
			if opt.Addr != tt.wantAddr {
				t.Errorf("Addr = %q, want %q", opt.Addr, tt.wantAddr)
			}
			if opt.DB != tt.wantDB {
				t.Errorf("DB = %d, want %d", opt.DB, tt.wantDB)
			}
		})
	}
}

func TestRedisClientOptTLSInsecure(t *testing.T) {
	opt, err := redisClientOpt("rediss://localhost:6380", true)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify TLS config")
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(&config.Config{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var c *Client
	if err := c.TriggerQueueForStaff(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Errorf("nil client trigger: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("nil client close: %v", err)
	}
}

func TestTriggerQueueForStaffEnqueues(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.Config{
		RedisURL:       "redis://" + mr.Addr(),
		AsynqQueueName: "chat",
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	staffID := uuid.New()
	projectID := uuid.New()
	if err := client.TriggerQueueForStaff(context.Background(), staffID, projectID); err != nil {
		t.Fatalf("TriggerQueueForStaff: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer func() {
		_ = inspector.Close()
	}()

	pending, err := inspector.ListPendingTasks("chat")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(pending))
	}
	if pending[0].Type != TaskQueueTrigger {
		t.Errorf("task type = %q, want %q", pending[0].Type, TaskQueueTrigger)
	}

	payload, err := ParseQueueTriggerPayload(asynq.NewTask(pending[0].Type, pending[0].Payload))
	if err != nil {
		t.Fatalf("ParseQueueTriggerPayload: %v", err)
	}
	if payload.StaffID != staffID.String() || payload.ProjectID != projectID.String() {
		t.Errorf("payload = %+v, want staff %s project %s", payload, staffID, projectID)
	}
}

type fakeAssigner struct {
	staffIDs   []uuid.UUID
	projectIDs []uuid.UUID
	err        error
}

func (f *fakeAssigner) AssignNextQueued(_ context.Context, staffID, projectID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.staffIDs = append(f.staffIDs, staffID)
	f.projectIDs = append(f.projectIDs, projectID)
	return nil
}

func TestHandleQueueTrigger(t *testing.T) {
	assigner := &fakeAssigner{}
	w := &Worker{assigner: assigner}

	staffID := uuid.New()
	projectID := uuid.New()
	task, err := NewQueueTriggerTask(QueueTriggerPayload{
		StaffID:   staffID.String(),
		ProjectID: projectID.String(),
	})
	if err != nil {
		t.Fatalf("NewQueueTriggerTask: %v", err)
	}

	if err := w.handleQueueTrigger(context.Background(), task); err != nil {
		t.Fatalf("handleQueueTrigger: %v", err)
	}
	if len(assigner.staffIDs) != 1 || assigner.staffIDs[0] != staffID {
		t.Errorf("staff ids = %v, want [%s]", assigner.staffIDs, staffID)
	}
	if assigner.projectIDs[0] != projectID {
		t.Errorf("project id = %s, want %s", assigner.projectIDs[0], projectID)
	}
}

func TestHandleQueueTriggerInvalidIDs(t *testing.T) {
	w := &Worker{assigner: &fakeAssigner{}}

	task, err := NewQueueTriggerTask(QueueTriggerPayload{
		StaffID:   "not-a-uuid",
		ProjectID: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("NewQueueTriggerTask: %v", err)
	}

	if err := w.handleQueueTrigger(context.Background(), task); err == nil {
		t.Fatal("expected error for invalid staff id")
	}
}
