package scheduler

import (
	"context"
	"fmt"

	"support_portal_backend/platform/config"
	"support_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// QueueAssigner assigns the next queued visitor to a freed staff slot.
// Implemented by the chat service.
type QueueAssigner interface {
	AssignNextQueued(ctx context.Context, staffID, projectID uuid.UUID) error
}

// Worker consumes background tasks from the redis-backed queue.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	assigner QueueAssigner
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, assigner QueueAssigner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		assigner: assigner,
		log:      log.WithComponent("scheduler_worker"),
	}

	mux.HandleFunc(TaskQueueTrigger, w.handleQueueTrigger)

	return w, nil
}

func (w *Worker) handleQueueTrigger(ctx context.Context, task *asynq.Task) error {
	if w.assigner == nil {
		return nil
	}

	payload, err := ParseQueueTriggerPayload(task)
	if err != nil {
		return err
	}

	staffID, err := uuid.Parse(payload.StaffID)
	if err != nil {
		return err
	}

	projectID, err := uuid.Parse(payload.ProjectID)
	if err != nil {
		return err
	}

	return w.assigner.AssignNextQueued(ctx, staffID, projectID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
