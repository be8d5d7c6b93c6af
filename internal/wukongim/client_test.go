package wukongim

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"support_portal_backend/platform/config"
	"support_portal_backend/platform/logger"

	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&config.Config{WuKongIMURL: server.URL, WuKongIMToken: "secret"}, testLogger())
}

func TestStaffUID(t *testing.T) {
	id := uuid.MustParse("0c2e11f4-9d5f-4a07-9a28-0d4d51f8e7c1")
	if got, want := StaffUID(id), "0c2e11f4-9d5f-4a07-9a28-0d4d51f8e7c1-staff"; got != want {
		t.Errorf("StaffUID = %q, want %q", got, want)
	}
}

func TestNewClientWithoutURL(t *testing.T) {
	if c := NewClient(&config.Config{}, testLogger()); c != nil {
		t.Error("expected nil client without a bus url")
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	ctx := context.Background()

	if msg, err := c.GetChannelLastMessage(ctx, "ch", ChannelTypeCustomerService); msg != nil || err != nil {
		t.Errorf("GetChannelLastMessage = %v, %v", msg, err)
	}
	if msg, err := c.GetMessageByClientMsgNo(ctx, "ch", ChannelTypeCustomerService, "no"); msg != nil || err != nil {
		t.Errorf("GetMessageByClientMsgNo = %v, %v", msg, err)
	}
	if err := c.AddChannelSubscribers(ctx, "ch", ChannelTypeCustomerService, []string{"u"}); err != nil {
		t.Errorf("AddChannelSubscribers: %v", err)
	}
	if err := c.SendSessionClosedMessage(ctx, "system", "ch", ChannelTypeCustomerService, nil, nil); err != nil {
		t.Errorf("SendSessionClosedMessage: %v", err)
	}
	if err := c.DeleteConversation(ctx, "u", "ch", ChannelTypeCustomerService); err != nil {
		t.Errorf("DeleteConversation: %v", err)
	}
}

func TestGetChannelLastMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []Message{{
				MessageSeq:  7,
				ClientMsgNo: "abc",
				Timestamp:   1700000000,
				Payload:     MessagePayload{Type: MessageTypeText, Content: "hi"},
			}},
		})
	})

	msg, err := c.GetChannelLastMessage(context.Background(), "ch-vtr", ChannelTypeCustomerService)
	if err != nil {
		t.Fatalf("GetChannelLastMessage: %v", err)
	}
	if gotPath != "/channel/messagesync" {
		t.Errorf("path = %q, want /channel/messagesync", gotPath)
	}
	if gotBody["limit"] != float64(1) {
		t.Errorf("limit = %v, want 1", gotBody["limit"])
	}
	if msg == nil || msg.MessageSeq != 7 || msg.Payload.Content != "hi" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestGetChannelLastMessageEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"messages": []Message{}})
	})

	msg, err := c.GetChannelLastMessage(context.Background(), "ch", ChannelTypeCustomerService)
	if err != nil {
		t.Fatalf("GetChannelLastMessage: %v", err)
	}
	if msg != nil {
		t.Errorf("msg = %+v, want nil", msg)
	}
}

func TestGetMessageByClientMsgNoMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	msg, err := c.GetMessageByClientMsgNo(context.Background(), "ch", ChannelTypeCustomerService, "gone")
	if err != nil {
		t.Fatalf("GetMessageByClientMsgNo: %v", err)
	}
	if msg != nil {
		t.Errorf("msg = %+v, want nil for a vanished message", msg)
	}
}

func TestSendSessionClosedMessage(t *testing.T) {
	var gotBody map[string]interface{}
	var gotAuth string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	staffUID := "abc-staff"
	staffName := "Alice"
	err := c.SendSessionClosedMessage(context.Background(), staffUID, "ch-vtr", ChannelTypeCustomerService, &staffUID, &staffName)
	if err != nil {
		t.Fatalf("SendSessionClosedMessage: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q, want bearer token", gotAuth)
	}
	if gotBody["from_uid"] != staffUID {
		t.Errorf("from_uid = %v, want %q", gotBody["from_uid"], staffUID)
	}
	payload, _ := gotBody["payload"].(map[string]interface{})
	if payload["type"] != float64(MessageTypeSessionClosed) {
		t.Errorf("payload type = %v, want %d", payload["type"], MessageTypeSessionClosed)
	}
	if payload["staff_uid"] != staffUID || payload["staff_name"] != staffName {
		t.Errorf("payload identity = %v", payload)
	}
}

func TestSendSessionClosedMessageSystem(t *testing.T) {
	var gotBody map[string]interface{}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	if err := c.SendSessionClosedMessage(context.Background(), "system", "ch", ChannelTypeCustomerService, nil, nil); err != nil {
		t.Fatalf("SendSessionClosedMessage: %v", err)
	}

	payload, _ := gotBody["payload"].(map[string]interface{})
	if _, ok := payload["staff_uid"]; ok {
		t.Error("staff_uid present for a system close")
	}
}

func TestPostServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.AddChannelSubscribers(context.Background(), "ch", ChannelTypeCustomerService, []string{"u"})
	if err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestSubscriberOpsSkipEmptyList(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	if err := c.AddChannelSubscribers(context.Background(), "ch", ChannelTypeCustomerService, nil); err != nil {
		t.Fatalf("AddChannelSubscribers: %v", err)
	}
	if err := c.RemoveChannelSubscribers(context.Background(), "ch", ChannelTypeCustomerService, nil); err != nil {
		t.Fatalf("RemoveChannelSubscribers: %v", err)
	}
	if called {
		t.Error("bus called for an empty subscriber list")
	}
}
