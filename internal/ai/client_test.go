package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"support_portal_backend/platform/config"
	"support_portal_backend/platform/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&config.Config{AIServiceURL: server.URL, AIServiceAPIKey: "key"}, testLogger())
}

func TestNewClientWithoutURL(t *testing.T) {
	if c := NewClient(&config.Config{}, testLogger()); c != nil {
		t.Error("expected nil client without a service url")
	}
}

func TestNilClientReportsNoAnswer(t *testing.T) {
	var c *Client
	result, err := c.HandleResponse(context.Background(), ResponseRequest{})
	if result != nil || err != nil {
		t.Errorf("HandleResponse = %v, %v, want nil, nil", result, err)
	}
}

func TestHandleResponse(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq ResponseRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(Result{Content: "answer", AgentID: "agent-1"})
	})

	req := ResponseRequest{
		ProjectID:   "p1",
		VisitorID:   "v1",
		Message:     "help me",
		ChannelID:   "ch-vtr",
		ChannelType: 251,
		ClientMsgNo: "ai_fallback_abc",
		FromUID:     "staff-uid",
		SessionID:   "ch-vtr@251",
		TeamID:      "default",
	}

	result, err := c.HandleResponse(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleResponse: %v", err)
	}
	if gotPath != "/api/v1/responses" {
		t.Errorf("path = %q, want /api/v1/responses", gotPath)
	}
	if gotAuth != "Bearer key" {
		t.Errorf("auth = %q, want bearer token", gotAuth)
	}
	if !reflect.DeepEqual(gotReq, req) {
		t.Errorf("request = %+v, want %+v", gotReq, req)
	}
	if result == nil || result.Content != "answer" || result.AgentID != "agent-1" {
		t.Errorf("result = %+v", result)
	}
}

func TestHandleResponseNoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	result, err := c.HandleResponse(context.Background(), ResponseRequest{})
	if err != nil {
		t.Fatalf("HandleResponse: %v", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil on 204", result)
	}
}

func TestHandleResponseEmptyContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Result{Content: ""})
	})

	result, err := c.HandleResponse(context.Background(), ResponseRequest{})
	if err != nil {
		t.Fatalf("HandleResponse: %v", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil for an empty answer", result)
	}
}

func TestHandleResponseServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	if _, err := c.HandleResponse(context.Background(), ResponseRequest{}); err == nil {
		t.Fatal("expected error on 503")
	}
}
