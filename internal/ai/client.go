// Package ai provides the HTTP client for the AI orchestration service.
// The service runs the agent teams that answer on behalf of support staff;
// this client only covers the non-streaming response endpoint the fallback
// scheduler awaits.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"support_portal_backend/platform/config"
	"support_portal_backend/platform/logger"
)

// ResponseRequest carries everything the orchestration service needs to
// produce and deliver an answer into the visitor's channel.
type ResponseRequest struct {
	ProjectID   string   `json:"project_id"`
	VisitorID   string   `json:"visitor_id"`
	Message     string   `json:"message"`
	ChannelID   string   `json:"channel_id"`
	ChannelType uint8    `json:"channel_type"`
	ClientMsgNo string   `json:"client_msg_no"`
	FromUID     string   `json:"from_uid"`
	SessionID   string   `json:"session_id"`
	TeamID      string   `json:"team_id"`
	AgentIDs    []string `json:"agent_ids,omitempty"`
}

// Result is the orchestration service's answer. A nil Result without error
// means the team produced no answer.
type Result struct {
	Content string `json:"content"`
	AgentID string `json:"agent_id,omitempty"`
}

// Client talks to the AI orchestration service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates an AI orchestration client, or nil when no URL is
// configured. A nil client reports every invocation as "no answer".
func NewClient(cfg config.AIServiceConfig, log *logger.Logger) *Client {
	if cfg.GetAIServiceURL() == "" {
		return nil
	}

	timeout := cfg.GetAIRequestTimeout()
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetAIServiceURL(), "/"),
		apiKey:  cfg.GetAIServiceAPIKey(),
		http:    &http.Client{Timeout: timeout},
		log:     log.WithComponent("ai"),
	}
}

// HandleResponse invokes the orchestration service synchronously and waits for
// the team's answer. It returns (nil, nil) when the service completed but had
// nothing to say.
func (c *Client) HandleResponse(ctx context.Context, req ResponseRequest) (*Result, error) {
	if c == nil {
		return nil, nil
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/responses", bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ai request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ai service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ai response: %w", err)
	}

	if result.Content == "" {
		return nil, nil
	}
	return &result, nil
}
