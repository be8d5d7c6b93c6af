// Package wukongim provides the HTTP client for the WuKongIM messaging bus.
// All operations are consumed by the chat core as best-effort collaborators:
// any error returned here is logged and tolerated by the caller, never
// surfaced past the component boundary.
package wukongim

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

	"github.com/google/uuid"
)

// Channel types used by this deployment.
const (
	// ChannelTypePerson is a two-party personal channel.
	ChannelTypePerson uint8 = 1
	// ChannelTypeProjectStaff is the broadcast channel for all staff in a project.
	ChannelTypeProjectStaff uint8 = 249
	// ChannelTypeCustomerService backs a visitor's support conversation.
	ChannelTypeCustomerService uint8 = 251
)

// Message types.
const (
	MessageTypeText               = 1
	MessageTypeStaffAssigned      = 1000
	MessageTypeSessionClosed      = 1001
	MessageTypeSessionTransferred = 1002
)

// Channel member types.
const (
	MemberTypeStaff   = "staff"
	MemberTypeVisitor = "visitor"
)

// StaffUID formats the messaging-bus uid for a staff member.
func StaffUID(staffID uuid.UUID) string {
	return staffID.String() + "-staff"
}

// MessagePayload is the decoded body of a bus message.
type MessagePayload struct {
	Type    int    `json:"type"`
	Content string `json:"content"`
}

// Message is a single message as returned by the bus.
type Message struct {
	MessageSeq  int64          `json:"message_seq"`
	ClientMsgNo string         `json:"client_msg_no"`
	Timestamp   int64          `json:"timestamp"`
	Payload     MessagePayload `json:"payload"`
}

// Client talks to the WuKongIM HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a messaging bus client, or nil when no URL is configured.
// A nil client is safe to call; every operation becomes a no-op error-free
// call so local development without a bus keeps working.
func NewClient(cfg config.WuKongIMConfig, log *logger.Logger) *Client {
	if cfg.GetWuKongIMURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetWuKongIMURL(), "/"),
		token:   cfg.GetWuKongIMToken(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log.WithComponent("wukongim"),
	}
}

// GetChannelLastMessage returns the newest message of a channel, or nil when
// the channel has no messages yet.
func (c *Client) GetChannelLastMessage(ctx context.Context, channelID string, channelType uint8) (*Message, error) {
	if c == nil {
		return nil, nil
	}

	body := map[string]interface{}{
		"channel_id":   channelID,
		"channel_type": channelType,
		"limit":        1,
	}

	var result struct {
		Messages []Message `json:"messages"`
	}
	if err := c.post(ctx, "/channel/messagesync", body, &result); err != nil {
		return nil, err
	}

	if len(result.Messages) == 0 {
		return nil, nil
	}
	return &result.Messages[0], nil
}

// GetMessageByClientMsgNo re-fetches a specific message by its caller-supplied
// correlation id. Returns nil without error when the message no longer exists.
func (c *Client) GetMessageByClientMsgNo(ctx context.Context, channelID string, channelType uint8, clientMsgNo string) (*Message, error) {
	if c == nil {
		return nil, nil
	}

	body := map[string]interface{}{
		"channel_id":     channelID,
		"channel_type":   channelType,
		"client_msg_nos": []string{clientMsgNo},
	}

	var result struct {
		Messages []Message `json:"messages"`
	}
	if err := c.post(ctx, "/messages", body, &result); err != nil {
		return nil, err
	}

	if len(result.Messages) == 0 {
		return nil, nil
	}
	return &result.Messages[0], nil
}

// AddChannelSubscribers subscribes the given uids to a channel.
func (c *Client) AddChannelSubscribers(ctx context.Context, channelID string, channelType uint8, subscribers []string) error {
	if c == nil || len(subscribers) == 0 {
		return nil
	}

	body := map[string]interface{}{
		"channel_id":   channelID,
		"channel_type": channelType,
		"subscribers":  subscribers,
	}
	return c.post(ctx, "/channel/subscriber_add", body, nil)
}

// RemoveChannelSubscribers removes the given uids from a channel.
func (c *Client) RemoveChannelSubscribers(ctx context.Context, channelID string, channelType uint8, subscribers []string) error {
	if c == nil || len(subscribers) == 0 {
		return nil
	}

	body := map[string]interface{}{
		"channel_id":   channelID,
		"channel_type": channelType,
		"subscribers":  subscribers,
	}
	return c.post(ctx, "/channel/subscriber_remove", body, nil)
}

// SendSessionClosedMessage posts the session-closed system message to a
// channel, carrying the closer's identity when known.
func (c *Client) SendSessionClosedMessage(ctx context.Context, fromUID, channelID string, channelType uint8, staffUID, staffName *string) error {
	payload := map[string]interface{}{
		"type": MessageTypeSessionClosed,
	}
	if staffUID != nil {
		payload["staff_uid"] = *staffUID
	}
	if staffName != nil {
		payload["staff_name"] = *staffName
	}
	return c.sendMessage(ctx, fromUID, channelID, channelType, payload)
}

// SendStaffAssignedMessage posts the staff-assigned system message to a channel.
func (c *Client) SendStaffAssignedMessage(ctx context.Context, fromUID, channelID string, channelType uint8, staffUID, staffName string) error {
	payload := map[string]interface{}{
		"type":       MessageTypeStaffAssigned,
		"staff_uid":  staffUID,
		"staff_name": staffName,
	}
	return c.sendMessage(ctx, fromUID, channelID, channelType, payload)
}

// DeleteConversation removes a uid's private conversation view of a channel.
// Cosmetic cleanup, not correctness-critical.
func (c *Client) DeleteConversation(ctx context.Context, uid, channelID string, channelType uint8) error {
	if c == nil {
		return nil
	}

	body := map[string]interface{}{
		"uid":          uid,
		"channel_id":   channelID,
		"channel_type": channelType,
	}
	return c.post(ctx, "/conversations/delete", body, nil)
}

func (c *Client) sendMessage(ctx context.Context, fromUID, channelID string, channelType uint8, payload map[string]interface{}) error {
	if c == nil {
		return nil
	}

	body := map[string]interface{}{
		"header":       map[string]int{"red_dot": 1},
		"from_uid":     fromUID,
		"channel_id":   channelID,
		"channel_type": channelType,
		"payload":      payload,
	}
	return c.post(ctx, "/message/send", body, nil)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal wukongim payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wukongim request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("wukongim returned %d on %s: %s", resp.StatusCode, path, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode wukongim response: %w", err)
		}
	}
	return nil
}
