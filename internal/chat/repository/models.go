package repository

import (
	"time"

	"github.com/google/uuid"
)

// Visitor service statuses.
const (
	ServiceStatusNew    = "new"
	ServiceStatusQueued = "queued"
	ServiceStatusActive = "active"
	ServiceStatusClosed = "closed"
)

// Visitor session statuses.
const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"
)

// Platform AI modes.
const (
	AIModeAuto   = "auto"
	AIModeAssist = "assist"
	AIModeOff    = "off"
)

// MaxAIFallbackRetries bounds ai_fallback_retry_count. A visitor whose count
// reaches this value is excluded from automatic fallback until a success or an
// external reset brings it back down.
const MaxAIFallbackRetries = 3

// Visitor represents one end user per platform.
type Visitor struct {
	ID                       uuid.UUID  `db:"id"`
	ProjectID                uuid.UUID  `db:"project_id"`
	PlatformID               uuid.UUID  `db:"platform_id"`
	Name                     string     `db:"name"`
	ServiceStatus            string     `db:"service_status"`
	IsLastMessageFromVisitor bool       `db:"is_last_message_from_visitor"`
	IsLastMessageFromAI      bool       `db:"is_last_message_from_ai"`
	LastMessageAt            *time.Time `db:"last_message_at"`
	LastMessageSeq           int64      `db:"last_message_seq"`
	LastClientMsgNo          *string    `db:"last_client_msg_no"`
	AIFallbackRetryCount     int        `db:"ai_fallback_retry_count"`
	AIDisabled               *bool      `db:"ai_disabled"`
	CreatedAt                time.Time  `db:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at"`
	DeletedAt                *time.Time `db:"deleted_at"`
}

// VisitorSession is one human-staffed engagement window. At most one open
// session exists per visitor.
type VisitorSession struct {
	ID              uuid.UUID  `db:"id"`
	ProjectID       uuid.UUID  `db:"project_id"`
	VisitorID       uuid.UUID  `db:"visitor_id"`
	StaffID         *uuid.UUID `db:"staff_id"`
	Status          string     `db:"status"`
	LastMessageSeq  *int64     `db:"last_message_seq"`
	LastMessageAt   *time.Time `db:"last_message_at"`
	ClosedAt        *time.Time `db:"closed_at"`
	DurationSeconds *int64     `db:"duration_seconds"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// AssistPlatform is the projection of a platform row the fallback scheduler
// works with, joined with its project's default team for AI routing.
type AssistPlatform struct {
	ID                  uuid.UUID   `db:"id"`
	ProjectID           uuid.UUID   `db:"project_id"`
	Name                string      `db:"name"`
	FallbackToAITimeout int         `db:"fallback_to_ai_timeout"`
	AgentIDs            []uuid.UUID `db:"agent_ids"`
	DefaultTeamID       *uuid.UUID  `db:"default_team_id"`
}

// ChannelMember maps a messaging-bus channel to a member. Soft-deleted on
// removal; at most one non-deleted row per (channel, member, member_type).
type ChannelMember struct {
	ID         uuid.UUID  `db:"id"`
	ChannelID  string     `db:"channel_id"`
	MemberID   uuid.UUID  `db:"member_id"`
	MemberType string     `db:"member_type"`
	CreatedAt  time.Time  `db:"created_at"`
	DeletedAt  *time.Time `db:"deleted_at"`
}
