// Package transport defines the request and response shapes of the chat API.
package transport

import (
	"time"

	"support_portal_backend/internal/chat/repository"

	"github.com/google/uuid"
)

// CloseSessionRequest is the body of POST /chat/sessions/:id/close.
type CloseSessionRequest struct {
	ClosedByStaffID   *uuid.UUID `json:"closedByStaffId"`
	ClosedByStaffName string     `json:"closedByStaffName"`
	SendNotification  *bool      `json:"sendNotification"`
	Reason            string     `json:"reason" validate:"max=255"`
}

// SessionResponse is the JSON representation of a visitor session.
type SessionResponse struct {
	ID              uuid.UUID  `json:"id"`
	ProjectID       uuid.UUID  `json:"projectId"`
	VisitorID       uuid.UUID  `json:"visitorId"`
	StaffID         *uuid.UUID `json:"staffId"`
	Status          string     `json:"status"`
	LastMessageSeq  *int64     `json:"lastMessageSeq"`
	LastMessageAt   *time.Time `json:"lastMessageAt"`
	ClosedAt        *time.Time `json:"closedAt"`
	DurationSeconds *int64     `json:"durationSeconds"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// VisitorResponse is the JSON representation of a visitor's lifecycle fields.
type VisitorResponse struct {
	ID                       uuid.UUID  `json:"id"`
	ProjectID                uuid.UUID  `json:"projectId"`
	PlatformID               uuid.UUID  `json:"platformId"`
	Name                     string     `json:"name"`
	ServiceStatus            string     `json:"serviceStatus"`
	IsLastMessageFromVisitor bool       `json:"isLastMessageFromVisitor"`
	IsLastMessageFromAI      bool       `json:"isLastMessageFromAi"`
	LastMessageAt            *time.Time `json:"lastMessageAt"`
	AIFallbackRetryCount     int        `json:"aiFallbackRetryCount"`
	AIDisabled               *bool      `json:"aiDisabled"`
}

// NewSessionResponse maps a repository session to its API shape.
func NewSessionResponse(s *repository.VisitorSession) SessionResponse {
	return SessionResponse{
		ID:              s.ID,
		ProjectID:       s.ProjectID,
		VisitorID:       s.VisitorID,
		StaffID:         s.StaffID,
		Status:          s.Status,
		LastMessageSeq:  s.LastMessageSeq,
		LastMessageAt:   s.LastMessageAt,
		ClosedAt:        s.ClosedAt,
		DurationSeconds: s.DurationSeconds,
		CreatedAt:       s.CreatedAt,
	}
}

// NewVisitorResponse maps a repository visitor to its API shape.
func NewVisitorResponse(v *repository.Visitor) VisitorResponse {
	return VisitorResponse{
		ID:                       v.ID,
		ProjectID:                v.ProjectID,
		PlatformID:               v.PlatformID,
		Name:                     v.Name,
		ServiceStatus:            v.ServiceStatus,
		IsLastMessageFromVisitor: v.IsLastMessageFromVisitor,
		IsLastMessageFromAI:      v.IsLastMessageFromAI,
		LastMessageAt:            v.LastMessageAt,
		AIFallbackRetryCount:     v.AIFallbackRetryCount,
		AIDisabled:               v.AIDisabled,
	}
}
