// Package service provides business logic for the chat bounded context: the
// session close protocol and staff queue assignment.
package service

import (
	"context"

	"support_portal_backend/internal/chat/repository"
	"support_portal_backend/internal/wukongim"
	"support_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the subset of repository operations the chat service depends on.
// Implemented by *repository.Repository.
type Store interface {
	GetSessionByID(ctx context.Context, id uuid.UUID) (*repository.VisitorSession, error)
	GetVisitorByID(ctx context.Context, id uuid.UUID) (*repository.Visitor, error)
	CloseSession(ctx context.Context, s *repository.VisitorSession) error
	SoftDeleteChannelMember(ctx context.Context, channelID string, memberID uuid.UUID, memberType string) (bool, error)
	UpsertChannelMember(ctx context.Context, channelID string, memberID uuid.UUID, memberType string) error
	FindOldestQueuedVisitor(ctx context.Context, projectID uuid.UUID) (*repository.Visitor, error)
	AssignVisitorToStaff(ctx context.Context, visitorID, projectID, staffID uuid.UUID) (*repository.VisitorSession, error)
}

// Bus is the messaging-bus surface the chat service consumes. All calls are
// best-effort from the service's point of view. Implemented by
// *wukongim.Client.
type Bus interface {
	GetChannelLastMessage(ctx context.Context, channelID string, channelType uint8) (*wukongim.Message, error)
	AddChannelSubscribers(ctx context.Context, channelID string, channelType uint8, subscribers []string) error
	RemoveChannelSubscribers(ctx context.Context, channelID string, channelType uint8, subscribers []string) error
	SendSessionClosedMessage(ctx context.Context, fromUID, channelID string, channelType uint8, staffUID, staffName *string) error
	SendStaffAssignedMessage(ctx context.Context, fromUID, channelID string, channelType uint8, staffUID, staffName string) error
	DeleteConversation(ctx context.Context, uid, channelID string, channelType uint8) error
}

// QueueTrigger signals that a staff slot has freed up. Implemented by
// *scheduler.Client.
type QueueTrigger interface {
	TriggerQueueForStaff(ctx context.Context, staffID, projectID uuid.UUID) error
}

// Service provides business logic for visitor sessions.
type Service struct {
	store   Store
	bus     Bus
	trigger QueueTrigger
	log     *logger.Logger
}

// New creates a new chat service. The queue trigger may be nil when no task
// queue is configured; step 6 of the close protocol is then skipped.
func New(store Store, bus Bus, trigger QueueTrigger, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		bus:     bus,
		trigger: trigger,
		log:     log,
	}
}

// GetSession returns a visitor session by ID.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*repository.VisitorSession, error) {
	return s.store.GetSessionByID(ctx, id)
}

// GetVisitor returns a visitor by ID.
func (s *Service) GetVisitor(ctx context.Context, id uuid.UUID) (*repository.Visitor, error) {
	return s.store.GetVisitorByID(ctx, id)
}
