package service

import (
	"context"

	"support_portal_backend/internal/wukongim"
	"support_portal_backend/platform/channelid"

	"github.com/google/uuid"
)

// AssignNextQueued assigns the longest-waiting queued visitor on the project
// to the given staff member. Invoked by the queue-trigger worker when a close
// frees a staff slot. A no-op when the queue is empty.
func (s *Service) AssignNextQueued(ctx context.Context, staffID, projectID uuid.UUID) error {
	visitor, err := s.store.FindOldestQueuedVisitor(ctx, projectID)
	if err != nil {
		return err
	}
	if visitor == nil {
		return nil
	}

	session, err := s.store.AssignVisitorToStaff(ctx, visitor.ID, projectID, staffID)
	if err != nil {
		return err
	}

	s.log.Info("assigned queued visitor",
		"visitor_id", visitor.ID, "staff_id", staffID, "session_id", session.ID)

	// Bus wiring is best-effort, same as the close protocol: the relational
	// assignment above is the source of truth.
	channelID := channelid.BuildVisitorChannelID(visitor.ID)
	staffUID := wukongim.StaffUID(staffID)

	if err := s.store.UpsertChannelMember(ctx, channelID, staffID, wukongim.MemberTypeStaff); err != nil {
		s.log.DatabaseError("upsert_channel_member", err)
	}
	if err := s.bus.AddChannelSubscribers(ctx, channelID, wukongim.ChannelTypeCustomerService, []string{staffUID}); err != nil {
		s.log.ExternalCallFailed("wukongim", "add_channel_subscribers", err)
	}
	if err := s.bus.SendStaffAssignedMessage(ctx, "system", channelID, wukongim.ChannelTypeCustomerService, staffUID, ""); err != nil {
		s.log.ExternalCallFailed("wukongim", "send_staff_assigned_message", err)
	}

	return nil
}
