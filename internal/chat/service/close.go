package service

import (
	"context"
	"time"

	"support_portal_backend/internal/chat/repository"
	"support_portal_backend/internal/wukongim"
	"support_portal_backend/platform/apperr"
	"support_portal_backend/platform/channelid"

	"github.com/google/uuid"
)

// CloseParams carries the context of a session close.
type CloseParams struct {
	// ClosedByStaffID identifies the staff member who closed the session, when
	// a human did. Nil for system-driven closes.
	ClosedByStaffID *uuid.UUID
	// ClosedByStaffName is the closer's display name for the closure message.
	ClosedByStaffName string
	// SendNotification controls whether the closure system message is posted.
	SendNotification bool
	// Reason is recorded in logs only.
	Reason string
}

// closeStep is one best-effort stage of the close protocol. A failure is
// logged and the remaining steps still run.
type closeStep struct {
	name string
	run  func(ctx context.Context) error
}

// CloseSession closes a visitor session.
//
// The relational close (session and visitor rows) is the only authoritative
// step: it must commit or the whole operation fails. Every messaging-bus side
// effect around it is a denormalized convenience that may legitimately lag or
// fail without corrupting the system, so each runs inside its own error
// boundary and never blocks the close.
func (s *Service) CloseSession(ctx context.Context, sessionID uuid.UUID, params CloseParams) (*repository.VisitorSession, error) {
	session, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == repository.SessionStatusClosed {
		return nil, apperr.Conflict("session is already closed")
	}

	reason := params.Reason
	if reason == "" {
		if params.ClosedByStaffID != nil {
			reason = "by staff"
		} else {
			reason = "unknown"
		}
	}

	log := s.log.With("session_id", session.ID, "visitor_id", session.VisitorID, "reason", reason)
	log.Info("closing session")

	channelID := channelid.BuildVisitorChannelID(session.VisitorID)

	// 1. Snapshot the channel's last message onto the session. Tolerated
	// failure: the session closes without the snapshot.
	if last, err := s.bus.GetChannelLastMessage(ctx, channelID, wukongim.ChannelTypeCustomerService); err != nil {
		s.log.ExternalCallFailed("wukongim", "get_channel_last_message", err)
	} else if last != nil {
		session.LastMessageSeq = &last.MessageSeq
		if last.Timestamp > 0 {
			at := time.Unix(last.Timestamp, 0).UTC()
			session.LastMessageAt = &at
		}
	}

	// 2. The authoritative close. All later steps depend on this committed
	// state, so a failure here aborts the whole operation.
	now := time.Now().UTC()
	duration := int64(now.Sub(session.CreatedAt).Seconds())
	session.Status = repository.SessionStatusClosed
	session.ClosedAt = &now
	session.DurationSeconds = &duration
	session.UpdatedAt = now

	if err := s.store.CloseSession(ctx, session); err != nil {
		return nil, err
	}

	log.Info("session closed", "duration_seconds", duration)

	var staffUID string
	if session.StaffID != nil {
		staffUID = wukongim.StaffUID(*session.StaffID)
	}

	steps := []closeStep{
		{"remove_staff_member", func(ctx context.Context) error {
			if session.StaffID == nil {
				return nil
			}
			removed, err := s.store.SoftDeleteChannelMember(ctx, channelID, *session.StaffID, wukongim.MemberTypeStaff)
			if err != nil {
				return err
			}
			if removed {
				log.Debug("removed staff channel member", "staff_id", *session.StaffID)
			}
			return s.bus.RemoveChannelSubscribers(ctx, channelID, wukongim.ChannelTypeCustomerService, []string{staffUID})
		}},
		{"send_closed_notification", func(ctx context.Context) error {
			if !params.SendNotification {
				return nil
			}
			fromUID := "system"
			var notifyUID, notifyName *string
			if params.ClosedByStaffID != nil {
				uid := wukongim.StaffUID(*params.ClosedByStaffID)
				fromUID = uid
				notifyUID = &uid
				if params.ClosedByStaffName != "" {
					name := params.ClosedByStaffName
					notifyName = &name
				}
			}
			return s.bus.SendSessionClosedMessage(ctx, fromUID, channelID, wukongim.ChannelTypeCustomerService, notifyUID, notifyName)
		}},
		{"delete_staff_conversation", func(ctx context.Context) error {
			if session.StaffID == nil {
				return nil
			}
			return s.bus.DeleteConversation(ctx, staffUID, channelID, wukongim.ChannelTypeCustomerService)
		}},
		{"trigger_queue", func(ctx context.Context) error {
			if session.StaffID == nil || s.trigger == nil {
				return nil
			}
			return s.trigger.TriggerQueueForStaff(ctx, *session.StaffID, session.ProjectID)
		}},
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			s.log.ExternalCallFailed("wukongim", step.name, err)
		}
	}

	return session, nil
}
