// Package fallback implements the periodic reconciliation loop that detects
// visitors stalled in human-handoff mode beyond their platform's timeout and
// autonomously converts the conversation to AI handling.
package fallback

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"support_portal_backend/internal/ai"
	"support_portal_backend/internal/chat/repository"
	"support_portal_backend/internal/wukongim"
	"support_portal_backend/platform/channelid"
	"support_portal_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultInterval = 60 * time.Second

// Store is the subset of repository operations the scheduler depends on.
// Implemented by *repository.Repository.
type Store interface {
	ListAssistPlatforms(ctx context.Context) ([]repository.AssistPlatform, error)
	ListFallbackCandidates(ctx context.Context, platformID uuid.UUID, cutoff time.Time) ([]repository.Visitor, error)
	FindOpenStaffedSession(ctx context.Context, visitorID uuid.UUID) (*repository.VisitorSession, error)
	ExhaustFallbackRetries(ctx context.Context, visitorID uuid.UUID) error
	IncrementFallbackRetries(ctx context.Context, visitorID uuid.UUID) error
	MarkFallbackSucceeded(ctx context.Context, visitorID uuid.UUID, clientMsgNo string) error
}

// BusReader re-fetches messages from the messaging bus by correlation id.
// Implemented by *wukongim.Client.
type BusReader interface {
	GetMessageByClientMsgNo(ctx context.Context, channelID string, channelType uint8, clientMsgNo string) (*wukongim.Message, error)
}

// Responder invokes the AI orchestration service and waits for the answer.
// Implemented by *ai.Client.
type Responder interface {
	HandleResponse(ctx context.Context, req ai.ResponseRequest) (*ai.Result, error)
}

// Scheduler runs the reconciliation loop. Exactly one instance runs per
// process, owned by the composition root. Ticks are strictly sequential: the
// loop waits for a full sweep to complete before sleeping.
type Scheduler struct {
	store    Store
	bus      BusReader
	ai       Responder
	log      *logger.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a fallback scheduler with the given tick interval
// (defaults to 60s when zero or negative).
func New(store Store, bus BusReader, responder Responder, log *logger.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		store:    store,
		bus:      bus,
		ai:       responder,
		log:      log.WithComponent("ai_fallback"),
		interval: interval,
	}
}

// Start launches the background loop. Idempotent: a second Start while the
// loop is running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(loopCtx, s.done)
	s.log.Info("started ai fallback loop", "interval", s.interval)
}

// Stop cancels the sleeping or in-flight loop and waits for it to exit,
// clearing state so a later Start works again. Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.log.Info("stopped ai fallback loop")
}

// run executes ticks until the context is cancelled. A tick error never
// terminates the loop; it is logged and the loop retries at the next interval.
func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("ai fallback tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick performs one reconciliation sweep over all assist-mode platforms.
// Platforms and their candidates are processed sequentially: each AI
// invocation is awaited and its result gates the candidate's write, avoiding
// concurrent writers to the same visitor row.
func (s *Scheduler) Tick(ctx context.Context) error {
	platforms, err := s.store.ListAssistPlatforms(ctx)
	if err != nil {
		return fmt.Errorf("list assist platforms: %w", err)
	}

	for _, platform := range platforms {
		cutoff := time.Now().UTC().Add(-time.Duration(platform.FallbackToAITimeout) * time.Second)

		candidates, err := s.store.ListFallbackCandidates(ctx, platform.ID, cutoff)
		if err != nil {
			s.log.Error("failed to list fallback candidates", "platform_id", platform.ID, "error", err)
			continue
		}

		for _, visitor := range candidates {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// One visitor's failure never aborts the sweep.
			if err := s.processCandidate(ctx, platform, visitor); err != nil {
				s.log.Error("failed to process fallback candidate",
					"visitor_id", visitor.ID, "platform", platform.Name, "error", err)
			}
		}
	}

	return nil
}

// processCandidate drives one visitor through the fallback decision.
func (s *Scheduler) processCandidate(ctx context.Context, platform repository.AssistPlatform, visitor repository.Visitor) error {
	s.log.Info("triggering ai fallback", "visitor_id", visitor.ID, "platform", platform.Name)

	channelID := channelid.BuildVisitorChannelID(visitor.ID)
	channelType := wukongim.ChannelTypeCustomerService

	msg, err := s.bus.GetMessageByClientMsgNo(ctx, channelID, channelType, *visitor.LastClientMsgNo)
	if err != nil {
		return fmt.Errorf("fetch message %s: %w", *visitor.LastClientMsgNo, err)
	}

	// A vanished or empty message is permanently unrecoverable for this
	// correlation id: stop retrying rather than raise.
	if msg == nil || msg.Payload.Content == "" {
		s.log.Warn("stalled message unrecoverable, exhausting retries",
			"visitor_id", visitor.ID, "client_msg_no", *visitor.LastClientMsgNo)
		return s.store.ExhaustFallbackRetries(ctx, visitor.ID)
	}

	// The AI speaks as the assigned staff member. With no open staffed
	// session there is no one to speak as; the design deliberately does not
	// fall back to a bare AI identity.
	session, err := s.store.FindOpenStaffedSession(ctx, visitor.ID)
	if err != nil {
		return fmt.Errorf("find open session: %w", err)
	}
	if session == nil {
		s.log.Warn("no staffed session for fallback, exhausting retries", "visitor_id", visitor.ID)
		return s.store.ExhaustFallbackRetries(ctx, visitor.ID)
	}

	teamID := "default"
	if platform.DefaultTeamID != nil {
		teamID = platform.DefaultTeamID.String()
	}

	var agentIDs []string
	for _, id := range platform.AgentIDs {
		agentIDs = append(agentIDs, id.String())
	}

	responseClientMsgNo := "ai_fallback_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	result, err := s.ai.HandleResponse(ctx, ai.ResponseRequest{
		ProjectID:   platform.ProjectID.String(),
		VisitorID:   visitor.ID.String(),
		Message:     msg.Payload.Content,
		ChannelID:   channelID,
		ChannelType: channelType,
		ClientMsgNo: responseClientMsgNo,
		FromUID:     wukongim.StaffUID(*session.StaffID),
		SessionID:   fmt.Sprintf("%s@%d", channelID, channelType),
		TeamID:      teamID,
		AgentIDs:    agentIDs,
	})
	if err != nil {
		s.log.Error("ai fallback call failed", "visitor_id", visitor.ID, "error", err)
		return s.store.IncrementFallbackRetries(ctx, visitor.ID)
	}

	if result == nil {
		s.log.Warn("ai fallback returned no result", "visitor_id", visitor.ID)
		return s.store.IncrementFallbackRetries(ctx, visitor.ID)
	}

	if err := s.store.MarkFallbackSucceeded(ctx, visitor.ID, responseClientMsgNo); err != nil {
		return err
	}

	s.log.Info("ai fallback completed", "visitor_id", visitor.ID)
	return nil
}
