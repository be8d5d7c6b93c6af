// Package repository provides database operations for the chat bounded
// context: visitors, visitor sessions, platforms, and channel members.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"support_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sessionNotFoundMsg = "session not found"
	visitorNotFoundMsg = "visitor not found"
)

// Repository provides database operations for the chat core.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new chat repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, project_id, visitor_id, staff_id, status, last_message_seq,
	last_message_at, closed_at, duration_seconds, created_at, updated_at`

func scanSession(row pgx.Row) (*VisitorSession, error) {
	var s VisitorSession
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.VisitorID, &s.StaffID, &s.Status, &s.LastMessageSeq,
		&s.LastMessageAt, &s.ClosedAt, &s.DurationSeconds, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const visitorColumns = `id, project_id, platform_id, name, service_status,
	is_last_message_from_visitor, is_last_message_from_ai, last_message_at,
	last_message_seq, last_client_msg_no, ai_fallback_retry_count, ai_disabled,
	created_at, updated_at, deleted_at`

func scanVisitor(row pgx.Row) (*Visitor, error) {
	var v Visitor
	err := row.Scan(
		&v.ID, &v.ProjectID, &v.PlatformID, &v.Name, &v.ServiceStatus,
		&v.IsLastMessageFromVisitor, &v.IsLastMessageFromAI, &v.LastMessageAt,
		&v.LastMessageSeq, &v.LastClientMsgNo, &v.AIFallbackRetryCount, &v.AIDisabled,
		&v.CreatedAt, &v.UpdatedAt, &v.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetSessionByID retrieves a visitor session by its ID.
func (r *Repository) GetSessionByID(ctx context.Context, id uuid.UUID) (*VisitorSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM visitor_sessions WHERE id = $1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(sessionNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// GetVisitorByID retrieves a visitor by its ID.
func (r *Repository) GetVisitorByID(ctx context.Context, id uuid.UUID) (*Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE id = $1 AND deleted_at IS NULL`

	v, err := scanVisitor(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(visitorNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get visitor: %w", err)
	}
	return v, nil
}

// CloseSession persists the authoritative close: the session row becomes
// closed with its timing snapshot, and the linked visitor's service status
// becomes closed, in a single transaction.
func (r *Repository) CloseSession(ctx context.Context, s *VisitorSession) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin close transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE visitor_sessions SET
			status = $2,
			last_message_seq = $3,
			last_message_at = $4,
			closed_at = $5,
			duration_seconds = $6,
			updated_at = $7
		WHERE id = $1`,
		s.ID, s.Status, s.LastMessageSeq, s.LastMessageAt, s.ClosedAt, s.DurationSeconds, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(sessionNotFoundMsg)
	}

	_, err = tx.Exec(ctx, `
		UPDATE visitors SET service_status = $2, updated_at = $3 WHERE id = $1`,
		s.VisitorID, ServiceStatusClosed, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to close visitor: %w", err)
	}

	return tx.Commit(ctx)
}

// SoftDeleteChannelMember marks the non-deleted channel member row as deleted.
// Returns true when a row was actually removed.
func (r *Repository) SoftDeleteChannelMember(ctx context.Context, channelID string, memberID uuid.UUID, memberType string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE channel_members SET deleted_at = $4
		WHERE channel_id = $1 AND member_id = $2 AND member_type = $3 AND deleted_at IS NULL`,
		channelID, memberID, memberType, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to soft delete channel member: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertChannelMember restores or creates the non-deleted channel member row,
// keeping at most one per (channel, member, member_type).
func (r *Repository) UpsertChannelMember(ctx context.Context, channelID string, memberID uuid.UUID, memberType string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE channel_members SET deleted_at = NULL
		WHERE channel_id = $1 AND member_id = $2 AND member_type = $3 AND deleted_at IS NOT NULL
		AND NOT EXISTS (
			SELECT 1 FROM channel_members
			WHERE channel_id = $1 AND member_id = $2 AND member_type = $3 AND deleted_at IS NULL
		)`,
		channelID, memberID, memberType,
	)
	if err != nil {
		return fmt.Errorf("failed to restore channel member: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO channel_members (id, channel_id, member_id, member_type, created_at)
		SELECT $1, $2, $3, $4, $5
		WHERE NOT EXISTS (
			SELECT 1 FROM channel_members
			WHERE channel_id = $2 AND member_id = $3 AND member_type = $4 AND deleted_at IS NULL
		)`,
		uuid.New(), channelID, memberID, memberType, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert channel member: %w", err)
	}
	return nil
}

// ListAssistPlatforms selects active assist-mode platforms with a positive
// fallback timeout, joined with their project's default team.
func (r *Repository) ListAssistPlatforms(ctx context.Context) ([]AssistPlatform, error) {
	query := `
		SELECT p.id, p.project_id, p.name, p.fallback_to_ai_timeout, p.agent_ids, pr.default_team_id
		FROM platforms p
		JOIN projects pr ON pr.id = p.project_id
		WHERE p.ai_mode = $1
		  AND p.fallback_to_ai_timeout > 0
		  AND p.is_active = TRUE
		  AND p.deleted_at IS NULL`

	rows, err := r.pool.Query(ctx, query, AIModeAssist)
	if err != nil {
		return nil, fmt.Errorf("failed to list assist platforms: %w", err)
	}
	defer rows.Close()

	var platforms []AssistPlatform
	for rows.Next() {
		var p AssistPlatform
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Name, &p.FallbackToAITimeout, &p.AgentIDs, &p.DefaultTeamID); err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

// ListFallbackCandidates selects visitors on a platform eligible for AI
// fallback: active, last message from the visitor and older than the cutoff,
// with a known correlation id, under the retry budget, not soft-deleted, and
// with AI not suppressed.
func (r *Repository) ListFallbackCandidates(ctx context.Context, platformID uuid.UUID, cutoff time.Time) ([]Visitor, error) {
	query := `SELECT ` + visitorColumns + `
		FROM visitors
		WHERE platform_id = $1
		  AND service_status = $2
		  AND is_last_message_from_visitor = TRUE
		  AND last_message_at < $3
		  AND last_client_msg_no IS NOT NULL
		  AND ai_fallback_retry_count < $4
		  AND deleted_at IS NULL
		  AND (ai_disabled IS NULL OR ai_disabled = FALSE)
		ORDER BY last_message_at`

	rows, err := r.pool.Query(ctx, query, platformID, ServiceStatusActive, cutoff, MaxAIFallbackRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to list fallback candidates: %w", err)
	}
	defer rows.Close()

	var visitors []Visitor
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visitor: %w", err)
		}
		visitors = append(visitors, *v)
	}
	return visitors, rows.Err()
}

// FindOpenStaffedSession returns the visitor's open session that has a staff
// member assigned, or nil when none exists.
func (r *Repository) FindOpenStaffedSession(ctx context.Context, visitorID uuid.UUID) (*VisitorSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM visitor_sessions
		WHERE visitor_id = $1 AND status = $2 AND staff_id IS NOT NULL
		ORDER BY created_at DESC LIMIT 1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, visitorID, SessionStatusOpen))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}
	return s, nil
}

// ExhaustFallbackRetries forces the visitor's retry count to the maximum,
// excluding it from future fallback ticks without operator intervention.
func (r *Repository) ExhaustFallbackRetries(ctx context.Context, visitorID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE visitors SET ai_fallback_retry_count = $2, updated_at = $3 WHERE id = $1`,
		visitorID, MaxAIFallbackRetries, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to exhaust fallback retries: %w", err)
	}
	return nil
}

// IncrementFallbackRetries bumps the retry count after a failed AI attempt,
// capped at the maximum.
func (r *Repository) IncrementFallbackRetries(ctx context.Context, visitorID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE visitors
		SET ai_fallback_retry_count = LEAST(ai_fallback_retry_count + 1, $2), updated_at = $3
		WHERE id = $1`,
		visitorID, MaxAIFallbackRetries, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to increment fallback retries: %w", err)
	}
	return nil
}

// MarkFallbackSucceeded records a successful AI takeover: the AI owns the last
// message, the new correlation id replaces the stalled one, and the retry
// count resets. This is the idempotence key that keeps the same stalled
// message from re-triggering fallback on the next tick.
func (r *Repository) MarkFallbackSucceeded(ctx context.Context, visitorID uuid.UUID, clientMsgNo string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE visitors SET
			is_last_message_from_ai = TRUE,
			is_last_message_from_visitor = FALSE,
			last_client_msg_no = $2,
			ai_fallback_retry_count = 0,
			updated_at = $3
		WHERE id = $1`,
		visitorID, clientMsgNo, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark fallback succeeded: %w", err)
	}
	return nil
}

// FindOldestQueuedVisitor returns the longest-waiting queued visitor on a
// project, or nil when the queue is empty.
func (r *Repository) FindOldestQueuedVisitor(ctx context.Context, projectID uuid.UUID) (*Visitor, error) {
	query := `SELECT ` + visitorColumns + `
		FROM visitors
		WHERE project_id = $1 AND service_status = $2 AND deleted_at IS NULL
		ORDER BY updated_at LIMIT 1`

	v, err := scanVisitor(r.pool.QueryRow(ctx, query, projectID, ServiceStatusQueued))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find queued visitor: %w", err)
	}
	return v, nil
}

// AssignVisitorToStaff opens a session for the visitor with the given staff
// member and moves the visitor to active, in a single transaction. It fails
// with a conflict when the visitor already has an open session.
func (r *Repository) AssignVisitorToStaff(ctx context.Context, visitorID, projectID, staffID uuid.UUID) (*VisitorSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin assign transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var existing int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM visitor_sessions WHERE visitor_id = $1 AND status = $2`,
		visitorID, SessionStatusOpen,
	).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("failed to check open sessions: %w", err)
	}
	if existing > 0 {
		return nil, apperr.Conflict("visitor already has an open session")
	}

	now := time.Now().UTC()
	session := &VisitorSession{
		ID:        uuid.New(),
		ProjectID: projectID,
		VisitorID: visitorID,
		StaffID:   &staffID,
		Status:    SessionStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO visitor_sessions (id, project_id, visitor_id, staff_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.ProjectID, session.VisitorID, session.StaffID, session.Status,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE visitors SET service_status = $2, updated_at = $3
		WHERE id = $1 AND service_status = $4`,
		visitorID, ServiceStatusActive, now, ServiceStatusQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to activate visitor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.Conflict("visitor is no longer queued")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return session, nil
}
