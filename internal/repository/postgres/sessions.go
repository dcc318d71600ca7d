package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/auth-core/internal/core/domain"
	"github.com/arklim/auth-core/internal/core/port"
	"github.com/arklim/auth-core/internal/repository"
)

var sessionColumns = []string{
	"id",
	"user_id",
	"family_id",
	"refresh_token_hash",
	"device_label",
	"ip",
	"user_agent",
	"created_at",
	"last_seen",
	"refresh_expires_at",
	"revoked_at",
	"revoke_reason",
}

// SessionRepository implements port.SessionRepository for PostgreSQL.
// Sessions form an append-only audit chain: rows are inserted once and only
// ever mutated to flip revocation.
type SessionRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a session record.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	sql, args, err := r.builder.Insert("auth.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.FamilyID,
			session.RefreshTokenHash,
			session.DeviceLabel,
			session.IP,
			session.UserAgent,
			session.CreatedAt,
			session.LastSeen,
			session.RefreshExpiresAt,
			session.RevokedAt,
			session.RevokeReason,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByID returns a session by identifier.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	row := r.pool.QueryRow(ctx, sql, args...)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// RevokeIfActive flips revoked_at only when the session is still live. The
// affected-row count is the serialization point for concurrent rotations:
// exactly one caller observes true for a given live session.
func (r *SessionRepository) RevokeIfActive(ctx context.Context, sessionID string, reason string) (bool, error) {
	sql, args, err := r.builder.Update("auth.sessions").
		Set("revoked_at", time.Now().UTC()).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"id": sessionID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build conditional revoke sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// RevokeFamily marks every live session in the family revoked. Idempotent;
// returns the number of sessions flipped by this call.
func (r *SessionRepository) RevokeFamily(ctx context.Context, familyID string, reason string) (int, error) {
	sql, args, err := r.builder.Update("auth.sessions").
		Set("revoked_at", time.Now().UTC()).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"family_id": familyID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke family sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke family: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// RevokeAllForUser marks every live session owned by the user revoked.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string, reason string) (int, error) {
	sql, args, err := r.builder.Update("auth.sessions").
		Set("revoked_at", time.Now().UTC()).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke all sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for user: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// StoreEvent persists a session event record.
func (r *SessionRepository) StoreEvent(ctx context.Context, event domain.SessionEvent) error {
	var details []byte
	if event.Details != nil {
		payload, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal session event details: %w", err)
		}
		details = payload
	}

	sql, args, err := r.builder.Insert("auth.session_events").
		Columns("id", "session_id", "kind", "at", "ip", "user_agent", "details").
		Values(event.ID, event.SessionID, event.Kind, event.At, event.IP, event.UserAgent, details).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session event sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.FamilyID,
		&session.RefreshTokenHash,
		&session.DeviceLabel,
		&session.IP,
		&session.UserAgent,
		&session.CreatedAt,
		&session.LastSeen,
		&session.RefreshExpiresAt,
		&session.RevokedAt,
		&session.RevokeReason,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
