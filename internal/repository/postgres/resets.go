package postgres

import (
	"context"
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

var resetColumns = []string{
	"id",
	"user_id",
	"email",
	"code_hash",
	"token_hash",
	"created_at",
	"expires_at",
	"token_expires_at",
	"verified",
	"used_at",
}

// ResetRepository implements port.ResetRepository for PostgreSQL. The
// in-memory variant in repository/memory backs single-node deployments; this
// one is for fleets that need reset state to survive restarts.
type ResetRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewResetRepository constructs a ResetRepository.
func NewResetRepository(pool *pgxpool.Pool) *ResetRepository {
	return &ResetRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a reset record.
func (r *ResetRepository) Create(ctx context.Context, record domain.PasswordResetRecord) error {
	sql, args, err := r.builder.Insert("auth.password_resets").
		Columns(resetColumns...).
		Values(
			record.ID,
			record.UserID,
			record.Email,
			record.CodeHash,
			record.TokenHash,
			record.CreatedAt,
			record.ExpiresAt,
			record.TokenExpiresAt,
			record.Verified,
			record.UsedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert reset sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert reset record: %w", err)
	}

	return nil
}

// GetLatestByEmail returns the newest record for the email, consumed or not.
func (r *ResetRepository) GetLatestByEmail(ctx context.Context, email string) (*domain.PasswordResetRecord, error) {
	sql, args, err := r.builder.
		Select(resetColumns...).
		From("auth.password_resets").
		Where(squirrel.Eq{"email": email}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select latest reset sql: %w", err)
	}

	return r.scanOne(r.pool.QueryRow(ctx, sql, args...))
}

// GetByTokenHash returns the record holding the given reset token hash.
func (r *ResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordResetRecord, error) {
	sql, args, err := r.builder.
		Select(resetColumns...).
		From("auth.password_resets").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reset by token sql: %w", err)
	}

	return r.scanOne(r.pool.QueryRow(ctx, sql, args...))
}

// MarkVerified attaches the reset token to a code-verified record.
func (r *ResetRepository) MarkVerified(ctx context.Context, id string, tokenHash string, tokenExpiresAt time.Time) error {
	sql, args, err := r.builder.Update("auth.password_resets").
		Set("verified", true).
		Set("token_hash", tokenHash).
		Set("token_expires_at", tokenExpiresAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark verified sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark reset verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// MarkUsed stamps consumption only when the record is still unused, so a
// token cannot be redeemed twice under concurrency.
func (r *ResetRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	sql, args, err := r.builder.Update("auth.password_resets").
		Set("used_at", usedAt).
		Where(squirrel.Eq{"id": id}).
		Where("used_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark used sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a record.
func (r *ResetRepository) Delete(ctx context.Context, id string) error {
	sql, args, err := r.builder.Delete("auth.password_resets").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete reset sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete reset record: %w", err)
	}

	return nil
}

// InvalidatePending removes every unconsumed record for the email and
// reports how many were dropped.
func (r *ResetRepository) InvalidatePending(ctx context.Context, email string) (int, error) {
	sql, args, err := r.builder.Delete("auth.password_resets").
		Where(squirrel.Eq{"email": email}).
		Where("used_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build invalidate pending sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("invalidate pending resets: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *ResetRepository) scanOne(row pgx.Row) (*domain.PasswordResetRecord, error) {
	var record domain.PasswordResetRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Email,
		&record.CodeHash,
		&record.TokenHash,
		&record.CreatedAt,
		&record.ExpiresAt,
		&record.TokenExpiresAt,
		&record.Verified,
		&record.UsedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan reset record: %w", err)
	}
	return &record, nil
}

var _ port.ResetRepository = (*ResetRepository)(nil)
