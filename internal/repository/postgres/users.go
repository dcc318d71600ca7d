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

var userColumns = []string{
	"id",
	"email",
	"phone",
	"phone_verified",
	"password_hash",
	"is_guest",
	"status",
	"registered_at",
	"last_login",
}

// UserRepository implements port.UserRepository for PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID returns a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": userID})
}

// GetByIdentifier resolves a login identifier against email first, then
// phone. Email comparison carries no case distinction.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := r.getOne(ctx, squirrel.Expr("LOWER(email) = LOWER(?)", identifier))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return r.getOne(ctx, squirrel.Eq{"phone": identifier})
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string, changedAt time.Time) error {
	sql, args, err := r.builder.Update("auth.users").
		Set("password_hash", passwordHash).
		Set("password_changed_at", changedAt).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordLogin stamps last_login on success and stores the attempt for auditing.
func (r *UserRepository) RecordLogin(ctx context.Context, attempt domain.LoginAttempt) error {
	if attempt.Succeeded && attempt.UserID != nil {
		sql, args, err := r.builder.Update("auth.users").
			Set("last_login", attempt.CreatedAt).
			Where(squirrel.Eq{"id": *attempt.UserID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build stamp last login sql: %w", err)
		}
		if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("stamp last login: %w", err)
		}
	}

	sql, args, err := r.builder.Insert("auth.login_attempts").
		Columns("id", "user_id", "identifier", "succeeded", "ip", "user_agent", "created_at").
		Values(attempt.ID, attempt.UserID, attempt.Identifier, attempt.Succeeded, attempt.IP, attempt.UserAgent, attempt.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login attempt sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}

	return nil
}

func (r *UserRepository) getOne(ctx context.Context, pred squirrel.Sqlizer) (*domain.User, error) {
	sql, args, err := r.builder.
		Select(userColumns...).
		From("auth.users").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var user domain.User
	row := r.pool.QueryRow(ctx, sql, args...)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Phone,
		&user.PhoneVerified,
		&user.PasswordHash,
		&user.IsGuest,
		&user.Status,
		&user.RegisteredAt,
		&user.LastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
