package port

import (
	"context"
	"time"

	"github.com/arklim/auth-core/internal/core/domain"
)

// ResetRepository persists password reset records across both phases of the flow.
type ResetRepository interface {
	Create(ctx context.Context, record domain.PasswordResetRecord) error
	// GetLatestByEmail returns the newest record for the email regardless of
	// consumption, so callers can tell an already-used reset from a missing one.
	GetLatestByEmail(ctx context.Context, email string) (*domain.PasswordResetRecord, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordResetRecord, error)
	// MarkVerified stores the token hash minted after code verification.
	MarkVerified(ctx context.Context, id string, tokenHash string, tokenExpiresAt time.Time) error
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error
	Delete(ctx context.Context, id string) error
	// InvalidatePending removes unconsumed records for the email so only the
	// newest requested code is honored.
	InvalidatePending(ctx context.Context, email string) (int, error)
}
