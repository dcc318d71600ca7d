package port

import (
	"context"
	"time"

	"github.com/arklim/auth-core/internal/core/domain"
)

// UserRepository exposes the identity-store operations the security core needs.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByIdentifier resolves a user by email (case-insensitive) or phone number.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	RecordLogin(ctx context.Context, attempt domain.LoginAttempt) error
}
