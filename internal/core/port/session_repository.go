package port

import (
	"context"

	"github.com/arklim/auth-core/internal/core/domain"
)

// SessionRepository deals with refresh session storage. Sessions are never
// deleted; revocation is the only mutation after insert.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	// RevokeIfActive flips revoked on the session only when it is still live
	// and reports whether this call won the flip. The row count of the
	// conditional update is what serializes concurrent rotations.
	RevokeIfActive(ctx context.Context, sessionID string, reason string) (bool, error)
	RevokeFamily(ctx context.Context, familyID string, reason string) (int, error)
	RevokeAllForUser(ctx context.Context, userID string, reason string) (int, error)
	StoreEvent(ctx context.Context, event domain.SessionEvent) error
}
