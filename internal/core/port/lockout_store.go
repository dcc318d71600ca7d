package port

import (
	"context"
	"time"
)

// LockoutStatus is the read-side view of a user's lockout state.
type LockoutStatus struct {
	Locked      bool
	LockedUntil time.Time
	Remaining   time.Duration
}

// LockoutStore tracks consecutive failed password attempts per user. The
// increment and the lock set must be atomic at the storage layer so two
// concurrent failures cannot under-count toward the threshold.
type LockoutStore interface {
	// RecordFailure increments the counter and, when the threshold is
	// reached, arms the lock. lockedUntil is nil while below the threshold.
	RecordFailure(ctx context.Context, userID string, threshold int, lockFor time.Duration) (attempts int, lockedUntil *time.Time, err error)
	// RecordSuccess resets the counter and clears any lock.
	RecordSuccess(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (LockoutStatus, error)
}
