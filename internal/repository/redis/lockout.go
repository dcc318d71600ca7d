package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arklim/auth-core/internal/core/port"
)

const (
	lockoutAttemptsPrefix = "authcore:lockout:attempts:"
	lockoutLockPrefix     = "authcore:lockout:lock:"
)

// LockoutStore keeps failed-attempt counters and lock flags in Redis. INCR
// and EXPIRE run in one pipeline so two concurrent failures both land on the
// counter; the lock key's TTL is the single source of truth for lock expiry.
type LockoutStore struct {
	client *goredis.Client
	now    func() time.Time
}

// NewLockoutStore constructs a LockoutStore.
func NewLockoutStore(client *goredis.Client) *LockoutStore {
	return &LockoutStore{client: client, now: time.Now}
}

// RecordFailure increments the per-user counter and arms the lock when the
// threshold is reached. The counter key carries the lock window as TTL so a
// stale streak cannot outlive one lock period.
func (s *LockoutStore) RecordFailure(ctx context.Context, userID string, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	attemptsKey := lockoutAttemptsPrefix + userID

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, attemptsKey)
	pipe.Expire(ctx, attemptsKey, lockFor)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, nil, fmt.Errorf("increment lockout counter: %w", err)
	}

	attempts := int(incr.Val())
	if attempts < threshold {
		return attempts, nil, nil
	}

	until := s.now().Add(lockFor).UTC()
	if err := s.client.Set(ctx, lockoutLockPrefix+userID, until.Format(time.RFC3339Nano), lockFor).Err(); err != nil {
		return attempts, nil, fmt.Errorf("arm lockout: %w", err)
	}

	return attempts, &until, nil
}

// RecordSuccess clears the counter and any lock for the user.
func (s *LockoutStore) RecordSuccess(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, lockoutAttemptsPrefix+userID, lockoutLockPrefix+userID).Err(); err != nil {
		return fmt.Errorf("clear lockout state: %w", err)
	}
	return nil
}

// Status reports whether the user is currently locked. Expiry is implicit:
// once the lock key's TTL lapses, the user is unlocked with no reset step.
func (s *LockoutStore) Status(ctx context.Context, userID string) (port.LockoutStatus, error) {
	lockKey := lockoutLockPrefix + userID

	raw, err := s.client.Get(ctx, lockKey).Result()
	if err == goredis.Nil {
		return port.LockoutStatus{}, nil
	}
	if err != nil {
		return port.LockoutStatus{}, fmt.Errorf("read lockout state: %w", err)
	}

	until, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// Unreadable lock value; fall back to the key TTL.
		ttl, ttlErr := s.client.PTTL(ctx, lockKey).Result()
		if ttlErr != nil || ttl <= 0 {
			return port.LockoutStatus{}, nil
		}
		until = s.now().Add(ttl).UTC()
	}

	remaining := until.Sub(s.now())
	if remaining <= 0 {
		return port.LockoutStatus{}, nil
	}

	return port.LockoutStatus{Locked: true, LockedUntil: until, Remaining: remaining}, nil
}

var _ port.LockoutStore = (*LockoutStore)(nil)
