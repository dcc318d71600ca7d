package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arklim/auth-core/internal/core/port"
)

const throttlePrefix = "authcore:throttle:"

// ThrottleStore is a fixed-window counter in Redis. Coarser than a sliding
// window but a single round trip, which is enough to cap reset-code requests.
type ThrottleStore struct {
	client *goredis.Client
}

// NewThrottleStore constructs a ThrottleStore.
func NewThrottleStore(client *goredis.Client) *ThrottleStore {
	return &ThrottleStore{client: client}
}

// Allow consumes one slot in the key's current window.
func (s *ThrottleStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	redisKey := throttlePrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("increment throttle counter: %w", err)
	}

	if int(incr.Val()) <= limit {
		return true, 0, nil
	}

	ttl, err := s.client.PTTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}

	return false, ttl, nil
}

var _ port.ThrottleStore = (*ThrottleStore)(nil)
