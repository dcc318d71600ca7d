package port

import (
	"context"
	"time"
)

// ThrottleStore enforces a fixed-window request cap per key, used to bound
// how often reset codes can be requested for one identifier.
type ThrottleStore interface {
	// Allow consumes one slot and reports whether the caller is within the
	// window limit. retryAfter is meaningful only when allow is false.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allow bool, retryAfter time.Duration, err error)
}
