package port

import (
	"context"
	"time"
)

// CodeSender delivers reset codes over an out-of-band channel (email or SMS).
// Callers invoke it fire-and-forget; delivery failures are logged, not surfaced.
type CodeSender interface {
	SendResetCode(ctx context.Context, email string, code string, expiresAt time.Time) error
}
