package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers unknown identifiers and wrong passwords
	// alike, so callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountSuspended indicates the account exists but may not authenticate.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrPhoneNotVerified indicates a phone login before verification.
	ErrPhoneNotVerified = errors.New("phone not verified")
	// ErrInvalidToken indicates a malformed or unrecognized token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the refresh token is past its lifetime.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenReuse indicates an already-rotated refresh token was presented;
	// the owning family has been revoked.
	ErrTokenReuse = errors.New("token reuse detected")
	// ErrSessionRevoked indicates the session was explicitly revoked.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrResetInvalid covers unknown, expired, or mismatched reset codes and
	// tokens; one error for all of them keeps responses non-enumerable.
	ErrResetInvalid = errors.New("invalid or expired reset credential")
	// ErrResetAlreadyUsed indicates the reset token was already consumed.
	ErrResetAlreadyUsed = errors.New("reset token already used")
	// ErrTooManyRequests indicates the reset-request throttle fired.
	ErrTooManyRequests = errors.New("too many requests")
)

// InvalidCredentialsError is a failed password attempt that also reports how
// many attempts remain before the lock arms. Matches ErrInvalidCredentials
// under errors.Is.
type InvalidCredentialsError struct {
	AttemptsRemaining int
}

func (e *InvalidCredentialsError) Error() string {
	return ErrInvalidCredentials.Error()
}

func (e *InvalidCredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// AccountLockedError reports an active lockout with its expiry so the
// transport layer can surface a retry hint.
type AccountLockedError struct {
	LockedUntil time.Time
	RetryAfter  time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.LockedUntil.Format(time.RFC3339))
}

// WeakPasswordError carries the individual policy violations.
type WeakPasswordError struct {
	Reasons []string
}

func (e *WeakPasswordError) Error() string {
	if len(e.Reasons) == 0 {
		return "password does not meet policy"
	}
	return "password does not meet policy: " + e.Reasons[0]
}
