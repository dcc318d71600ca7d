package domain

import "time"

// LoginSucceededEvent is published after a successful password login.
type LoginSucceededEvent struct {
	EventID   string
	UserID    string
	SessionID string
	FamilyID  string
	LoginAt   time.Time
	IPAddress *string
	UserAgent *string
	Metadata  map[string]any
}

// AccountLockedEvent is published when failed attempts cross the lockout threshold.
type AccountLockedEvent struct {
	EventID     string
	UserID      string
	Attempts    int
	LockedAt    time.Time
	LockedUntil time.Time
	IPAddress   *string
}

// TokenReuseDetectedEvent signals that an already-consumed refresh token was
// presented again and the owning family was revoked.
type TokenReuseDetectedEvent struct {
	EventID        string
	UserID         string
	SessionID      string
	FamilyID       string
	DetectedAt     time.Time
	SessionsBurned int
	IPAddress      *string
}

// SessionRevokedEvent describes an explicit session or family revocation.
type SessionRevokedEvent struct {
	EventID   string
	UserID    string
	SessionID string
	FamilyID  string
	RevokedAt time.Time
	Reason    string
	Metadata  map[string]any
}

// PasswordResetRequestedEvent carries the delivery payload for a reset code.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestID         string
	RequestedAt       time.Time
	MaskedDestination string
	ExpiresAt         time.Time
	IPAddress         *string
}

// PasswordChangedEvent is published after a reset completes.
type PasswordChangedEvent struct {
	EventID         string
	UserID          string
	ChangedAt       time.Time
	SessionsRevoked int
	Metadata        map[string]any
}
