package domain

import "time"

// Session is one row of the append-only refresh session chain. The raw
// refresh secret is never stored; only its one-way hash. FamilyID links every
// session descended from one original login so that a detected theft burns
// the whole lineage.
type Session struct {
	ID               string
	UserID           string
	FamilyID         string
	RefreshTokenHash string
	DeviceLabel      *string
	IP               *string
	UserAgent        *string
	CreatedAt        time.Time
	LastSeen         time.Time
	RefreshExpiresAt time.Time
	RevokedAt        *time.Time
	RevokeReason     *string
}

// IsActive reports whether the session is neither revoked nor expired at the supplied moment.
func (s Session) IsActive(at time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.RefreshExpiresAt.After(at)
}

// SessionEvent captures lifecycle changes for sessions.
type SessionEvent struct {
	ID        string
	SessionID string
	Kind      string
	At        time.Time
	IP        *string
	UserAgent *string
	Details   map[string]any
}
