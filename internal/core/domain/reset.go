package domain

import "time"

// PasswordResetRecord tracks the two-phase reset flow: a short-lived numeric
// code delivered out-of-band, exchanged for a single-use opaque token. Code
// and token are stored hashed. TokenHash is empty until the code has been
// verified; once UsedAt is set the record can never authorize another change.
type PasswordResetRecord struct {
	ID             string
	UserID         string
	Email          string
	CodeHash       string
	TokenHash      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	TokenExpiresAt *time.Time
	Verified       bool
	UsedAt         *time.Time
}

// CodeExpired reports whether the numeric code is past its TTL.
func (r PasswordResetRecord) CodeExpired(at time.Time) bool {
	return at.After(r.ExpiresAt)
}

// TokenExpired reports whether the opaque token is past its own TTL.
func (r PasswordResetRecord) TokenExpired(at time.Time) bool {
	return r.TokenExpiresAt != nil && at.After(*r.TokenExpiresAt)
}

// Consumable reports whether the record can still authorize a password change.
func (r PasswordResetRecord) Consumable(at time.Time) bool {
	return r.Verified && r.UsedAt == nil && r.TokenHash != "" && !r.TokenExpired(at)
}
