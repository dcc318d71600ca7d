package domain

import "time"

// UserStatus enumerates possible account states.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDisabled  UserStatus = "disabled"
)

// User mirrors the subset of the identity store relevant to authentication.
// Guest accounts never carry a usable password hash.
type User struct {
	ID            string
	Email         string
	Phone         *string
	PhoneVerified bool
	PasswordHash  string
	IsGuest       bool
	Status        UserStatus
	RegisteredAt  time.Time
	LastLogin     *time.Time
}

// CanUsePassword reports whether password authentication is valid for this account.
func (u User) CanUsePassword() bool {
	return !u.IsGuest && u.PasswordHash != ""
}

// LoginAttempt records an authentication attempt for audit purposes.
type LoginAttempt struct {
	ID         string
	UserID     *string
	Identifier string
	Succeeded  bool
	IP         *string
	UserAgent  *string
	CreatedAt  time.Time
}
