package domain

import "time"

// Role names as stored on the user record.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User is the auth core's view of an account. The record is owned by the
// user store; this service reads it and, during enrollment, writes the
// TOTPSecret field.
type User struct {
	ID           string
	Email        string
	PasswordHash string  // argon2 encoded
	Role         string
	TOTPSecret   *string // base32 encoded; nil means second factor disabled
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TOTPEnabled reports whether a second factor is required at login. The
// presence of a secret is the sole source of truth for this.
func (u User) TOTPEnabled() bool {
	return u.TOTPSecret != nil && *u.TOTPSecret != ""
}
