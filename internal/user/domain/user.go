package domain

import (
	"errors"
	"strings"
	"time"
)

// Role is the authorization role carried in access tokens.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the core user entity.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	Role            Role
	EmailVerifiedAt *time.Time // nil until the verification link is confirmed
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NormalizeEmail lower-cases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailVerified reports whether the user confirmed their email.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// Deleted reports whether the account was soft-deleted.
func (u *User) Deleted() bool {
	return u.DeletedAt != nil
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if !u.Role.Valid() {
		return errors.New("role must be USER or ADMIN")
	}
	return nil
}
