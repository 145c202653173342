package repository

import (
	"context"
	"errors"
	"time"

	"authgate/backend/internal/user/domain"
)

// ErrDuplicateEmail is returned by Create when a user with the same email already exists.
var ErrDuplicateEmail = errors.New("user: email already exists")

// Repository defines persistence for users. Soft-deleted users are invisible to the getters.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create inserts the user. Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, u *domain.User) error
	// MarkEmailVerified sets email_verified_at if not already set. No-op if already verified.
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	// SoftDelete sets deleted_at and frees the email for a new registration.
	// Returns false when the user does not exist or is already deleted.
	SoftDelete(ctx context.Context, id string, at time.Time) (bool, error)
}
