package repository

import (
	"context"

	"authgate/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	// GetByID returns the session, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// CompareAndSwapHash replaces the session hash only if it still equals oldHash.
	// Returns false when the session is gone or the hash has already changed.
	CompareAndSwapHash(ctx context.Context, id, oldHash, newHash string) (bool, error)
	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	// DeleteByUser removes every session of the user and returns the removed ids.
	DeleteByUser(ctx context.Context, userID string) ([]string, error)
}
