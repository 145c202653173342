package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"authgate/backend/internal/user/domain"
)

// MemoryRepository is an in-memory Repository for tests and DB-less development.
type MemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.Deleted() {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	cp := *r.byID[id]
	return &cp, nil
}

// Create enforces email uniqueness under the lock, like the unique index in Postgres.
func (r *MemoryRepository) Create(_ context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	email := domain.NormalizeEmail(u.Email)
	if _, ok := r.byEmail[email]; ok {
		return ErrDuplicateEmail
	}
	cp := *u
	cp.Email = email
	r.byID[u.ID] = &cp
	r.byEmail[email] = u.ID
	return nil
}

func (r *MemoryRepository) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.Deleted() || u.EmailVerifiedAt != nil {
		return nil
	}
	u.EmailVerifiedAt = &at
	u.UpdatedAt = at
	return nil
}

// SoftDelete keeps the row by id but drops the email index entry, like the partial unique index in Postgres.
func (r *MemoryRepository) SoftDelete(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.Deleted() {
		return false, nil
	}
	u.DeletedAt = &at
	u.UpdatedAt = at
	if r.byEmail[u.Email] == id {
		delete(r.byEmail, u.Email)
	}
	return true, nil
}
