package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"authgate/backend/internal/db"
	"authgate/backend/internal/session/domain"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a session repository that uses the given pool or tx for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, hash, created_at, updated_at FROM sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.Hash, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, user_id, hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, s.Hash, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// CompareAndSwapHash is a single conditional UPDATE, so two concurrent rotations
// of the same hash cannot both succeed.
func (r *PostgresRepository) CompareAndSwapHash(ctx context.Context, id, oldHash, newHash string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET hash = $3, updated_at = $4 WHERE id = $1 AND hash = $2`,
		id, oldHash, newHash, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the session row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteByUser removes all of the user's sessions in one statement.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `DELETE FROM sessions WHERE user_id = $1 RETURNING id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
