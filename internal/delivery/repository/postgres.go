package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"authgate/backend/internal/db"
	"authgate/backend/internal/delivery/domain"
)

const jobColumns = `id, name, payload, status, attempts, max_attempts, stalled_count, backoff_ms, run_at, heartbeat_at, last_error, created_at, finished_at`

// PostgresQueue stores jobs in the email_jobs table. Claims use FOR UPDATE SKIP LOCKED so several
// workers can share the table without handing out the same job twice.
type PostgresQueue struct {
	db db.DBTX
}

// NewPostgresQueue returns a queue that uses the given pool or tx for persistence.
func NewPostgresQueue(conn db.DBTX) *PostgresQueue {
	return &PostgresQueue{db: conn}
}

func (q *PostgresQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO email_jobs (id, name, payload, status, attempts, max_attempts, backoff_ms, run_at, last_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Name, job.Payload, string(job.Status), job.Attempts, job.MaxAttempts,
		job.Backoff.Milliseconds(), job.RunAt, job.LastError, job.CreatedAt,
	)
	return err
}

func (q *PostgresQueue) Claim(ctx context.Context, now time.Time) (*domain.Job, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE email_jobs SET status = 'active', attempts = attempts + 1, heartbeat_at = $1
		 WHERE id = (
		     SELECT id FROM email_jobs
		     WHERE status = 'waiting' AND run_at <= $1
		     ORDER BY run_at, id
		     FOR UPDATE SKIP LOCKED
		     LIMIT 1
		 )
		 RETURNING `+jobColumns, now)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (q *PostgresQueue) Heartbeat(ctx context.Context, id string, now time.Time) error {
	return q.execActive(ctx, `UPDATE email_jobs SET heartbeat_at = $2 WHERE id = $1 AND status = 'active'`, id, now)
}

func (q *PostgresQueue) Complete(ctx context.Context, id string, now time.Time) error {
	return q.execActive(ctx,
		`UPDATE email_jobs SET status = 'completed', finished_at = $2, heartbeat_at = NULL WHERE id = $1 AND status = 'active'`,
		id, now)
}

func (q *PostgresQueue) Retry(ctx context.Context, id string, runAt time.Time, lastErr string) error {
	return q.execActive(ctx,
		`UPDATE email_jobs SET status = 'waiting', run_at = $2, last_error = $3, heartbeat_at = NULL WHERE id = $1 AND status = 'active'`,
		id, runAt, lastErr)
}

func (q *PostgresQueue) Fail(ctx context.Context, id, lastErr string, now time.Time) error {
	return q.execActive(ctx,
		`UPDATE email_jobs SET status = 'failed', last_error = $2, finished_at = $3, heartbeat_at = NULL WHERE id = $1 AND status = 'active'`,
		id, lastErr, now)
}

func (q *PostgresQueue) Release(ctx context.Context, id string, now time.Time) error {
	return q.execActive(ctx,
		`UPDATE email_jobs SET status = 'waiting', run_at = $2, attempts = GREATEST(attempts - 1, 0), heartbeat_at = NULL
		 WHERE id = $1 AND status = 'active'`,
		id, now)
}

func (q *PostgresQueue) ReclaimStalled(ctx context.Context, heartbeatBefore, now time.Time, maxStalled int) ([]*domain.Job, error) {
	rows, err := q.db.Query(ctx,
		`UPDATE email_jobs SET
		     stalled_count = stalled_count + 1,
		     attempts      = GREATEST(attempts - 1, 0),
		     heartbeat_at  = NULL,
		     last_error    = $3,
		     status        = CASE WHEN stalled_count + 1 > $4 THEN 'failed' ELSE 'waiting' END,
		     run_at        = CASE WHEN stalled_count + 1 > $4 THEN run_at ELSE $2 END,
		     finished_at   = CASE WHEN stalled_count + 1 > $4 THEN $2 ELSE NULL END
		 WHERE status = 'active' AND heartbeat_at < $1
		 RETURNING `+jobColumns, heartbeatBefore, now, domain.StalledReason, maxStalled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (q *PostgresQueue) PruneCompleted(ctx context.Context, finishedBefore time.Time, keep int) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM email_jobs
		 WHERE status = 'completed'
		   AND (finished_at < $1 OR id NOT IN (
		       SELECT id FROM email_jobs WHERE status = 'completed' ORDER BY finished_at DESC, id DESC LIMIT $2
		   ))`,
		finishedBefore, keep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *PostgresQueue) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	job, err := scanJob(q.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM email_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (q *PostgresQueue) execActive(ctx context.Context, sql string, args ...any) error {
	tag, err := q.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotActive
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		j         domain.Job
		status    string
		backoffMS int64
	)
	if err := row.Scan(&j.ID, &j.Name, &j.Payload, &status, &j.Attempts, &j.MaxAttempts, &j.StalledCount, &backoffMS,
		&j.RunAt, &j.HeartbeatAt, &j.LastError, &j.CreatedAt, &j.FinishedAt); err != nil {
		return nil, err
	}
	j.Status = domain.Status(status)
	j.Backoff = time.Duration(backoffMS) * time.Millisecond
	return &j, nil
}
