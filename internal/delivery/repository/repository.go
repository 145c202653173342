package repository

import (
	"context"
	"errors"
	"time"

	"authgate/backend/internal/delivery/domain"
)

// ErrJobNotActive is returned when a state transition targets a job that is no longer active
// (e.g. the stall detector failed it while its handler was still running).
var ErrJobNotActive = errors.New("job is not active")

// Queue is the durable job store behind the delivery worker.
type Queue interface {
	// Enqueue persists a waiting job. The job must have ID set.
	Enqueue(ctx context.Context, job *domain.Job) error
	// Claim atomically moves the earliest waiting job with RunAt <= now to active, increments its
	// attempts and sets its heartbeat. Returns nil when nothing is runnable.
	Claim(ctx context.Context, now time.Time) (*domain.Job, error)
	// Heartbeat refreshes an active job's heartbeat.
	Heartbeat(ctx context.Context, id string, now time.Time) error
	Complete(ctx context.Context, id string, now time.Time) error
	// Retry moves an active job back to waiting, runnable at runAt, recording lastErr.
	Retry(ctx context.Context, id string, runAt time.Time, lastErr string) error
	// Fail marks an active job permanently failed. It is never claimed again.
	Fail(ctx context.Context, id, lastErr string, now time.Time) error
	// Release moves an active job back to waiting, runnable at now, without counting the attempt.
	// Used when the worker stops while a handler is running.
	Release(ctx context.Context, id string, now time.Time) error
	// ReclaimStalled recovers active jobs whose heartbeat is older than heartbeatBefore. Each one has
	// its stalled count incremented and its attempt uncounted. A job whose stalled count is still
	// within maxStalled goes back to waiting; the rest are failed. The returned jobs carry their new status.
	ReclaimStalled(ctx context.Context, heartbeatBefore, now time.Time, maxStalled int) ([]*domain.Job, error)
	// PruneCompleted deletes completed jobs finished before finishedBefore, then all but the newest keep.
	PruneCompleted(ctx context.Context, finishedBefore time.Time, keep int) (int64, error)
	// GetByID returns the job, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Job, error)
}
