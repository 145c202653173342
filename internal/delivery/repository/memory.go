package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"authgate/backend/internal/delivery/domain"
)

// MemoryQueue is an in-memory Queue for tests and DB-less development. Jobs do not survive a restart.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

// NewMemoryQueue returns an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[string]*domain.Job)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.ID] = job.Clone()
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var next *domain.Job
	for _, j := range q.jobs {
		if j.Status != domain.StatusWaiting || j.RunAt.After(now) {
			continue
		}
		if next == nil || j.RunAt.Before(next.RunAt) || (j.RunAt.Equal(next.RunAt) && j.ID < next.ID) {
			next = j
		}
	}
	if next == nil {
		return nil, nil
	}
	hb := now
	next.Status = domain.StatusActive
	next.Attempts++
	next.HeartbeatAt = &hb
	return next.Clone(), nil
}

func (q *MemoryQueue) Heartbeat(_ context.Context, id string, now time.Time) error {
	return q.updateActive(id, func(j *domain.Job) {
		hb := now
		j.HeartbeatAt = &hb
	})
}

func (q *MemoryQueue) Complete(_ context.Context, id string, now time.Time) error {
	return q.updateActive(id, func(j *domain.Job) {
		fin := now
		j.Status = domain.StatusCompleted
		j.FinishedAt = &fin
		j.HeartbeatAt = nil
	})
}

func (q *MemoryQueue) Retry(_ context.Context, id string, runAt time.Time, lastErr string) error {
	return q.updateActive(id, func(j *domain.Job) {
		j.Status = domain.StatusWaiting
		j.RunAt = runAt
		j.LastError = lastErr
		j.HeartbeatAt = nil
	})
}

func (q *MemoryQueue) Fail(_ context.Context, id, lastErr string, now time.Time) error {
	return q.updateActive(id, func(j *domain.Job) {
		fin := now
		j.Status = domain.StatusFailed
		j.LastError = lastErr
		j.FinishedAt = &fin
		j.HeartbeatAt = nil
	})
}

func (q *MemoryQueue) Release(_ context.Context, id string, now time.Time) error {
	return q.updateActive(id, func(j *domain.Job) {
		j.Status = domain.StatusWaiting
		j.RunAt = now
		j.HeartbeatAt = nil
		if j.Attempts > 0 {
			j.Attempts--
		}
	})
}

func (q *MemoryQueue) ReclaimStalled(_ context.Context, heartbeatBefore, now time.Time, maxStalled int) ([]*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*domain.Job
	for _, j := range q.jobs {
		if j.Status != domain.StatusActive || j.HeartbeatAt == nil || !j.HeartbeatAt.Before(heartbeatBefore) {
			continue
		}
		j.StalledCount++
		if j.Attempts > 0 {
			j.Attempts--
		}
		j.HeartbeatAt = nil
		j.LastError = domain.StalledReason
		if j.StalledCount > maxStalled {
			fin := now
			j.Status = domain.StatusFailed
			j.FinishedAt = &fin
		} else {
			j.Status = domain.StatusWaiting
			j.RunAt = now
		}
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (q *MemoryQueue) PruneCompleted(_ context.Context, finishedBefore time.Time, keep int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var completed []*domain.Job
	for _, j := range q.jobs {
		if j.Status == domain.StatusCompleted {
			completed = append(completed, j)
		}
	}
	sort.Slice(completed, func(a, b int) bool {
		fa, fb := *completed[a].FinishedAt, *completed[b].FinishedAt
		if fa.Equal(fb) {
			return completed[a].ID > completed[b].ID
		}
		return fa.After(fb)
	})
	var removed int64
	for i, j := range completed {
		if i >= keep || j.FinishedAt.Before(finishedBefore) {
			delete(q.jobs, j.ID)
			removed++
		}
	}
	return removed, nil
}

func (q *MemoryQueue) GetByID(_ context.Context, id string) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, nil
	}
	return j.Clone(), nil
}

// Len returns the number of stored jobs in any status.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *MemoryQueue) updateActive(id string, fn func(*domain.Job)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok || j.Status != domain.StatusActive {
		return ErrJobNotActive
	}
	fn(j)
	return nil
}
