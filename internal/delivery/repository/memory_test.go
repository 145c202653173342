package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"authgate/backend/internal/delivery/domain"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newJob(t *testing.T, q *MemoryQueue, runAt time.Time) *domain.Job {
	t.Helper()
	j, err := domain.NewJob(domain.TaskEmailVerification, []byte(`{}`), domain.DefaultRetryPolicy, runAt)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if err := q.Enqueue(context.Background(), j); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return j
}

func TestMemoryQueue_ClaimOrderAndRunAt(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	later := newJob(t, q, t0.Add(time.Minute))
	first := newJob(t, q, t0)

	got, err := q.Claim(ctx, t0)
	if err != nil || got == nil {
		t.Fatalf("Claim: %v, %v", got, err)
	}
	if got.ID != first.ID || got.Status != domain.StatusActive || got.Attempts != 1 {
		t.Errorf("claimed %+v, want first job active with attempt 1", got)
	}
	if got, _ := q.Claim(ctx, t0); got != nil {
		t.Errorf("job scheduled in the future was claimed: %s", got.ID)
	}
	if got, _ := q.Claim(ctx, t0.Add(time.Minute)); got == nil || got.ID != later.ID {
		t.Errorf("expected later job once runnable, got %v", got)
	}
}

func TestMemoryQueue_RetryAndFail(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	j := newJob(t, q, t0)
	claimed, _ := q.Claim(ctx, t0)

	if err := q.Retry(ctx, claimed.ID, t0.Add(time.Minute), "smtp down"); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	stored, _ := q.GetByID(ctx, j.ID)
	if stored.Status != domain.StatusWaiting || stored.LastError != "smtp down" || !stored.RunAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("after retry = %+v", stored)
	}
	if err := q.Complete(ctx, j.ID, t0); !errors.Is(err, ErrJobNotActive) {
		t.Errorf("Complete on waiting job = %v, want ErrJobNotActive", err)
	}

	claimed, _ = q.Claim(ctx, t0.Add(time.Minute))
	if claimed.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", claimed.Attempts)
	}
	if err := q.Fail(ctx, claimed.ID, "gave up", t0.Add(time.Minute)); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if got, _ := q.Claim(ctx, t0.Add(time.Hour)); got != nil {
		t.Error("failed job must never be claimed again")
	}
}

func TestMemoryQueue_ReclaimStalled(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	j := newJob(t, q, t0)
	_, _ = q.Claim(ctx, t0)

	if got, _ := q.ReclaimStalled(ctx, t0, t0, 1); len(got) != 0 {
		t.Errorf("fresh heartbeat reclaimed: %v", got)
	}
	if err := q.Heartbeat(ctx, j.ID, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	// First stall: back to waiting, attempt not counted.
	at := t0.Add(10 * time.Minute)
	got, err := q.ReclaimStalled(ctx, at, at, 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("ReclaimStalled = %v, %v", got, err)
	}
	if got[0].Status != domain.StatusWaiting || got[0].StalledCount != 1 || got[0].Attempts != 0 {
		t.Errorf("requeued job = %+v", got[0])
	}
	if err := q.Complete(ctx, j.ID, at); !errors.Is(err, ErrJobNotActive) {
		t.Errorf("Complete after stall = %v, want ErrJobNotActive", err)
	}
	again, _ := q.Claim(ctx, at)
	if again == nil || again.ID != j.ID || again.Attempts != 1 {
		t.Fatalf("reclaimed job not claimable: %+v", again)
	}

	// Second stall exceeds the limit.
	at = at.Add(10 * time.Minute)
	got, err = q.ReclaimStalled(ctx, at, at, 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("ReclaimStalled = %v, %v", got, err)
	}
	if got[0].Status != domain.StatusFailed || got[0].LastError != domain.StalledReason || got[0].FinishedAt == nil {
		t.Errorf("exhausted job = %+v", got[0])
	}
	if next, _ := q.Claim(ctx, at.Add(time.Hour)); next != nil {
		t.Error("job failed by the stall detector was claimed again")
	}
}

func TestMemoryQueue_Release(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	j := newJob(t, q, t0)
	_, _ = q.Claim(ctx, t0)

	if err := q.Release(ctx, j.ID, t0.Add(time.Second)); err != nil {
		t.Fatalf("Release: %v", err)
	}
	got, _ := q.GetByID(ctx, j.ID)
	if got.Status != domain.StatusWaiting || got.Attempts != 0 || got.HeartbeatAt != nil {
		t.Errorf("released job = %+v", got)
	}
	if err := q.Release(ctx, j.ID, t0); !errors.Is(err, ErrJobNotActive) {
		t.Errorf("Release of waiting job = %v, want ErrJobNotActive", err)
	}
}

func TestMemoryQueue_PruneCompleted(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	for i := 0; i < 5; i++ {
		newJob(t, q, t0)
		j, _ := q.Claim(ctx, t0)
		if err := q.Complete(ctx, j.ID, t0.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
	waiting := newJob(t, q, t0.Add(time.Hour))

	// Older than t0+1h: one job; beyond the newest 3: one more.
	n, err := q.PruneCompleted(ctx, t0.Add(time.Hour), 3)
	if err != nil {
		t.Fatalf("PruneCompleted: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
	if q.Len() != 4 {
		t.Errorf("Len = %d, want 4", q.Len())
	}
	if got, _ := q.GetByID(ctx, waiting.ID); got == nil {
		t.Error("waiting job must not be pruned")
	}
}

func TestMemoryQueue_ConcurrentClaimsAreExclusive(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	newJob(t, q, t0)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		claims int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if j, _ := q.Claim(ctx, t0); j != nil {
				mu.Lock()
				claims++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if claims != 1 {
		t.Errorf("claims = %d, want exactly 1", claims)
	}
}
