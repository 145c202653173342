package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"authgate/backend/internal/delivery/domain"
	"authgate/backend/internal/delivery/repository"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

// recorder is an Observer that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) last(t EventType) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return Event{}, false
}

type fixture struct {
	queue  *repository.MemoryQueue
	client *Client
	worker *Worker
	rec    *recorder
	now    time.Time
}

func newFixture(t *testing.T, opts WorkerOptions) *fixture {
	t.Helper()
	f := &fixture{queue: repository.NewMemoryQueue(), rec: &recorder{}, now: t0}
	clock := func() time.Time { return f.now }
	f.client = NewClient(f.queue, domain.DefaultRetryPolicy, nil, f.rec)
	f.client.nowF = clock
	f.worker = NewWorker(f.queue, opts, nil, f.rec)
	f.worker.nowF = clock
	return f
}

func (f *fixture) enqueue(t *testing.T) string {
	t.Helper()
	id, err := f.client.Enqueue(context.Background(), domain.TaskEmailVerification, []byte(`{"email":"a@example.com","token":"tok"}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return id
}

func (f *fixture) job(t *testing.T, id string) *domain.Job {
	t.Helper()
	j, err := f.queue.GetByID(context.Background(), id)
	if err != nil || j == nil {
		t.Fatalf("GetByID(%s) = %v, %v", id, j, err)
	}
	return j
}

func TestWorker_CompletesJob(t *testing.T) {
	f := newFixture(t, WorkerOptions{})
	f.worker.Handle(domain.TaskEmailVerification, func(ctx context.Context, job *domain.Job, progress ProgressFunc) error {
		progress(50)
		return nil
	})
	id := f.enqueue(t)

	processed, err := f.worker.ProcessNext(context.Background())
	if err != nil || !processed {
		t.Fatalf("ProcessNext = %v, %v", processed, err)
	}
	if j := f.job(t, id); j.Status != domain.StatusCompleted || j.FinishedAt == nil || j.Attempts != 1 {
		t.Errorf("job = %+v", j)
	}
	want := []EventType{EventAdded, EventActive, EventProgress, EventCompleted}
	got := f.rec.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if ev, _ := f.rec.last(EventProgress); ev.Progress != 50 || ev.JobID != id {
		t.Errorf("progress event = %+v", ev)
	}
}

func TestWorker_NothingRunnable(t *testing.T) {
	f := newFixture(t, WorkerOptions{})
	processed, err := f.worker.ProcessNext(context.Background())
	if err != nil || processed {
		t.Errorf("ProcessNext on empty queue = %v, %v", processed, err)
	}
}

func TestWorker_RetriesWithBackoffThenFailsPermanently(t *testing.T) {
	f := newFixture(t, WorkerOptions{})
	sendErr := errors.New("smtp down")
	var calls int32
	f.worker.Handle(domain.TaskEmailVerification, func(context.Context, *domain.Job, ProgressFunc) error {
		atomic.AddInt32(&calls, 1)
		return sendErr
	})
	id := f.enqueue(t)
	ctx := context.Background()

	// Attempt 1 fails; next run is base (60s) later.
	if _, err := f.worker.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	ev, _ := f.rec.last(EventFailed)
	if !ev.WillRetry || !ev.RetryAt.Equal(t0.Add(time.Minute)) || ev.Attempt != 1 {
		t.Errorf("first failure event = %+v", ev)
	}
	if j := f.job(t, id); j.Status != domain.StatusWaiting || j.LastError != "smtp down" {
		t.Errorf("job after first failure = %+v", j)
	}

	// Not runnable before the backoff elapses.
	f.now = t0.Add(30 * time.Second)
	if processed, _ := f.worker.ProcessNext(ctx); processed {
		t.Fatal("job ran before its backoff elapsed")
	}

	// Attempt 2 fails; delay doubles to 120s.
	f.now = t0.Add(time.Minute)
	_, _ = f.worker.ProcessNext(ctx)
	ev, _ = f.rec.last(EventFailed)
	if !ev.WillRetry || !ev.RetryAt.Equal(f.now.Add(2*time.Minute)) || ev.Attempt != 2 {
		t.Errorf("second failure event = %+v", ev)
	}

	// Attempt 3 fails permanently.
	f.now = f.now.Add(2 * time.Minute)
	_, _ = f.worker.ProcessNext(ctx)
	ev, _ = f.rec.last(EventFailed)
	if ev.WillRetry || ev.Attempt != 3 {
		t.Errorf("final failure event = %+v", ev)
	}
	if !errors.Is(ev.Err, ErrTaskFailed) || !errors.Is(ev.Err, sendErr) {
		t.Errorf("final error = %v, want ErrTaskFailed wrapping send error", ev.Err)
	}
	if j := f.job(t, id); j.Status != domain.StatusFailed || j.Attempts != 3 {
		t.Errorf("job after final failure = %+v", j)
	}

	// Never resubmitted.
	f.now = f.now.Add(24 * time.Hour)
	if processed, _ := f.worker.ProcessNext(ctx); processed {
		t.Error("permanently failed job was claimed again")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("handler calls = %d, want 3", n)
	}
}

func TestWorker_UnknownJobNameFailsWithoutRetry(t *testing.T) {
	f := newFixture(t, WorkerOptions{})
	id, err := f.client.Enqueue(context.Background(), "password_reset", []byte(`{}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := f.worker.ProcessNext(context.Background()); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	ev, _ := f.rec.last(EventFailed)
	if ev.WillRetry || !errors.Is(ev.Err, ErrUnknownJob) {
		t.Errorf("failure event = %+v", ev)
	}
	if j := f.job(t, id); j.Status != domain.StatusFailed || j.Attempts != 1 {
		t.Errorf("job = %+v", j)
	}
}

func TestWorker_HandlerGetsDeadline(t *testing.T) {
	f := newFixture(t, WorkerOptions{JobTimeout: time.Minute})
	var hasDeadline bool
	f.worker.Handle(domain.TaskEmailVerification, func(ctx context.Context, _ *domain.Job, _ ProgressFunc) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	f.enqueue(t)
	_, _ = f.worker.ProcessNext(context.Background())
	if !hasDeadline {
		t.Error("handler context should carry the job timeout")
	}
}

func TestWorker_CheckStalledRequeuesThenDelivers(t *testing.T) {
	f := newFixture(t, WorkerOptions{StalledInterval: 5 * time.Minute})
	var delivered int32
	f.worker.Handle(domain.TaskEmailVerification, func(context.Context, *domain.Job, ProgressFunc) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	})
	id := f.enqueue(t)
	ctx := context.Background()
	// A worker that claimed the job and died.
	if j, _ := f.queue.Claim(ctx, t0); j == nil {
		t.Fatal("claim failed")
	}

	f.now = t0.Add(4 * time.Minute)
	if stalled, err := f.worker.CheckStalled(ctx); err != nil || len(stalled) != 0 {
		t.Fatalf("CheckStalled before deadline = %v, %v", stalled, err)
	}

	f.now = t0.Add(6 * time.Minute)
	stalled, err := f.worker.CheckStalled(ctx)
	if err != nil || len(stalled) != 1 || stalled[0].ID != id {
		t.Fatalf("CheckStalled = %v, %v", stalled, err)
	}
	if _, ok := f.rec.last(EventStalled); !ok {
		t.Error("expected stalled event")
	}
	if _, ok := f.rec.last(EventFailed); ok {
		t.Error("a first stall must not fail the job")
	}
	if j := f.job(t, id); j.Status != domain.StatusWaiting || j.Attempts != 0 || j.StalledCount != 1 {
		t.Errorf("job after stall = %+v", j)
	}

	if processed, err := f.worker.ProcessNext(ctx); err != nil || !processed {
		t.Fatalf("ProcessNext = %v, %v", processed, err)
	}
	if j := f.job(t, id); j.Status != domain.StatusCompleted || j.Attempts != 1 {
		t.Errorf("job after redelivery = %+v", j)
	}
	if n := atomic.LoadInt32(&delivered); n != 1 {
		t.Errorf("deliveries = %d, want 1", n)
	}
}

func TestWorker_CheckStalledFailsAfterMaxStalled(t *testing.T) {
	f := newFixture(t, WorkerOptions{StalledInterval: 5 * time.Minute, MaxStalled: 1})
	id := f.enqueue(t)
	ctx := context.Background()

	for i, at := range []time.Time{t0, t0.Add(10 * time.Minute)} {
		if j, _ := f.queue.Claim(ctx, at); j == nil {
			t.Fatalf("claim %d failed", i)
		}
		f.now = at.Add(6 * time.Minute)
		if stalled, err := f.worker.CheckStalled(ctx); err != nil || len(stalled) != 1 {
			t.Fatalf("CheckStalled %d = %v, %v", i, stalled, err)
		}
	}

	ev, ok := f.rec.last(EventFailed)
	if !ok || !errors.Is(ev.Err, ErrTaskFailed) {
		t.Errorf("expected failed event wrapping ErrTaskFailed, got %+v", ev)
	}
	if j := f.job(t, id); j.Status != domain.StatusFailed || j.LastError != domain.StalledReason || j.StalledCount != 2 {
		t.Errorf("job = %+v", j)
	}
	if processed, _ := f.worker.ProcessNext(ctx); processed {
		t.Error("job failed by the stall detector was claimed again")
	}
}

// cancelAwareQueue rejects state writes on a cancelled context, as a database driver does.
type cancelAwareQueue struct {
	*repository.MemoryQueue
}

func (q cancelAwareQueue) Complete(ctx context.Context, id string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.MemoryQueue.Complete(ctx, id, now)
}

func (q cancelAwareQueue) Retry(ctx context.Context, id string, runAt time.Time, lastErr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.MemoryQueue.Retry(ctx, id, runAt, lastErr)
}

func (q cancelAwareQueue) Fail(ctx context.Context, id, lastErr string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.MemoryQueue.Fail(ctx, id, lastErr, now)
}

func (q cancelAwareQueue) Release(ctx context.Context, id string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.MemoryQueue.Release(ctx, id, now)
}

func TestWorker_ShutdownDuringSendKeepsJob(t *testing.T) {
	mem := repository.NewMemoryQueue()
	q := cancelAwareQueue{mem}
	c := NewClient(q, domain.DefaultRetryPolicy, nil)
	id, err := c.Enqueue(context.Background(), domain.TaskEmailVerification, []byte(`{}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := NewWorker(q, WorkerOptions{}, nil)
	first.Handle(domain.TaskEmailVerification, func(ctx context.Context, _ *domain.Job, _ ProgressFunc) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	if processed, err := first.ProcessNext(ctx); err != nil || !processed {
		t.Fatalf("ProcessNext during shutdown = %v, %v", processed, err)
	}
	j, _ := mem.GetByID(context.Background(), id)
	if j.Status != domain.StatusWaiting || j.Attempts != 0 {
		t.Fatalf("job after shutdown = %+v, want waiting with no attempt used", j)
	}

	var delivered int32
	second := NewWorker(q, WorkerOptions{}, nil)
	second.Handle(domain.TaskEmailVerification, func(context.Context, *domain.Job, ProgressFunc) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	})
	if processed, err := second.ProcessNext(context.Background()); err != nil || !processed {
		t.Fatalf("ProcessNext after restart = %v, %v", processed, err)
	}
	j, _ = mem.GetByID(context.Background(), id)
	if j.Status != domain.StatusCompleted || atomic.LoadInt32(&delivered) != 1 {
		t.Errorf("job after restart = %+v, deliveries = %d", j, delivered)
	}
}

func TestWorker_OutcomeWrittenAfterCancel(t *testing.T) {
	mem := repository.NewMemoryQueue()
	q := cancelAwareQueue{mem}
	c := NewClient(q, domain.DefaultRetryPolicy, nil)
	id, err := c.Enqueue(context.Background(), domain.TaskEmailVerification, []byte(`{}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(q, WorkerOptions{}, nil)
	// The send finished just as shutdown began.
	w.Handle(domain.TaskEmailVerification, func(context.Context, *domain.Job, ProgressFunc) error {
		cancel()
		return nil
	})
	if _, err := w.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if j, _ := mem.GetByID(context.Background(), id); j.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", j.Status)
	}
}

func TestWorker_SucceedsAfterTransientFailures(t *testing.T) {
	tests := []struct {
		name     string
		failures int
	}{
		{"first try", 0},
		{"one failure", 1},
		{"two failures", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, WorkerOptions{})
			var calls, delivered int32
			f.worker.Handle(domain.TaskEmailVerification, func(context.Context, *domain.Job, ProgressFunc) error {
				if int(atomic.AddInt32(&calls, 1)) <= tt.failures {
					return errors.New("smtp timeout")
				}
				atomic.AddInt32(&delivered, 1)
				return nil
			})
			id := f.enqueue(t)
			for i := 0; i <= tt.failures; i++ {
				if _, err := f.worker.ProcessNext(context.Background()); err != nil {
					t.Fatalf("ProcessNext: %v", err)
				}
				f.now = f.now.Add(time.Hour)
			}
			if n := atomic.LoadInt32(&delivered); n != 1 {
				t.Errorf("deliveries = %d, want 1", n)
			}
			if n := atomic.LoadInt32(&calls); int(n) != tt.failures+1 {
				t.Errorf("handler calls = %d, want %d", n, tt.failures+1)
			}
			if j := f.job(t, id); j.Status != domain.StatusCompleted || j.Attempts != tt.failures+1 {
				t.Errorf("job = %+v", j)
			}
			if processed, _ := f.worker.ProcessNext(context.Background()); processed {
				t.Error("completed job was claimed again")
			}
		})
	}
}

func TestWorker_Prune(t *testing.T) {
	f := newFixture(t, WorkerOptions{KeepCompleted: 1, CompletedMaxAge: time.Hour})
	f.worker.Handle(domain.TaskEmailVerification, func(context.Context, *domain.Job, ProgressFunc) error { return nil })
	for i := 0; i < 3; i++ {
		f.enqueue(t)
		if _, err := f.worker.ProcessNext(context.Background()); err != nil {
			t.Fatalf("ProcessNext: %v", err)
		}
	}
	if err := f.worker.Prune(context.Background()); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if f.queue.Len() != 1 {
		t.Errorf("Len after prune = %d, want 1", f.queue.Len())
	}
}

func TestWorker_ObserverPanicDoesNotAffectJob(t *testing.T) {
	q := repository.NewMemoryQueue()
	boom := ObserverFunc(func(context.Context, Event) { panic("observer bug") })
	c := NewClient(q, domain.DefaultRetryPolicy, nil, boom)
	w := NewWorker(q, WorkerOptions{}, nil, boom)
	w.Handle(domain.TaskEmailVerification, func(context.Context, *domain.Job, ProgressFunc) error { return nil })

	id, err := c.Enqueue(context.Background(), domain.TaskEmailVerification, []byte(`{}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if processed, err := w.ProcessNext(context.Background()); err != nil || !processed {
		t.Fatalf("ProcessNext = %v, %v", processed, err)
	}
	if j, _ := q.GetByID(context.Background(), id); j.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", j.Status)
	}
}

func TestWorker_RunIsRateLimited(t *testing.T) {
	q := repository.NewMemoryQueue()
	c := NewClient(q, domain.DefaultRetryPolicy, nil)
	w := NewWorker(q, WorkerOptions{RateEvery: 100 * time.Millisecond, DrainDelay: 10 * time.Millisecond}, nil)

	var (
		mu     sync.Mutex
		starts []time.Time
	)
	w.Handle(domain.TaskEmailVerification, func(context.Context, *domain.Job, ProgressFunc) error {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return nil
	})
	for i := 0; i < 3; i++ {
		if _, err := c.Enqueue(context.Background(), domain.TaskEmailVerification, []byte(`{}`)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := len(starts)
		mu.Unlock()
		if n == 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(starts) != 3 {
		t.Fatalf("handled %d jobs, want 3", len(starts))
	}
	if gap := starts[2].Sub(starts[0]); gap < 180*time.Millisecond {
		t.Errorf("three starts spanned %v, want >= ~200ms at one job per 100ms", gap)
	}
}

// failingQueue fails every Claim.
type failingQueue struct {
	repository.Queue
}

func (failingQueue) Claim(context.Context, time.Time) (*domain.Job, error) {
	return nil, errors.New("db unavailable")
}

func TestWorker_RunReportsQueueErrors(t *testing.T) {
	rec := &recorder{}
	w := NewWorker(failingQueue{}, WorkerOptions{RateEvery: time.Millisecond, DrainDelay: time.Millisecond}, nil, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := rec.last(EventError); ok {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	<-done
	ev, ok := rec.last(EventError)
	if !ok || ev.Err == nil {
		t.Fatal("expected an error event for the failing claim")
	}
}
