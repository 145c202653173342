package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"authgate/backend/internal/delivery/domain"
	"authgate/backend/internal/delivery/repository"
	"authgate/backend/internal/logging"
)

var (
	// ErrTaskFailed wraps the last handler error once a job has used all of its attempts.
	ErrTaskFailed = errors.New("task failed after all attempts")
	// ErrUnknownJob is returned for a job whose name has no registered handler. Such jobs are not retried.
	ErrUnknownJob = errors.New("unknown job name")
)

// ProgressFunc reports handler progress (0–100). It refreshes the job heartbeat.
type ProgressFunc func(pct int)

// Handler processes one job attempt. A returned error schedules a retry while attempts remain.
type Handler func(ctx context.Context, job *domain.Job, progress ProgressFunc) error

// WorkerOptions tunes the worker loop. Zero values take the defaults noted per field.
type WorkerOptions struct {
	RateEvery       time.Duration // min spacing between job starts; default 150ms
	DrainDelay      time.Duration // idle poll interval; default 300ms
	StalledInterval time.Duration // stall check period and heartbeat deadline; default 5m
	JobTimeout      time.Duration // per-attempt handler deadline; default StalledInterval/2
	MaxStalled      int           // stall recoveries before a job is failed; default 1
	KeepCompleted   int           // completed jobs retained; default 100
	CompletedMaxAge time.Duration // completed job retention; default 24h
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.RateEvery <= 0 {
		o.RateEvery = 150 * time.Millisecond
	}
	if o.DrainDelay <= 0 {
		o.DrainDelay = 300 * time.Millisecond
	}
	if o.StalledInterval <= 0 {
		o.StalledInterval = 5 * time.Minute
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = o.StalledInterval / 2
	}
	if o.MaxStalled <= 0 {
		o.MaxStalled = domain.DefaultMaxStalledCount
	}
	if o.KeepCompleted <= 0 {
		o.KeepCompleted = 100
	}
	if o.CompletedMaxAge <= 0 {
		o.CompletedMaxAge = 24 * time.Hour
	}
	return o
}

// Worker processes queued jobs one at a time.
type Worker struct {
	queue     repository.Queue
	handlers  map[string]Handler
	limiter   *rate.Limiter
	opts      WorkerOptions
	observers observers
	logger    *zap.Logger
	nowF      func() time.Time
}

// NewWorker returns a worker over queue. Register handlers with Handle before calling Run.
func NewWorker(queue repository.Queue, opts WorkerOptions, logger *zap.Logger, obs ...Observer) *Worker {
	logger = logging.OrGlobal(logger)
	opts = opts.withDefaults()
	return &Worker{
		queue:     queue,
		handlers:  make(map[string]Handler),
		limiter:   rate.NewLimiter(rate.Every(opts.RateEvery), 1),
		opts:      opts,
		observers: observers{list: obs, logger: logger},
		logger:    logger,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle registers h for jobs named name. Not safe to call concurrently with Run.
func (w *Worker) Handle(name string, h Handler) {
	w.handlers[name] = h
}

// Run processes jobs until ctx is cancelled. The stall detector and completed-job pruning run on
// their own ticker. Returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("email worker started",
		zap.Duration("rate_every", w.opts.RateEvery),
		zap.Duration("drain_delay", w.opts.DrainDelay),
		zap.Duration("stalled_interval", w.opts.StalledInterval),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.maintain(ctx)
	}()
	defer func() { <-done }()

	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil
		}
		processed, err := w.ProcessNext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			w.observers.notify(ctx, Event{Type: EventError, Err: err, At: w.nowF()})
		}
		if processed && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.opts.DrainDelay):
		}
	}
}

func (w *Worker) maintain(ctx context.Context) {
	ticker := time.NewTicker(w.opts.StalledInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.CheckStalled(ctx); err != nil && ctx.Err() == nil {
				w.observers.notify(ctx, Event{Type: EventError, Err: err, At: w.nowF()})
			}
			if err := w.Prune(ctx); err != nil && ctx.Err() == nil {
				w.observers.notify(ctx, Event{Type: EventError, Err: err, At: w.nowF()})
			}
		}
	}
}

// ProcessNext claims and runs one runnable job. It reports whether a job was claimed. The returned
// error covers queue failures only; handler failures are recorded on the job.
//
// The outcome is written even if ctx is cancelled while the handler runs. A handler interrupted by
// cancellation is released back to the queue without using an attempt.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.Claim(ctx, w.nowF())
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}
	stateCtx := context.WithoutCancel(ctx)
	w.observers.notify(stateCtx, w.event(EventActive, job))

	start := time.Now()
	runErr := w.run(ctx, job)
	elapsed := time.Since(start)

	if runErr == nil {
		if err := w.queue.Complete(stateCtx, job.ID, w.nowF()); err != nil {
			return true, fmt.Errorf("complete job %s: %w", job.ID, err)
		}
		ev := w.event(EventCompleted, job)
		ev.Duration = elapsed
		w.observers.notify(stateCtx, ev)
		return true, nil
	}
	if ctx.Err() != nil {
		if err := w.queue.Release(stateCtx, job.ID, w.nowF()); err != nil {
			return true, fmt.Errorf("release job %s: %w", job.ID, err)
		}
		w.logger.Info("email job released on shutdown", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempts))
		return true, nil
	}
	return true, w.recordFailure(stateCtx, job, runErr, elapsed)
}

func (w *Worker) run(ctx context.Context, job *domain.Job) error {
	h, ok := w.handlers[job.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, job.Name)
	}
	runCtx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	defer cancel()
	progress := func(pct int) {
		if err := w.queue.Heartbeat(ctx, job.ID, w.nowF()); err != nil {
			w.logger.Warn("email job heartbeat failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		ev := w.event(EventProgress, job)
		ev.Progress = pct
		w.observers.notify(ctx, ev)
	}
	return h(runCtx, job, progress)
}

// recordFailure retries the job with exponential backoff, or fails it permanently once attempts
// are exhausted or the job name is unknown.
func (w *Worker) recordFailure(ctx context.Context, job *domain.Job, runErr error, elapsed time.Duration) error {
	now := w.nowF()
	ev := w.event(EventFailed, job)
	ev.Duration = elapsed
	if job.CanRetry() && !errors.Is(runErr, ErrUnknownJob) {
		retryAt := now.Add(job.Policy().Delay(job.Attempts))
		if err := w.queue.Retry(ctx, job.ID, retryAt, runErr.Error()); err != nil {
			return fmt.Errorf("retry job %s: %w", job.ID, err)
		}
		ev.Err = runErr
		ev.WillRetry = true
		ev.RetryAt = retryAt
		w.observers.notify(ctx, ev)
		return nil
	}
	finalErr := fmt.Errorf("%w: %w", ErrTaskFailed, runErr)
	if err := w.queue.Fail(ctx, job.ID, runErr.Error(), now); err != nil {
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	ev.Err = finalErr
	w.observers.notify(ctx, ev)
	return nil
}

// CheckStalled recovers active jobs whose heartbeat is older than the stalled interval and returns
// them. A recovered job is requeued until it has stalled more than MaxStalled times, then it is failed.
func (w *Worker) CheckStalled(ctx context.Context) ([]*domain.Job, error) {
	now := w.nowF()
	stalled, err := w.queue.ReclaimStalled(ctx, now.Add(-w.opts.StalledInterval), now, w.opts.MaxStalled)
	if err != nil {
		return nil, fmt.Errorf("reclaim stalled jobs: %w", err)
	}
	for _, job := range stalled {
		w.observers.notify(ctx, w.event(EventStalled, job))
		if job.Status != domain.StatusFailed {
			continue
		}
		ev := w.event(EventFailed, job)
		ev.Err = fmt.Errorf("%w: %s", ErrTaskFailed, domain.StalledReason)
		w.observers.notify(ctx, ev)
	}
	return stalled, nil
}

// Prune removes completed jobs beyond the retention age and count.
func (w *Worker) Prune(ctx context.Context) error {
	n, err := w.queue.PruneCompleted(ctx, w.nowF().Add(-w.opts.CompletedMaxAge), w.opts.KeepCompleted)
	if err != nil {
		return fmt.Errorf("prune completed jobs: %w", err)
	}
	if n > 0 {
		w.logger.Debug("pruned completed email jobs", zap.Int64("count", n))
	}
	return nil
}

func (w *Worker) event(t EventType, job *domain.Job) Event {
	return Event{
		Type:        t,
		JobID:       job.ID,
		JobName:     job.Name,
		Attempt:     job.Attempts,
		MaxAttempts: job.MaxAttempts,
		At:          w.nowF(),
	}
}
