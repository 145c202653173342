// Package delivery runs the durable email job pipeline: a client that enqueues jobs, a rate-limited
// worker with bounded exponential retries and a stall detector, and observers for lifecycle events.
package delivery

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EventType names a job lifecycle event.
type EventType string

const (
	EventAdded     EventType = "added"
	EventActive    EventType = "active"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventStalled   EventType = "stalled"
	EventError     EventType = "error"
)

// Event describes one lifecycle transition. JobID is empty for EventError raised outside a job.
type Event struct {
	Type        EventType
	JobID       string
	JobName     string
	Attempt     int
	MaxAttempts int
	Progress    int
	// WillRetry is set on EventFailed when another attempt is scheduled at RetryAt.
	WillRetry bool
	RetryAt   time.Time
	Duration  time.Duration
	Err       error
	At        time.Time
}

// Observer receives lifecycle events. Observers are telemetry only: they cannot fail or alter a job.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// observers fans an event out to every observer, isolating panics.
type observers struct {
	list   []Observer
	logger *zap.Logger
}

func (o observers) notify(ctx context.Context, ev Event) {
	for _, obs := range o.list {
		o.safeObserve(ctx, obs, ev)
	}
}

func (o observers) safeObserve(ctx context.Context, obs Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("delivery: observer panicked", zap.String("event", string(ev.Type)), zap.Any("panic", r))
		}
	}()
	obs.Observe(ctx, ev)
}
