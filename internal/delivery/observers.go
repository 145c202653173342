package delivery

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"authgate/backend/internal/logging"
	"authgate/backend/internal/telemetry"
	tdomain "authgate/backend/internal/telemetry/domain"
)

// NewLogObserver logs every lifecycle event. Failures and stalls log at warn; queue errors at error.
func NewLogObserver(logger *zap.Logger) Observer {
	logger = logging.OrGlobal(logger)
	return ObserverFunc(func(_ context.Context, ev Event) {
		fields := []zap.Field{
			zap.String("event", string(ev.Type)),
			zap.String("job_id", ev.JobID),
			zap.String("job_name", ev.JobName),
			zap.Int("attempt", ev.Attempt),
			zap.Int("max_attempts", ev.MaxAttempts),
		}
		switch ev.Type {
		case EventProgress:
			logger.Debug("email job progress", append(fields, zap.Int("progress", ev.Progress))...)
		case EventFailed:
			fields = append(fields, zap.Error(ev.Err), zap.Bool("will_retry", ev.WillRetry))
			if ev.WillRetry {
				fields = append(fields, zap.Time("retry_at", ev.RetryAt))
			}
			logger.Warn("email job failed", fields...)
		case EventStalled:
			logger.Warn("email job stalled", fields...)
		case EventError:
			logger.Error("email queue error", append(fields, zap.Error(ev.Err))...)
		case EventCompleted:
			logger.Info("email job completed", append(fields, zap.Duration("duration", ev.Duration))...)
		default:
			logger.Debug("email job "+string(ev.Type), fields...)
		}
	})
}

// Metrics counts lifecycle events and job run durations for Prometheus.
type Metrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Subsystem: "email_queue",
			Name:      "events_total",
			Help:      "Email job lifecycle events by type and job name.",
		}, []string{"event", "job_name"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "authgate",
			Subsystem: "email_queue",
			Name:      "job_duration_seconds",
			Help:      "Handler run time per attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job_name", "outcome"}),
	}
	for _, c := range []prometheus.Collector{m.events, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe implements Observer.
func (m *Metrics) Observe(_ context.Context, ev Event) {
	m.events.WithLabelValues(string(ev.Type), ev.JobName).Inc()
	switch ev.Type {
	case EventCompleted:
		m.duration.WithLabelValues(ev.JobName, "completed").Observe(ev.Duration.Seconds())
	case EventFailed:
		if ev.Duration > 0 {
			m.duration.WithLabelValues(ev.JobName, "failed").Observe(ev.Duration.Seconds())
		}
	}
}

// eventMetadata is the JSON body attached to telemetry events.
type eventMetadata struct {
	Error    string `json:"error,omitempty"`
	RetryAt  string `json:"retry_at,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Duration int64  `json:"duration_ms,omitempty"`
}

// NewTelemetryObserver forwards events to emitter (OTel logs, Kafka) without blocking the worker.
// Progress events are not forwarded.
func NewTelemetryObserver(emitter telemetry.EventEmitter, logger *zap.Logger) Observer {
	return ObserverFunc(func(_ context.Context, ev Event) {
		if emitter == nil || ev.Type == EventProgress {
			return
		}
		telemetry.EmitAsync(emitter, toTelemetryEvent(ev), logger)
	})
}

func toTelemetryEvent(ev Event) *tdomain.Event {
	meta := eventMetadata{Progress: ev.Progress, Duration: ev.Duration.Milliseconds()}
	if ev.Err != nil {
		meta.Error = ev.Err.Error()
	}
	if ev.WillRetry {
		meta.RetryAt = ev.RetryAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	body, _ := json.Marshal(meta)
	return &tdomain.Event{
		EventType: "email_job_" + string(ev.Type),
		Source:    "email_worker",
		JobID:     ev.JobID,
		Attrs: map[string]string{
			"job_name":     ev.JobName,
			"attempt":      strconv.Itoa(ev.Attempt),
			"max_attempts": strconv.Itoa(ev.MaxAttempts),
		},
		Metadata:  body,
		CreatedAt: ev.At,
	}
}
