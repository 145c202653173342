package domain

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status is the lifecycle state of a queued job.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TaskEmailVerification is the job name for verification emails.
const TaskEmailVerification = "email_verification"

// StalledReason is recorded as LastError when the stall detector fails a job.
const StalledReason = "stalled"

// DefaultMaxStalledCount is how many times a job may be recovered from a dead worker before it is failed.
const DefaultMaxStalledCount = 1

// Job is a durable unit of work. Payload is JSON.
type Job struct {
	ID          string
	Name        string
	Payload     []byte
	Status      Status
	Attempts    int // attempts started; incremented on claim
	MaxAttempts int
	// StalledCount counts recoveries from a worker that stopped heartbeating. A stalled attempt is not
	// counted in Attempts.
	StalledCount int
	Backoff     time.Duration // base delay; attempt n waits Backoff·2^(n−1)
	RunAt       time.Time
	HeartbeatAt *time.Time
	LastError   string
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

// RetryPolicy bounds retries with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is three attempts starting at a one minute delay.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Minute}

// Delay returns the wait before the next run after the given failed attempt (1-based): base·2^(attempt−1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// EmailVerificationPayload is the JSON payload of a TaskEmailVerification job.
type EmailVerificationPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// NewJob returns a waiting job with a ULID id, runnable at now.
func NewJob(name string, payload []byte, policy RetryPolicy, now time.Time) (*Job, error) {
	if name == "" {
		return nil, errors.New("job name is required")
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:          id.String(),
		Name:        name,
		Payload:     payload,
		Status:      StatusWaiting,
		MaxAttempts: policy.MaxAttempts,
		Backoff:     policy.BaseDelay,
		RunAt:       now,
		CreatedAt:   now,
	}, nil
}

// Policy returns the retry policy stored on the job.
func (j *Job) Policy() RetryPolicy {
	return RetryPolicy{MaxAttempts: j.MaxAttempts, BaseDelay: j.Backoff}
}

// CanRetry reports whether another attempt is allowed after the current one fails.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	c.Payload = append([]byte(nil), j.Payload...)
	if j.HeartbeatAt != nil {
		t := *j.HeartbeatAt
		c.HeartbeatAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
