package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"authgate/backend/internal/delivery/domain"
	"authgate/backend/internal/delivery/repository"
	"authgate/backend/internal/logging"
)

// Client enqueues email jobs. It is safe for concurrent use.
type Client struct {
	queue     repository.Queue
	policy    domain.RetryPolicy
	observers observers
	nowF      func() time.Time
}

// NewClient returns a client that enqueues jobs on queue with the given retry policy.
// A policy with MaxAttempts < 1 uses domain.DefaultRetryPolicy.
func NewClient(queue repository.Queue, policy domain.RetryPolicy, logger *zap.Logger, obs ...Observer) *Client {
	if policy.MaxAttempts < 1 {
		policy = domain.DefaultRetryPolicy
	}
	return &Client{
		queue:     queue,
		policy:    policy,
		observers: observers{list: obs, logger: logging.OrGlobal(logger)},
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// EnqueueVerificationEmail durably queues a verification email for email carrying token.
func (c *Client) EnqueueVerificationEmail(ctx context.Context, email, token string) error {
	payload, err := json.Marshal(domain.EmailVerificationPayload{Email: email, Token: token})
	if err != nil {
		return fmt.Errorf("encode verification payload: %w", err)
	}
	_, err = c.Enqueue(ctx, domain.TaskEmailVerification, payload)
	return err
}

// Enqueue persists a job named name with the client's retry policy and returns its id.
func (c *Client) Enqueue(ctx context.Context, name string, payload []byte) (string, error) {
	now := c.nowF()
	job, err := domain.NewJob(name, payload, c.policy, now)
	if err != nil {
		return "", err
	}
	if err := c.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s job: %w", name, err)
	}
	c.observers.notify(ctx, Event{
		Type:        EventAdded,
		JobID:       job.ID,
		JobName:     job.Name,
		MaxAttempts: job.MaxAttempts,
		At:          now,
	})
	return job.ID, nil
}
