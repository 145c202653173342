package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"authgate/backend/internal/delivery/domain"
)

// VerificationSender delivers a verification email carrying token to email.
type VerificationSender interface {
	SendVerification(ctx context.Context, email, token string) error
}

// NewVerificationEmailHandler returns the Handler for domain.TaskEmailVerification jobs.
func NewVerificationEmailHandler(sender VerificationSender) Handler {
	return func(ctx context.Context, job *domain.Job, progress ProgressFunc) error {
		var p domain.EmailVerificationPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode verification payload: %w", err)
		}
		if p.Email == "" || p.Token == "" {
			return errors.New("verification payload requires email and token")
		}
		progress(10)
		if err := sender.SendVerification(ctx, p.Email, p.Token); err != nil {
			return err
		}
		progress(100)
		return nil
	}
}
