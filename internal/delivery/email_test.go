package delivery

import (
	"context"
	"errors"
	"testing"

	"authgate/backend/internal/delivery/domain"
)

type fakeSender struct {
	email, token string
	err          error
}

func (s *fakeSender) SendVerification(_ context.Context, email, token string) error {
	s.email, s.token = email, token
	return s.err
}

func TestVerificationEmailHandler(t *testing.T) {
	s := &fakeSender{}
	h := NewVerificationEmailHandler(s)
	var reported []int
	progress := func(p int) { reported = append(reported, p) }

	job := &domain.Job{Payload: []byte(`{"email":"a@example.com","token":"tok"}`)}
	if err := h(context.Background(), job, progress); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if s.email != "a@example.com" || s.token != "tok" {
		t.Errorf("sent to %q with %q", s.email, s.token)
	}
	if len(reported) != 2 || reported[1] != 100 {
		t.Errorf("progress = %v", reported)
	}

	s.err = errors.New("smtp down")
	if err := h(context.Background(), job, progress); !errors.Is(err, s.err) {
		t.Errorf("handler err = %v, want send error", err)
	}
	for _, payload := range []string{`not json`, `{"email":"a@example.com"}`} {
		if err := h(context.Background(), &domain.Job{Payload: []byte(payload)}, progress); err == nil {
			t.Errorf("payload %s should fail", payload)
		}
	}
}

func TestClient_EnqueueVerificationEmail(t *testing.T) {
	f := newFixture(t, WorkerOptions{})
	if err := f.client.EnqueueVerificationEmail(context.Background(), "a@example.com", "tok"); err != nil {
		t.Fatalf("EnqueueVerificationEmail: %v", err)
	}
	ev, ok := f.rec.last(EventAdded)
	if !ok {
		t.Fatal("expected added event")
	}
	j := f.job(t, ev.JobID)
	if j.Name != domain.TaskEmailVerification || j.MaxAttempts != 3 || j.Backoff.Seconds() != 60 {
		t.Errorf("job = %+v", j)
	}
	if string(j.Payload) != `{"email":"a@example.com","token":"tok"}` {
		t.Errorf("payload = %s", j.Payload)
	}
}
