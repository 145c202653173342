// Package mail sends transactional email (account verification) over a pluggable transport.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// VerificationSubject is the subject line of verification emails.
const VerificationSubject = "Email Verification"

// verificationPath is appended to the app URL; the token goes in the query string.
const verificationPath = "/api/v1/auth/verify/email"

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Transport delivers a message. Errors are retried by the caller's queue.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer builds account emails and hands them to a Transport.
type Mailer struct {
	transport Transport
	appURL    string
}

// NewMailer returns a Mailer whose links point at appURL (e.g. https://auth.example.com).
func NewMailer(transport Transport, appURL string) *Mailer {
	return &Mailer{transport: transport, appURL: strings.TrimRight(appURL, "/")}
}

// VerificationURL returns the link the user follows to verify their address.
func (m *Mailer) VerificationURL(token string) string {
	return m.appURL + verificationPath + "?token=" + url.QueryEscape(token)
}

// SendVerification emails the verification link for token to email.
func (m *Mailer) SendVerification(ctx context.Context, email, token string) error {
	if email == "" || token == "" {
		return errors.New("mail: email and token are required")
	}
	link := m.VerificationURL(token)
	msg := Message{
		To:      email,
		Subject: VerificationSubject,
		Text: fmt.Sprintf("Hello %s,\r\n\r\nConfirm your email address by opening the link below:\r\n\r\n%s\r\n\r\n"+
			"If you did not create an account, ignore this message.\r\n", email, link),
	}
	if err := m.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("mail: send verification: %w", err)
	}
	return nil
}
