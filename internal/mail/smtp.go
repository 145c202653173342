package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const defaultDialTimeout = 15 * time.Second

// SMTPTransport sends mail through an SMTP relay, upgrading with STARTTLS when offered.
type SMTPTransport struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// TLSConfig is used for STARTTLS; nil uses ServerName=Host.
	TLSConfig *tls.Config
}

// NewSMTPTransport returns a transport for host:port. Auth is used only when user is set.
func NewSMTPTransport(host string, port int, user, password, from string) *SMTPTransport {
	if port == 0 {
		port = 587
	}
	return &SMTPTransport{Host: host, Port: port, User: user, Password: password, From: from}
}

// Send delivers msg. The context bounds the whole SMTP conversation.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if t.Host == "" {
		return errors.New("smtp: host not configured")
	}
	m, err := t.compose(msg)
	if err != nil {
		return err
	}
	client, err := gomail.NewClient(t.Host, t.options()...)
	if err != nil {
		return fmt.Errorf("smtp: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

func (t *SMTPTransport) options() []gomail.Option {
	cfg := t.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{ServerName: t.Host, MinVersion: tls.VersionTLS12}
	}
	opts := []gomail.Option{
		gomail.WithPort(t.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTLSConfig(cfg),
		gomail.WithTimeout(defaultDialTimeout),
	}
	if t.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(t.User),
			gomail.WithPassword(t.Password),
		)
	}
	return opts
}

// compose builds the MIME message. Addresses are parsed, so header injection through From or To is
// rejected, and a non-ASCII subject is encoded.
func (t *SMTPTransport) compose(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(t.From); err != nil {
		return nil, fmt.Errorf("smtp: from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp: to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	return m, nil
}
