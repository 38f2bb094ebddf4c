// Package mailer sends plain-text email with optional file attachments
// through SMTP, SendGrid, or Mailgun.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"shipyard/internal/config"
	"shipyard/internal/services"
)

// Attachment is a file attached by path.
type Attachment struct {
	Name string
	Path string
}

// Message is a single outbound email.
type Message struct {
	From        string
	To          []string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the sender for the configured provider.
func New(cfg config.Email) (Sender, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "smtp":
		if strings.TrimSpace(cfg.SMTPHost) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "mailer", "smtp", "email.smtp_host is not set", nil)
		}
		return NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword), nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, services.Wrap(services.ErrConfiguration, "mailer", "sendgrid", "email.sendgrid_api_key is not set", nil)
		}
		return NewSendGrid(cfg.SendGridAPIKey), nil
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" {
			return nil, services.Wrap(services.ErrConfiguration, "mailer", "mailgun", "email.mailgun_domain and email.mailgun_api_key must be set", nil)
		}
		return NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, timeout), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "mailer", "new", fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
}

// Validate checks the fields every provider needs.
func (m Message) Validate() error {
	if strings.TrimSpace(m.From) == "" {
		return errors.New("sender address is empty")
	}
	if len(m.To) == 0 {
		return errors.New("no recipients")
	}
	for _, att := range m.Attachments {
		if _, err := os.Stat(att.Path); err != nil {
			return fmt.Errorf("attachment %s: %w", att.Name, err)
		}
	}
	return nil
}

// AttachmentSize sums the on-disk size of every attachment.
func (m Message) AttachmentSize() (int64, error) {
	var total int64
	for _, att := range m.Attachments {
		info, err := os.Stat(att.Path)
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

func sendError(provider string, err error) error {
	return services.Wrap(services.ErrTransient, "mailer", provider, "send", err)
}
