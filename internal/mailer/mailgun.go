package mailer

import (
	"context"
	"os"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// Mailgun sends mail through the Mailgun HTTP API.
type Mailgun struct {
	mg      *mailgun.MailgunImpl
	timeout time.Duration
}

func NewMailgun(domain, apiKey string, timeout time.Duration) *Mailgun {
	return &Mailgun{mg: mailgun.NewMailgun(domain, apiKey), timeout: timeout}
}

// SetAPIBase points the client at a different Mailgun region or endpoint.
func (m *Mailgun) SetAPIBase(base string) {
	m.mg.SetAPIBase(base)
}

func (m *Mailgun) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return sendError("mailgun", err)
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	message := m.mg.NewMessage(msg.From, msg.Subject, msg.Text, msg.To...)
	for _, att := range msg.Attachments {
		if att.Name == "" {
			message.AddAttachment(att.Path)
			continue
		}
		file, err := os.Open(att.Path)
		if err != nil {
			return sendError("mailgun", err)
		}
		// The client closes reader attachments once the request is written.
		message.AddReaderAttachment(att.Name, file)
	}
	if _, _, err := m.mg.Send(ctx, message); err != nil {
		return sendError("mailgun", err)
	}
	return nil
}
