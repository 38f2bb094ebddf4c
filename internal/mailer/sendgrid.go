package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	client *sendgrid.Client
}

func NewSendGrid(apiKey string) *SendGrid {
	return &SendGrid{client: sendgrid.NewSendClient(apiKey)}
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return sendError("sendgrid", err)
	}
	v3 := mail.NewV3Mail()
	v3.SetFrom(mail.NewEmail("", msg.From))
	v3.Subject = msg.Subject

	personalization := mail.NewPersonalization()
	for _, to := range msg.To {
		personalization.AddTos(mail.NewEmail("", to))
	}
	v3.AddPersonalizations(personalization)
	v3.AddContent(mail.NewContent("text/plain", msg.Text))

	for _, att := range msg.Attachments {
		data, err := os.ReadFile(att.Path)
		if err != nil {
			return sendError("sendgrid", fmt.Errorf("read attachment %s: %w", att.Name, err))
		}
		name := att.Name
		if name == "" {
			name = filepath.Base(att.Path)
		}
		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(data))
		attachment.SetFilename(name)
		attachment.SetDisposition("attachment")
		if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
			attachment.SetType(ct)
		}
		v3.AddAttachment(attachment)
	}

	resp, err := s.client.SendWithContext(ctx, v3)
	if err != nil {
		return sendError("sendgrid", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return sendError("sendgrid", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, resp.Body))
	}
	return nil
}
