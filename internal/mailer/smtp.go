package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SMTP sends mail through a submission server with PLAIN auth.
type SMTP struct {
	host     string
	port     int
	username string
	password string
}

func NewSMTP(host string, port int, username, password string) *SMTP {
	if port <= 0 {
		port = 587
	}
	return &SMTP{host: host, port: port, username: username, password: password}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return sendError("smtp", err)
	}
	body, err := Compose(msg)
	if err != nil {
		return sendError("smtp", err)
	}
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, msg.From, msg.To, body)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return sendError("smtp", err)
		}
		return nil
	}
}

// Compose renders a message as RFC 5322 text. Messages with attachments are
// multipart/mixed with base64 parts.
func Compose(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachments) == 0 {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.Text)
		return buf.Bytes(), nil
	}

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(msg.Text)); err != nil {
		return nil, err
	}

	for _, att := range msg.Attachments {
		data, err := os.ReadFile(att.Path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", att.Name, err)
		}
		name := att.Name
		if name == "" {
			name = filepath.Base(att.Path)
		}
		ct := mime.TypeByExtension(filepath.Ext(name))
		if ct == "" {
			ct = "application/octet-stream"
		}
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ct},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
		})
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(data)
		for len(encoded) > 76 {
			if _, err := part.Write([]byte(encoded[:76] + "\r\n")); err != nil {
				return nil, err
			}
			encoded = encoded[76:]
		}
		if _, err := part.Write([]byte(encoded + "\r\n")); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
