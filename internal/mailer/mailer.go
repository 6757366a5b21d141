package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Config holds SMTP submission settings.
type Config struct {
	Server      string // host:port
	Username    string
	Password    string
	FromAddress string
	UseStartTLS bool // STARTTLS on port 587; off for local test servers
}

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer submits outbound mail over SMTP.
type Mailer struct {
	cfg Config
}

// NewMailer creates a Mailer with the given configuration.
func NewMailer(cfg Config) (*Mailer, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("SMTP server is required")
	}

	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("from address is required")
	}

	return &Mailer{cfg: cfg}, nil
}

// Send submits one message. It dials a fresh connection per call; outbound
// volume is far too low to justify connection reuse.
func (m *Mailer) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	client, err := m.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = client.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		client.CommandTimeout = time.Until(deadline)
		client.SubmissionTimeout = time.Until(deadline)
	}

	if m.cfg.Username != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	raw := buildMessage(m.cfg.FromAddress, msg)
	if err := client.SendMail(m.cfg.FromAddress, msg.To, strings.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (m *Mailer) dial() (*smtp.Client, error) {
	if m.cfg.UseStartTLS {
		return smtp.DialStartTLS(m.cfg.Server, nil)
	}
	return smtp.Dial(m.cfg.Server)
}

// buildMessage renders the RFC 5322 envelope with CRLF line endings.
func buildMessage(from string, msg *Message) string {
	var b strings.Builder

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))

	return b.String()
}
