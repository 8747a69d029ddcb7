package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
)

// Mailer delivers sign-in codes.
type Mailer interface {
	SendCode(ctx context.Context, email, code string) error
}

// LogMailer logs codes instead of sending them. For local development.
type LogMailer struct {
	Log *slog.Logger
}

func (m LogMailer) SendCode(_ context.Context, email, code string) error {
	log := m.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("magic code", "email", email, "code", code)
	return nil
}

// SMTPMailer sends codes through an SMTP relay with PLAIN auth when a
// username is set.
type SMTPMailer struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

func (m SMTPMailer) SendCode(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	host, _, err := net.SplitHostPort(m.Addr)
	if err != nil {
		return fmt.Errorf("smtp addr: %w", err)
	}
	var a smtp.Auth
	if m.Username != "" {
		a = smtp.PlainAuth("", m.Username, m.Password, host)
	}
	return smtp.SendMail(m.Addr, a, m.From, []string{email}, codeMessage(m.From, email, code))
}

func codeMessage(from, to, code string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your memeboard sign-in code\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Your sign-in code is %s\r\n", code)
	return []byte(b.String())
}
