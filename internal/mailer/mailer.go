// Package mailer delivers outbound email. Failures are reported to the
// caller as errors, never panics; callers decide whether delivery failure
// is fatal (for this system it never is).
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// Notifier sends a formatted HTML email.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Config holds SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// New returns an SMTP-backed Notifier, or a log-only Notifier when
// credentials are not configured (local development).
func New(cfg Config, log zerolog.Logger) Notifier {
	if cfg.User == "" || cfg.Password == "" {
		log.Warn().Msg("SMTP credentials not set; emails will be logged, not sent")
		return &logNotifier{log: log}
	}
	return &smtpNotifier{cfg: cfg, log: log}
}

type smtpNotifier struct {
	cfg Config
	log zerolog.Logger
}

func (n *smtpNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := buildMessage(n.cfg.From, to, subject, htmlBody)
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
	if err := smtp.SendMail(addr, auth, n.cfg.User, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	n.log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// logNotifier records the message instead of delivering it.
type logNotifier struct {
	log zerolog.Logger
}

func (n *logNotifier) Send(_ context.Context, to, subject, htmlBody string) error {
	snippet := htmlBody
	if len(snippet) > 100 {
		snippet = snippet[:100] + "..."
	}
	n.log.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body_snippet", snippet).
		Msg("email logged (delivery disabled)")
	return nil
}
