package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/contentd/moderation/internal/application/port"
)

// Config holds SMTP relay settings
type Config struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// Sender delivers notification mail over a plain SMTP relay
type Sender struct {
	cfg    Config
	logger *zap.Logger
}

// NewSender creates a new SMTP sender
func NewSender(cfg Config, logger *zap.Logger) *Sender {
	return &Sender{cfg: cfg, logger: logger}
}

// Send delivers one message to all recipients
func (s *Sender) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.cfg.From, to, subject, body)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, to, msg); err != nil {
		s.logger.Error("Failed to send mail",
			zap.String("subject", subject),
			zap.Int("recipients", len(to)),
			zap.Error(err))
		return fmt.Errorf("failed to send mail: %w", err)
	}

	s.logger.Info("Mail sent",
		zap.String("subject", subject),
		zap.Int("recipients", len(to)))
	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// LogSender satisfies port.MailSender without a relay. Used when mail is
// disabled and in tests.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that only logs
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message instead of delivering it
func (s *LogSender) Send(ctx context.Context, to []string, subject, body string) error {
	s.logger.Info("Mail delivery skipped, mail disabled",
		zap.Strings("to", to),
		zap.String("subject", subject))
	return nil
}

// Verify interface compliance
var (
	_ port.MailSender = (*Sender)(nil)
	_ port.MailSender = (*LogSender)(nil)
)
