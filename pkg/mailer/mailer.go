// Package mailer sends HTML email with optional attachments over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/resilience"
)

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Filename string
	Data     []byte
}

// Message is one outbound email. FromName overrides the configured sender
// display name when set.
type Message struct {
	To          string
	Subject     string
	HTMLBody    string
	FromName    string
	Attachments []Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type transport interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTP delivers through a relay behind a circuit breaker.
type SMTP struct {
	transport   transport
	fromAddress string
	fromName    string
	breaker     *resilience.Breaker
	logg        *logger.Logger
}

// NewSMTP builds an SMTP sender from config.
func NewSMTP(cfg config.SMTPConfig, logg *logger.Logger) (*SMTP, error) {
	if !cfg.Enabled() {
		return nil, errors.New("smtp host is required")
	}
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.RequireTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return newSMTP(client, cfg.FromAddress, cfg.FromName, logg), nil
}

func newSMTP(t transport, fromAddress, fromName string, logg *logger.Logger) *SMTP {
	if logg == nil {
		logg = logger.Nop()
	}
	return &SMTP{
		transport:   t,
		fromAddress: fromAddress,
		fromName:    fromName,
		breaker:     resilience.NewBreaker("smtp", resilience.BreakerSettings{}, logg),
		logg:        logg,
	}
}

// Send builds and delivers msg.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	built, err := s.build(msg)
	if err != nil {
		return err
	}
	err = s.breaker.Do(func() error {
		return s.transport.DialAndSendWithContext(ctx, built)
	})
	if err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	s.logg.Info(s.logg.WithField(ctx, "attachments", len(msg.Attachments)), "email sent")
	return nil
}

func (s *SMTP) build(msg Message) (*mail.Msg, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, errors.New("recipient is required")
	}
	m := mail.NewMsg()
	name := s.fromName
	if msg.FromName != "" {
		name = msg.FromName
	}
	if err := m.FromFormat(name, s.fromAddress); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	for _, att := range msg.Attachments {
		m.AttachReader(att.Filename, bytes.NewReader(att.Data))
	}
	return m, nil
}

// Log writes messages to the logger instead of sending them. Used when no
// relay is configured.
type Log struct {
	logg *logger.Logger
}

func NewLog(logg *logger.Logger) *Log {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Log{logg: logg}
}

func (l *Log) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient is required")
	}
	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	}), "email suppressed (no smtp relay)")
	return nil
}
