// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mail delivers outbound email using the SMTP settings stored in the
// email_config table.
package mail

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"
	"github.com/yuin/goldmark"

	"github.com/olegiv/tegsite/internal/store"
)

// ErrNotConfigured is returned when no usable SMTP configuration is stored.
var ErrNotConfigured = errors.New("email is not configured")

// sendTimeout bounds a single SMTP conversation.
const sendTimeout = 30 * time.Second

// Message is an outbound email. An empty To sends to the configured
// recipient address. HTML is optional.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	SendMail(ctx context.Context, msg Message) error
}

// SMTPSender sends mail through the SMTP server in email_config.
type SMTPSender struct {
	queries *store.Queries
	logger  *slog.Logger
}

// NewSMTPSender creates an SMTPSender reading its settings from db.
func NewSMTPSender(db *sql.DB, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		queries: store.New(db),
		logger:  logger,
	}
}

// SendMail loads the current configuration and delivers msg.
func (s *SMTPSender) SendMail(ctx context.Context, msg Message) error {
	cfg, err := s.queries.GetEmailConfig(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotConfigured
	}
	if err != nil {
		return fmt.Errorf("loading email config: %w", err)
	}
	return s.SendWithConfig(ctx, cfg, msg)
}

// SendWithConfig delivers msg using cfg instead of the stored configuration.
func (s *SMTPSender) SendWithConfig(ctx context.Context, cfg store.EmailConfig, msg Message) error {
	if !Configured(cfg) {
		return ErrNotConfigured
	}

	m, err := buildMessage(cfg, msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(cfg.SmtpHost, clientOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending email via %s:%d: %w", cfg.SmtpHost, cfg.SmtpPort, err)
	}

	s.logger.Info("email sent", "subject", msg.Subject, "host", cfg.SmtpHost)
	return nil
}

// Configured reports whether cfg carries enough to attempt delivery.
func Configured(cfg store.EmailConfig) bool {
	return cfg.IsConfigured && cfg.SmtpHost != "" && cfg.SmtpPort > 0 && cfg.FromEmail != ""
}

func clientOptions(cfg store.EmailConfig) []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(int(cfg.SmtpPort)),
		gomail.WithTimeout(sendTimeout),
	}

	// use_tls selects STARTTLS; otherwise the connection is implicit TLS.
	if cfg.UseTls {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithSSL())
	}

	if cfg.SmtpUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SmtpUsername),
			gomail.WithPassword(cfg.SmtpPassword),
		)
	}
	return opts
}

func buildMessage(cfg store.EmailConfig, msg Message) (*gomail.Msg, error) {
	to := msg.To
	if len(to) == 0 {
		if cfg.RecipientEmail == "" {
			return nil, fmt.Errorf("no recipient: %w", ErrNotConfigured)
		}
		to = []string{cfg.RecipientEmail}
	}

	m := gomail.NewMsg()
	if cfg.FromName != "" {
		if err := m.FromFormat(cfg.FromName, cfg.FromEmail); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	} else if err := m.From(cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(to...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}

	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// RenderMarkdown converts a Markdown body to HTML for the alternative part.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// MarkdownMessage builds a Message whose text part is src and whose HTML
// part is src rendered by goldmark.
func MarkdownMessage(to []string, subject, src string) Message {
	msg := Message{To: to, Subject: subject, Text: src}
	if html, err := RenderMarkdown(src); err == nil {
		msg.HTML = html
	}
	return msg
}
