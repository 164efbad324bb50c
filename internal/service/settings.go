// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/olegiv/tegsite/internal/cache"
	"github.com/olegiv/tegsite/internal/mail"
	"github.com/olegiv/tegsite/internal/model"
	"github.com/olegiv/tegsite/internal/store"
)

const (
	settingsCachePrefix = "settings:"
	publicSettingsID    = "public"
	publicSettingsTTL   = 10 * time.Minute

	maxSettingValueLength = 5000

	// PasswordPlaceholder stands in for a stored SMTP password in responses.
	// Saving it back keeps the stored password.
	PasswordPlaceholder = "********"
)

var settingKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// EmailConfigView is the SMTP configuration with the password masked.
type EmailConfigView struct {
	SMTPHost       string     `json:"smtpHost"`
	SMTPPort       int64      `json:"smtpPort"`
	UseTLS         bool       `json:"useTls"`
	SMTPUsername   string     `json:"smtpUsername"`
	SMTPPassword   string     `json:"smtpPassword"`
	FromEmail      string     `json:"fromEmail"`
	FromName       string     `json:"fromName"`
	RecipientEmail string     `json:"recipientEmail"`
	IsConfigured   bool       `json:"isConfigured"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// EmailConfigInput holds the editable SMTP settings.
type EmailConfigInput struct {
	SMTPHost       string `json:"smtpHost"`
	SMTPPort       int64  `json:"smtpPort"`
	UseTLS         bool   `json:"useTls"`
	SMTPUsername   string `json:"smtpUsername"`
	SMTPPassword   string `json:"smtpPassword"`
	FromEmail      string `json:"fromEmail"`
	FromName       string `json:"fromName"`
	RecipientEmail string `json:"recipientEmail"`
}

// NewEmailConfigInput returns the defaults for an unset configuration.
func NewEmailConfigInput() EmailConfigInput {
	return EmailConfigInput{
		SMTPHost: "smtp.gmail.com",
		SMTPPort: 587,
		UseTLS:   true,
		FromName: "TEG Finance",
	}
}

// SettingsService manages site settings and the email configuration.
type SettingsService struct {
	db        *sql.DB
	queries   *store.Queries
	sanitizer *Sanitizer
	mailer    mail.Sender
	public    *cache.Namespace[map[string]string]
	events    *EventService
	logger    *slog.Logger
}

// NewSettingsService creates a SettingsService. Public settings are
// cached in c.
func NewSettingsService(db *sql.DB, c cache.Cache, sanitizer *Sanitizer, mailer mail.Sender, events *EventService, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		db:        db,
		queries:   store.New(db),
		sanitizer: sanitizer,
		mailer:    mailer,
		public:    cache.NewNamespace[map[string]string](c, settingsCachePrefix, publicSettingsTTL),
		events:    events,
		logger:    logger,
	}
}

// All returns every setting as key/value pairs.
func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	return s.load(ctx, false)
}

// Public returns the settings the public site may read.
func (s *SettingsService) Public(ctx context.Context) (map[string]string, error) {
	return s.public.Fetch(ctx, publicSettingsID, func(ctx context.Context) (map[string]string, error) {
		return s.load(ctx, true)
	})
}

func (s *SettingsService) load(ctx context.Context, publicOnly bool) (map[string]string, error) {
	rows, err := s.queries.ListSettings(ctx, publicOnly)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// Update upserts values in one transaction.
func (s *SettingsService) Update(ctx context.Context, values map[string]string, actor Actor) error {
	if len(values) == 0 {
		return fieldError("settings", "no settings provided")
	}

	keys := make([]string, 0, len(values))
	verr := NewValidationError()
	for k, v := range values {
		if !settingKeyPattern.MatchString(k) {
			verr.Add(k, "invalid setting key")
		} else if len(v) > maxSettingValueLength {
			verr.Add(k, fmt.Sprintf("value must be at most %d characters", maxSettingValueLength))
		}
		keys = append(keys, k)
	}
	if err := verr.Err(); err != nil {
		return err
	}
	sort.Strings(keys)

	now := time.Now().UTC()
	err := store.WithTx(ctx, s.db, func(q *store.Queries) error {
		for _, k := range keys {
			if err := q.UpsertSetting(ctx, store.UpsertSettingParams{
				Key:       k,
				Value:     s.sanitizer.Text(values[k]),
				UpdatedBy: actorID(actor),
				UpdatedAt: now,
			}); err != nil {
				return fmt.Errorf("saving setting %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.public.Forget(ctx, publicSettingsID); err != nil {
		s.logger.Warn("failed to invalidate settings cache", "error", err)
	}
	s.events.Record(ctx, actor, model.EventCategoryConfig, "Site settings updated",
		map[string]any{"keys": keys})
	return nil
}

// EmailConfig returns the SMTP configuration with the password masked.
func (s *SettingsService) EmailConfig(ctx context.Context) (EmailConfigView, error) {
	cfg, err := s.queries.GetEmailConfig(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		in := NewEmailConfigInput()
		return EmailConfigView{
			SMTPHost: in.SMTPHost,
			SMTPPort: in.SMTPPort,
			UseTLS:   in.UseTLS,
			FromName: in.FromName,
		}, nil
	}
	if err != nil {
		return EmailConfigView{}, err
	}

	v := EmailConfigView{
		SMTPHost:       cfg.SmtpHost,
		SMTPPort:       cfg.SmtpPort,
		UseTLS:         cfg.UseTls,
		SMTPUsername:   cfg.SmtpUsername,
		FromEmail:      cfg.FromEmail,
		FromName:       cfg.FromName,
		RecipientEmail: cfg.RecipientEmail,
		IsConfigured:   cfg.IsConfigured,
	}
	if cfg.SmtpPassword != "" {
		v.SMTPPassword = PasswordPlaceholder
	}
	if !cfg.UpdatedAt.IsZero() {
		t := cfg.UpdatedAt
		v.UpdatedAt = &t
	}
	return v, nil
}

// Input returns the editable fields of v, for partial updates.
func (v EmailConfigView) Input() EmailConfigInput {
	return EmailConfigInput{
		SMTPHost:       v.SMTPHost,
		SMTPPort:       v.SMTPPort,
		UseTLS:         v.UseTLS,
		SMTPUsername:   v.SMTPUsername,
		SMTPPassword:   v.SMTPPassword,
		FromEmail:      v.FromEmail,
		FromName:       v.FromName,
		RecipientEmail: v.RecipientEmail,
	}
}

// SaveEmailConfig stores the SMTP configuration. An empty password or the
// placeholder keeps the stored password.
func (s *SettingsService) SaveEmailConfig(ctx context.Context, in EmailConfigInput, actor Actor) error {
	in.SMTPHost = strings.TrimSpace(in.SMTPHost)
	in.SMTPUsername = strings.TrimSpace(in.SMTPUsername)
	in.FromEmail = strings.TrimSpace(in.FromEmail)
	in.FromName = s.sanitizer.Text(in.FromName)
	in.RecipientEmail = strings.TrimSpace(in.RecipientEmail)

	verr := NewValidationError()
	if in.SMTPHost == "" || strings.ContainsAny(in.SMTPHost, " /:") {
		verr.Add("smtpHost", "a valid SMTP host is required")
	}
	if in.SMTPPort < 1 || in.SMTPPort > 65535 {
		verr.Add("smtpPort", "port must be between 1 and 65535")
	}
	if !validAddress(in.FromEmail) {
		verr.Add("fromEmail", "a valid sender address is required")
	}
	if !validAddress(in.RecipientEmail) {
		verr.Add("recipientEmail", "a valid recipient address is required")
	}
	if err := verr.Err(); err != nil {
		return err
	}

	err := store.WithTx(ctx, s.db, func(q *store.Queries) error {
		password := in.SMTPPassword
		if password == "" || password == PasswordPlaceholder {
			existing, err := q.GetEmailConfig(ctx)
			switch {
			case err == nil:
				password = existing.SmtpPassword
			case errors.Is(err, sql.ErrNoRows):
				password = ""
			default:
				return err
			}
		}
		return q.SaveEmailConfig(ctx, store.EmailConfig{
			SmtpHost:       in.SMTPHost,
			SmtpPort:       in.SMTPPort,
			UseTls:         in.UseTLS,
			SmtpUsername:   in.SMTPUsername,
			SmtpPassword:   password,
			FromEmail:      in.FromEmail,
			FromName:       in.FromName,
			RecipientEmail: in.RecipientEmail,
			IsConfigured:   true,
			UpdatedBy:      actorID(actor),
			UpdatedAt:      time.Now().UTC(),
		})
	})
	if err != nil {
		return fmt.Errorf("saving email config: %w", err)
	}

	s.events.Record(ctx, actor, model.EventCategoryConfig, "Email configuration updated",
		map[string]any{"smtp_host": in.SMTPHost, "smtp_port": in.SMTPPort})
	return nil
}

// SendTestEmail sends a test message to the configured recipient.
func (s *SettingsService) SendTestEmail(ctx context.Context, actor Actor) error {
	msg := mail.MarkdownMessage(nil, "Test Email - TEG Finance Admin",
		"## Email Configuration Test\n\nSuccess! Your email configuration is working correctly.\n\n"+
			"Contact form submissions will be sent to this email address.\n")
	if err := s.mailer.SendMail(ctx, msg); err != nil {
		s.events.RecordWarning(ctx, actor, model.EventCategoryConfig, "Test email failed",
			map[string]any{"error": err.Error()})
		return err
	}
	s.events.Record(ctx, actor, model.EventCategoryConfig, "Test email sent", nil)
	return nil
}

func validAddress(s string) bool {
	if s == "" {
		return false
	}
	addr, err := netmail.ParseAddress(s)
	return err == nil && addr.Address == s
}
