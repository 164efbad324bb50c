// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

// ListSettings returns settings ordered by key, optionally only public ones.
func (q *Queries) ListSettings(ctx context.Context, publicOnly bool) ([]SiteSetting, error) {
	query := `SELECT id, setting_key, setting_value, is_public, updated_by, updated_at FROM site_settings`
	if publicOnly {
		query += ` WHERE is_public = 1`
	}
	query += ` ORDER BY setting_key`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []SiteSetting
	for rows.Next() {
		var s SiteSetting
		if err := rows.Scan(&s.ID, &s.Key, &s.Value, &s.IsPublic, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// UpsertSettingParams holds the arguments for UpsertSetting.
type UpsertSettingParams struct {
	Key       string
	Value     string
	UpdatedBy sql.NullInt64
	UpdatedAt time.Time
}

// UpsertSetting inserts or updates a setting value. New keys are public;
// existing keys keep their visibility.
func (q *Queries) UpsertSetting(ctx context.Context, arg UpsertSettingParams) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO site_settings (setting_key, setting_value, is_public, updated_by, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		arg.Key, arg.Value, arg.UpdatedBy, arg.UpdatedAt,
	)
	return err
}

// InsertSettingIfMissingParams holds the arguments for InsertSettingIfMissing.
type InsertSettingIfMissingParams struct {
	Key       string
	Value     string
	IsPublic  bool
	UpdatedAt time.Time
}

// InsertSettingIfMissing seeds a setting without overwriting an existing one.
func (q *Queries) InsertSettingIfMissing(ctx context.Context, arg InsertSettingIfMissingParams) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO site_settings (setting_key, setting_value, is_public, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (setting_key) DO NOTHING`,
		arg.Key, arg.Value, arg.IsPublic, arg.UpdatedAt,
	)
	return err
}

// GetEmailConfig returns the email configuration row.
func (q *Queries) GetEmailConfig(ctx context.Context) (EmailConfig, error) {
	var c EmailConfig
	err := q.db.QueryRowContext(ctx, `SELECT smtp_host, smtp_port, use_tls, smtp_username, smtp_password,
			from_email, from_name, recipient_email, is_configured, updated_by, updated_at
		FROM email_config WHERE id = 1`).Scan(
		&c.SmtpHost,
		&c.SmtpPort,
		&c.UseTls,
		&c.SmtpUsername,
		&c.SmtpPassword,
		&c.FromEmail,
		&c.FromName,
		&c.RecipientEmail,
		&c.IsConfigured,
		&c.UpdatedBy,
		&c.UpdatedAt,
	)
	return c, err
}

// SaveEmailConfig writes the single email configuration row.
func (q *Queries) SaveEmailConfig(ctx context.Context, c EmailConfig) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO email_config (
			id, smtp_host, smtp_port, use_tls, smtp_username, smtp_password,
			from_email, from_name, recipient_email, is_configured, updated_by, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			smtp_host = excluded.smtp_host,
			smtp_port = excluded.smtp_port,
			use_tls = excluded.use_tls,
			smtp_username = excluded.smtp_username,
			smtp_password = excluded.smtp_password,
			from_email = excluded.from_email,
			from_name = excluded.from_name,
			recipient_email = excluded.recipient_email,
			is_configured = excluded.is_configured,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		c.SmtpHost, c.SmtpPort, c.UseTls, c.SmtpUsername, c.SmtpPassword,
		c.FromEmail, c.FromName, c.RecipientEmail, c.IsConfigured, c.UpdatedBy, c.UpdatedAt,
	)
	return err
}
