// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/tegsite/internal/auth"
)

// AdminSeed holds the bootstrap administrator credentials.
type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// defaultSettings are the site settings present on a fresh install.
var defaultSettings = []InsertSettingIfMissingParams{
	{Key: "site_name", Value: "TEG Finance", IsPublic: true},
	{Key: "site_tagline", Value: "", IsPublic: true},
	{Key: "contact_email", Value: "", IsPublic: true},
	{Key: "contact_phone", Value: "", IsPublic: true},
	{Key: "contact_address", Value: "", IsPublic: true},
	{Key: "business_hours", Value: "", IsPublic: true},
	{Key: "footer_text", Value: "", IsPublic: true},
	{Key: "analytics_id", Value: "", IsPublic: false},
}

// Seed creates initial data: default settings, the email configuration row
// and, when no user exists yet, the bootstrap administrator.
func Seed(ctx context.Context, db *sql.DB, admin AdminSeed) error {
	now := time.Now().UTC()

	err := WithTx(ctx, db, func(q *Queries) error {
		for _, s := range defaultSettings {
			s.UpdatedAt = now
			if err := q.InsertSettingIfMissing(ctx, s); err != nil {
				return fmt.Errorf("seeding setting %s: %w", s.Key, err)
			}
		}
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO email_config (id, updated_at) VALUES (1, ?) ON CONFLICT (id) DO NOTHING`, now); err != nil {
			return fmt.Errorf("seeding email config: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return EnsureAdmin(ctx, db, admin)
}

// EnsureAdmin creates the bootstrap administrator if the users table is empty.
func EnsureAdmin(ctx context.Context, db *sql.DB, admin AdminSeed) error {
	queries := New(db)

	count, err := queries.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		slog.Debug("users exist, skipping admin bootstrap")
		return nil
	}
	if admin.Username == "" || admin.Email == "" || admin.Password == "" {
		slog.Warn("no users and no admin credentials configured; set TEG_ADMIN_USERNAME, TEG_ADMIN_EMAIL and TEG_ADMIN_PASSWORD")
		return nil
	}

	passwordHash, err := auth.HashPassword(admin.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user, err := queries.CreateUser(ctx, CreateUserParams{
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created admin user", "id", user.ID, "username", user.Username)
	return nil
}

// ResetAdminPassword sets a new password for username, clears its lockout
// and revokes all of its sessions.
func ResetAdminPassword(ctx context.Context, db *sql.DB, username, password string) error {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	return WithTx(ctx, db, func(q *Queries) error {
		user, err := q.GetUserByUsername(ctx, username)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %q not found", username)
		}
		if err != nil {
			return fmt.Errorf("loading user: %w", err)
		}
		if err := q.UpdateUserPassword(ctx, UpdateUserPasswordParams{
			ID:           user.ID,
			PasswordHash: passwordHash,
			UpdatedAt:    time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("updating password: %w", err)
		}
		return q.DeleteSessionsForUser(ctx, user.ID)
	})
}
