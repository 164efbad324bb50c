// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/tegsite/internal/store"
	"github.com/olegiv/tegsite/internal/testutil"
)

func newSettingsService(env *testEnv) *SettingsService {
	return NewSettingsService(env.db, env.cache, env.sanitizer, env.mailer, env.events, testutil.TestLoggerSilent())
}

func TestSettings_UpdateAndPublic(t *testing.T) {
	env := newTestEnv(t)
	svc := newSettingsService(env)
	ctx := context.Background()

	require.NoError(t, store.New(env.db).InsertSettingIfMissing(ctx, store.InsertSettingIfMissingParams{
		Key: "analytics_key", Value: "secret", IsPublic: false, UpdatedAt: time.Now().UTC(),
	}))

	require.NoError(t, svc.Update(ctx, map[string]string{
		"site_name":     "TEG Finance",
		"contact_phone": "<b>+1 555 0100</b>",
	}, Actor{}))

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"analytics_key": "secret",
		"site_name":     "TEG Finance",
		"contact_phone": "+1 555 0100",
	}, all)

	public, err := svc.Public(ctx)
	require.NoError(t, err)
	assert.NotContains(t, public, "analytics_key")
	assert.Equal(t, "TEG Finance", public["site_name"])

	// Updates invalidate the cached public view.
	require.NoError(t, svc.Update(ctx, map[string]string{"site_name": "TEG Finance Ltd"}, Actor{}))
	public, err = svc.Public(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TEG Finance Ltd", public["site_name"])
}

func TestSettings_UpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := newSettingsService(env)
	ctx := context.Background()

	err := svc.Update(ctx, nil, Actor{})
	assert.ErrorIs(t, err, ErrValidation)

	err = svc.Update(ctx, map[string]string{"site_name": "ok", "Bad Key": "x"}, Actor{})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, validationFields(t, err), "Bad Key")

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "nothing is written when any key is invalid")
}

func validEmailConfig() EmailConfigInput {
	in := NewEmailConfigInput()
	in.SMTPUsername = "mailer"
	in.SMTPPassword = "s3cret"
	in.FromEmail = "noreply@teg.example"
	in.RecipientEmail = "office@teg.example"
	return in
}

func TestEmailConfig_MasksAndKeepsPassword(t *testing.T) {
	env := newTestEnv(t)
	svc := newSettingsService(env)
	ctx := context.Background()

	initial, err := svc.EmailConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "smtp.gmail.com", initial.SMTPHost)
	assert.False(t, initial.IsConfigured)

	require.NoError(t, svc.SaveEmailConfig(ctx, validEmailConfig(), Actor{}))

	view, err := svc.EmailConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, PasswordPlaceholder, view.SMTPPassword)
	assert.True(t, view.IsConfigured)
	assert.Equal(t, "office@teg.example", view.RecipientEmail)

	in := view.Input()
	in.SMTPPort = 465
	require.NoError(t, svc.SaveEmailConfig(ctx, in, Actor{}))

	stored, err := store.New(env.db).GetEmailConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", stored.SmtpPassword, "placeholder keeps the stored password")
	assert.Equal(t, int64(465), stored.SmtpPort)

	in.SMTPPassword = "rotated"
	require.NoError(t, svc.SaveEmailConfig(ctx, in, Actor{}))
	stored, err = store.New(env.db).GetEmailConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rotated", stored.SmtpPassword)
}

func TestEmailConfig_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc := newSettingsService(env)

	tests := []struct {
		name   string
		mutate func(*EmailConfigInput)
		field  string
	}{
		{"missing host", func(in *EmailConfigInput) { in.SMTPHost = "" }, "smtpHost"},
		{"host with scheme", func(in *EmailConfigInput) { in.SMTPHost = "smtp://x" }, "smtpHost"},
		{"port zero", func(in *EmailConfigInput) { in.SMTPPort = 0 }, "smtpPort"},
		{"port too high", func(in *EmailConfigInput) { in.SMTPPort = 70000 }, "smtpPort"},
		{"bad sender", func(in *EmailConfigInput) { in.FromEmail = "nope" }, "fromEmail"},
		{"missing recipient", func(in *EmailConfigInput) { in.RecipientEmail = "" }, "recipientEmail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validEmailConfig()
			tt.mutate(&in)
			err := svc.SaveEmailConfig(context.Background(), in, Actor{})
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, validationFields(t, err), tt.field)
		})
	}
}

func TestSendTestEmail(t *testing.T) {
	env := newTestEnv(t)
	svc := newSettingsService(env)
	ctx := context.Background()

	require.NoError(t, svc.SendTestEmail(ctx, Actor{}))
	msgs := env.mailer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Test Email - TEG Finance Admin", msgs[0].Subject)
	assert.Empty(t, msgs[0].To)

	env.mailer.err = errors.New("auth failed")
	err := svc.SendTestEmail(ctx, Actor{})
	assert.EqualError(t, err, "auth failed")

	events, err := env.events.ListEvents(ctx, "config", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Test email failed", events[0].Message)
}
