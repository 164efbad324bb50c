// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olegiv/tegsite/internal/auth"
	"github.com/olegiv/tegsite/internal/cache"
	"github.com/olegiv/tegsite/internal/mail"
	"github.com/olegiv/tegsite/internal/model"
	"github.com/olegiv/tegsite/internal/store"
)

// Authentication defaults.
const (
	DefaultMaxLoginAttempts = 5
	DefaultLockoutDuration  = 30 * time.Minute
	DefaultResetTokenTTL    = time.Hour
	MinPasswordLength       = 8

	twoFactorChallengeTTL = 5 * time.Minute
	challengeKeyPrefix    = "2fa:challenge:"
	resetMailTimeout      = 30 * time.Second
)

// AuthConfig holds the lockout and reset settings.
type AuthConfig struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	ResetTokenTTL    time.Duration
	// SiteURL prefixes the link in password reset emails.
	SiteURL string
}

// LoginResult is the outcome of a correct password.
type LoginResult struct {
	User              store.User
	RequiresTwoFactor bool
}

// twoFactorChallenge marks a user who passed the password step.
type twoFactorChallenge struct {
	UserID   int64     `json:"userId"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Authenticator verifies credentials and TOTP codes and enforces lockout.
type Authenticator struct {
	db         *sql.DB
	queries    *store.Queries
	challenges *cache.Namespace[twoFactorChallenge]
	mailer     mail.Sender
	events     *EventService
	cfg        AuthConfig
	logger     *slog.Logger
	now        func() time.Time

	pendingMail sync.WaitGroup
}

// NewAuthenticator creates an Authenticator. Pending 2FA challenges live in c.
func NewAuthenticator(db *sql.DB, c cache.Cache, mailer mail.Sender, events *EventService, cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = DefaultMaxLoginAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = DefaultLockoutDuration
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = DefaultResetTokenTTL
	}
	return &Authenticator{
		db:         db,
		queries:    store.New(db),
		challenges: cache.NewNamespace[twoFactorChallenge](c, challengeKeyPrefix, twoFactorChallengeTTL),
		mailer:     mailer,
		events:     events,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate checks username and password. Unknown and inactive users
// fail exactly like a wrong password. A locked account is rejected before
// the password is looked at, and the lock is evaluated against the clock
// inside the same transaction that counts failures.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string, client Actor) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	var (
		result  LoginResult
		authErr error
	)
	err := store.WithTx(ctx, a.db, func(q *store.Queries) error {
		now := a.now()

		user, err := q.GetActiveUserByUsername(ctx, username)
		if errors.Is(err, sql.ErrNoRows) {
			auth.CheckDummyPassword(password)
			authErr = ErrInvalidCredentials
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading user: %w", err)
		}

		if isLocked(user, now) {
			authErr = &AccountLockedError{Until: user.LockedUntil.Time}
			return nil
		}

		ok, err := auth.CheckPassword(password, user.PasswordHash)
		if err != nil {
			return fmt.Errorf("verifying password: %w", err)
		}
		if !ok {
			failed, err := a.recordFailure(ctx, q, user.ID, now)
			if err != nil {
				return err
			}
			authErr = failed.err()
			return nil
		}

		if auth.NeedsRehash(user.PasswordHash) {
			if hash, err := auth.HashPassword(password); err == nil {
				if err := q.RehashUserPassword(ctx, store.RehashUserPasswordParams{ID: user.ID, PasswordHash: hash}); err != nil {
					return fmt.Errorf("rehashing password: %w", err)
				}
				user.PasswordHash = hash
			}
		}

		if user.TotpEnabled {
			result = LoginResult{User: user, RequiresTwoFactor: true}
			return nil
		}

		if err := q.RecordSuccessfulLogin(ctx, store.RecordSuccessfulLoginParams{ID: user.ID, LastLoginAt: now}); err != nil {
			return fmt.Errorf("recording login: %w", err)
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = sql.NullTime{}
		user.LastLoginAt = sql.NullTime{Time: now, Valid: true}
		result = LoginResult{User: user}
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}
	if authErr != nil {
		a.auditFailure(ctx, client, username, authErr)
		return LoginResult{}, authErr
	}

	if result.RequiresTwoFactor {
		challenge := twoFactorChallenge{UserID: result.User.ID, IssuedAt: a.now()}
		if err := a.challenges.Store(ctx, challengeID(result.User.ID), challenge); err != nil {
			return LoginResult{}, fmt.Errorf("storing two-factor challenge: %w", err)
		}
		return result, nil
	}

	client.UserID = result.User.ID
	a.events.Record(ctx, client, model.EventCategoryAuth, "User logged in", map[string]any{"username": result.User.Username})
	return result, nil
}

// VerifyTwoFactor completes a login that stopped at the TOTP step. Each
// time step is accepted once; wrong codes count as failed attempts.
func (a *Authenticator) VerifyTwoFactor(ctx context.Context, userID int64, code string, client Actor) (store.User, error) {
	if _, ok := a.challenges.Load(ctx, challengeID(userID)); !ok {
		return store.User{}, ErrTwoFactorRequired
	}

	var (
		user    store.User
		authErr error
	)
	err := store.WithTx(ctx, a.db, func(q *store.Queries) error {
		now := a.now()

		u, err := q.GetActiveUserByID(ctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			authErr = ErrTwoFactorRequired
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading user: %w", err)
		}
		if isLocked(u, now) {
			authErr = &AccountLockedError{Until: u.LockedUntil.Time}
			return nil
		}
		if !u.TotpEnabled || !u.TotpSecret.Valid {
			authErr = ErrTwoFactorRequired
			return nil
		}

		step, ok := auth.MatchTOTP(u.TotpSecret.String, code, now, u.TotpLastStep)
		if !ok {
			failed, err := a.recordFailure(ctx, q, u.ID, now)
			if err != nil {
				return err
			}
			if failed.locked {
				authErr = failed.err()
			} else {
				authErr = ErrInvalidTwoFactorCode
			}
			return nil
		}

		n, err := q.ConsumeTotpStep(ctx, store.ConsumeTotpStepParams{ID: u.ID, Step: step, UpdatedAt: now})
		if err != nil {
			return fmt.Errorf("consuming totp step: %w", err)
		}
		if n == 0 {
			authErr = ErrInvalidTwoFactorCode
			return nil
		}

		if err := q.RecordSuccessfulLogin(ctx, store.RecordSuccessfulLoginParams{ID: u.ID, LastLoginAt: now}); err != nil {
			return fmt.Errorf("recording login: %w", err)
		}
		u.FailedLoginAttempts = 0
		u.LockedUntil = sql.NullTime{}
		u.TotpLastStep = step
		u.LastLoginAt = sql.NullTime{Time: now, Valid: true}
		user = u
		return nil
	})
	if err != nil {
		return store.User{}, err
	}

	if authErr != nil {
		client.UserID = userID
		if errors.Is(authErr, ErrAccountLocked) {
			_ = a.challenges.Forget(ctx, challengeID(userID))
		}
		a.auditFailure(ctx, client, "", authErr)
		return store.User{}, authErr
	}

	_ = a.challenges.Forget(ctx, challengeID(userID))
	client.UserID = user.ID
	a.events.Record(ctx, client, model.EventCategoryAuth, "User logged in with two-factor code", map[string]any{"username": user.Username})
	return user, nil
}

// failedAttempt is the counter state after a wrong password or code.
type failedAttempt struct {
	locked    bool
	until     time.Time
	remaining int
}

// err returns AccountLockedError when this attempt tripped the lock,
// otherwise InvalidCredentialsError with the attempts left.
func (f failedAttempt) err() error {
	if f.locked {
		return &AccountLockedError{Until: f.until}
	}
	return &InvalidCredentialsError{Remaining: f.remaining}
}

// recordFailure counts a failed attempt for userID.
func (a *Authenticator) recordFailure(ctx context.Context, q *store.Queries, userID int64, now time.Time) (failedAttempt, error) {
	until := now.Add(a.cfg.LockoutDuration)
	row, err := q.RecordFailedLogin(ctx, store.RecordFailedLoginParams{
		ID:          userID,
		Threshold:   int64(a.cfg.MaxLoginAttempts),
		LockedUntil: until,
		UpdatedAt:   now,
	})
	if err != nil {
		return failedAttempt{}, fmt.Errorf("recording failed login: %w", err)
	}
	return failedAttempt{
		locked:    row.Locked,
		until:     until,
		remaining: a.cfg.MaxLoginAttempts - int(row.FailedLoginAttempts),
	}, nil
}

func (a *Authenticator) auditFailure(ctx context.Context, client Actor, username string, authErr error) {
	meta := map[string]any{"reason": authErr.Error()}
	if username != "" {
		meta["username"] = username
	}
	msg := "Failed login attempt"
	if errors.Is(authErr, ErrAccountLocked) {
		msg = "Login rejected: account locked"
	}
	a.events.RecordWarning(ctx, client, model.EventCategoryAuth, msg, meta)
}

// SetupTwoFactor generates a new secret for the user and stores it disabled.
// The secret becomes active after EnableTwoFactor confirms a code.
func (a *Authenticator) SetupTwoFactor(ctx context.Context, userID int64) (auth.TOTPEnrollment, error) {
	user, err := a.queries.GetActiveUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.TOTPEnrollment{}, ErrNotFound
	}
	if err != nil {
		return auth.TOTPEnrollment{}, err
	}
	if user.TotpEnabled {
		return auth.TOTPEnrollment{}, fieldError("totp", "two-factor authentication is already enabled")
	}

	enrollment, err := auth.GenerateTOTP(user.Email)
	if err != nil {
		return auth.TOTPEnrollment{}, err
	}

	if err := a.queries.UpdateUserTotp(ctx, store.UpdateUserTotpParams{
		ID:          user.ID,
		TotpSecret:  sql.NullString{String: enrollment.Secret, Valid: true},
		TotpEnabled: false,
		UpdatedAt:   a.now(),
	}); err != nil {
		return auth.TOTPEnrollment{}, fmt.Errorf("storing totp secret: %w", err)
	}
	return enrollment, nil
}

// EnableTwoFactor turns on 2FA once code matches the pending secret. The
// confirming step is consumed so the same code cannot complete a login.
func (a *Authenticator) EnableTwoFactor(ctx context.Context, userID int64, code string, client Actor) error {
	err := store.WithTx(ctx, a.db, func(q *store.Queries) error {
		user, err := q.GetActiveUserByID(ctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if user.TotpEnabled {
			return fieldError("totp", "two-factor authentication is already enabled")
		}
		if !user.TotpSecret.Valid || user.TotpSecret.String == "" {
			return fieldError("totp", "two-factor setup has not been started")
		}

		now := a.now()
		step, ok := auth.MatchTOTP(user.TotpSecret.String, code, now, user.TotpLastStep)
		if !ok {
			return ErrInvalidTwoFactorCode
		}

		if err := q.UpdateUserTotp(ctx, store.UpdateUserTotpParams{
			ID:          user.ID,
			TotpSecret:  user.TotpSecret,
			TotpEnabled: true,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
		_, err = q.ConsumeTotpStep(ctx, store.ConsumeTotpStepParams{ID: user.ID, Step: step, UpdatedAt: now})
		return err
	})
	if err != nil {
		return err
	}

	client.UserID = userID
	a.events.Record(ctx, client, model.EventCategoryAuth, "Two-factor authentication enabled", nil)
	return nil
}

// DisableTwoFactor clears the secret and turns 2FA off.
func (a *Authenticator) DisableTwoFactor(ctx context.Context, userID int64, client Actor) error {
	if err := a.queries.UpdateUserTotp(ctx, store.UpdateUserTotpParams{
		ID:        userID,
		UpdatedAt: a.now(),
	}); err != nil {
		return err
	}

	client.UserID = userID
	a.events.RecordWarning(ctx, client, model.EventCategoryAuth, "Two-factor authentication disabled", nil)
	return nil
}

// RequestPasswordReset emails a reset link when email belongs to an active
// user. The result never reveals whether the address is known.
func (a *Authenticator) RequestPasswordReset(ctx context.Context, email string, client Actor) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fieldError("email", "email is required")
	}

	user, err := a.queries.GetActiveUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := auth.GenerateToken()
	if err != nil {
		return err
	}

	now := a.now()
	if err := a.queries.SetPasswordResetToken(ctx, store.SetPasswordResetTokenParams{
		ID:        user.ID,
		Token:     auth.HashToken(token),
		ExpiresAt: now.Add(a.cfg.ResetTokenTTL),
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}

	client.UserID = user.ID
	a.events.Record(ctx, client, model.EventCategoryAuth, "Password reset requested", nil)

	msg := mail.MarkdownMessage([]string{user.Email}, "Password Reset Request - TEG Finance Admin",
		resetEmailBody(a.cfg.SiteURL, token, a.cfg.ResetTokenTTL))
	a.pendingMail.Add(1)
	go a.sendResetMail(msg, user.ID)
	return nil
}

// sendResetMail runs outside the request so known and unknown addresses
// answer in similar time.
func (a *Authenticator) sendResetMail(msg mail.Message, userID int64) {
	defer a.pendingMail.Done()

	ctx, cancel := context.WithTimeout(context.Background(), resetMailTimeout)
	defer cancel()
	if err := a.mailer.SendMail(ctx, msg); err != nil {
		a.logger.Error("failed to send password reset email", "error", err, "user_id", userID)
	}
}

// Wait blocks until queued password reset emails have been handed to the mailer.
func (a *Authenticator) Wait() {
	a.pendingMail.Wait()
}

// ResetPassword sets a new password for the holder of a valid reset token
// and revokes all of that user's sessions.
func (a *Authenticator) ResetPassword(ctx context.Context, token, newPassword string, client Actor) error {
	if token == "" {
		return ErrInvalidResetToken
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	var userID int64
	err = store.WithTx(ctx, a.db, func(q *store.Queries) error {
		now := a.now()
		user, err := q.GetUserByResetToken(ctx, store.GetUserByResetTokenParams{Token: auth.HashToken(token), Now: now})
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidResetToken
		}
		if err != nil {
			return err
		}
		userID = user.ID

		if err := q.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{ID: user.ID, PasswordHash: hash, UpdatedAt: now}); err != nil {
			return err
		}
		return q.DeleteSessionsForUser(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	client.UserID = userID
	a.events.Record(ctx, client, model.EventCategoryAuth, "Password reset completed", nil)
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return fieldError("password", "password must be at least "+strconv.Itoa(MinPasswordLength)+" characters")
	}
	return nil
}

func isLocked(u store.User, now time.Time) bool {
	return u.LockedUntil.Valid && u.LockedUntil.Time.After(now)
}

func challengeID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func resetEmailBody(siteURL, token string, ttl time.Duration) string {
	link := siteURL + "/admin/reset-password?token=" + url.QueryEscape(token)
	return fmt.Sprintf(`## Password Reset Request

You have requested to reset your password for the TEG Finance admin panel.

[Reset your password](%s)

Or copy this link into your browser:

%s

This link will expire in %s.

If you did not request this password reset, please ignore this email.

---
TEG Finance Admin Panel
`, link, link, humanDuration(ttl))
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return strconv.Itoa(int(d/time.Hour)) + " hours"
	default:
		return strconv.Itoa(int(d/time.Minute)) + " minutes"
	}
}
