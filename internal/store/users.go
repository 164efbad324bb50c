// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const userColumns = `id, username, email, password_hash, totp_secret, totp_enabled, totp_last_step,
	failed_login_attempts, locked_until, password_reset_token, password_reset_expires,
	is_active, last_login_at, created_at, updated_at`

func scanUser(row scanner) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.TotpSecret,
		&u.TotpEnabled,
		&u.TotpLastStep,
		&u.FailedLoginAttempts,
		&u.LockedUntil,
		&u.PasswordResetToken,
		&u.PasswordResetExpires,
		&u.IsActive,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// CreateUserParams holds the columns for CreateUser.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUser inserts a user and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO users (username, email, password_hash, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		arg.Username, arg.Email, arg.PasswordHash, arg.IsActive, arg.CreatedAt, arg.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

// GetUserByID returns a user regardless of active state.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetActiveUserByID returns an active user.
func (q *Queries) GetActiveUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? AND is_active = 1`, id)
	return scanUser(row)
}

// GetActiveUserByUsername returns an active user by exact username.
func (q *Queries) GetActiveUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? AND is_active = 1`, username)
	return scanUser(row)
}

// GetUserByUsername returns a user by exact username regardless of active state.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// GetActiveUserByEmail returns an active user by email (case-insensitive).
func (q *Queries) GetActiveUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE AND is_active = 1`, email)
	return scanUser(row)
}

// GetUserByResetTokenParams holds the arguments for GetUserByResetToken.
type GetUserByResetTokenParams struct {
	Token string
	Now   time.Time
}

// GetUserByResetToken returns the active user owning an unexpired reset token.
func (q *Queries) GetUserByResetToken(ctx context.Context, arg GetUserByResetTokenParams) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users
		WHERE password_reset_token = ? AND password_reset_expires > ? AND is_active = 1`,
		arg.Token, arg.Now,
	)
	return scanUser(row)
}

// CountUsers returns the number of users.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// RecordFailedLoginParams holds the arguments for RecordFailedLogin.
type RecordFailedLoginParams struct {
	ID          int64
	Threshold   int64
	LockedUntil time.Time
	UpdatedAt   time.Time
}

// RecordFailedLoginRow is the outcome of RecordFailedLogin.
type RecordFailedLoginRow struct {
	FailedLoginAttempts int64
	Locked              bool
}

// RecordFailedLogin increments the failed-attempt counter in a single
// statement. When the incremented count reaches Threshold the counter
// resets to zero and locked_until is set.
func (q *Queries) RecordFailedLogin(ctx context.Context, arg RecordFailedLoginParams) (RecordFailedLoginRow, error) {
	row := q.db.QueryRowContext(ctx, `UPDATE users SET
			locked_until = CASE WHEN failed_login_attempts + 1 >= ?1 THEN ?2 ELSE locked_until END,
			failed_login_attempts = CASE WHEN failed_login_attempts + 1 >= ?1 THEN 0 ELSE failed_login_attempts + 1 END,
			updated_at = ?3
		WHERE id = ?4
		RETURNING failed_login_attempts`,
		arg.Threshold, arg.LockedUntil, arg.UpdatedAt, arg.ID,
	)
	var r RecordFailedLoginRow
	if err := row.Scan(&r.FailedLoginAttempts); err != nil {
		return r, err
	}
	// The counter only returns to zero on the attempt that trips the lock.
	r.Locked = r.FailedLoginAttempts == 0
	return r, nil
}

// RecordSuccessfulLoginParams holds the arguments for RecordSuccessfulLogin.
type RecordSuccessfulLoginParams struct {
	ID          int64
	LastLoginAt time.Time
}

// RecordSuccessfulLogin resets the counter, clears any lockout and stamps the login time.
func (q *Queries) RecordSuccessfulLogin(ctx context.Context, arg RecordSuccessfulLoginParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE users SET
			failed_login_attempts = 0, locked_until = NULL, last_login_at = ?, updated_at = ?
		WHERE id = ?`,
		arg.LastLoginAt, arg.LastLoginAt, arg.ID,
	)
	return err
}

// ConsumeTotpStepParams holds the arguments for ConsumeTotpStep.
type ConsumeTotpStepParams struct {
	ID        int64
	Step      int64
	UpdatedAt time.Time
}

// ConsumeTotpStep records step as used. It affects no row when a step at or
// after it was already consumed, so each code is accepted once.
func (q *Queries) ConsumeTotpStep(ctx context.Context, arg ConsumeTotpStepParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE users SET totp_last_step = ?, updated_at = ?
		WHERE id = ? AND totp_last_step < ?`,
		arg.Step, arg.UpdatedAt, arg.ID, arg.Step,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateUserTotpParams holds the arguments for UpdateUserTotp.
type UpdateUserTotpParams struct {
	ID          int64
	TotpSecret  sql.NullString
	TotpEnabled bool
	UpdatedAt   time.Time
}

// UpdateUserTotp stores the TOTP secret and enabled flag.
func (q *Queries) UpdateUserTotp(ctx context.Context, arg UpdateUserTotpParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE users SET totp_secret = ?, totp_enabled = ?, totp_last_step = 0, updated_at = ?
		WHERE id = ?`,
		arg.TotpSecret, arg.TotpEnabled, arg.UpdatedAt, arg.ID,
	)
	return err
}

// SetPasswordResetTokenParams holds the arguments for SetPasswordResetToken.
type SetPasswordResetTokenParams struct {
	ID        int64
	Token     string
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// SetPasswordResetToken stores a reset token and its expiry.
func (q *Queries) SetPasswordResetToken(ctx context.Context, arg SetPasswordResetTokenParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE users SET password_reset_token = ?, password_reset_expires = ?, updated_at = ?
		WHERE id = ?`,
		arg.Token, arg.ExpiresAt, arg.UpdatedAt, arg.ID,
	)
	return err
}

// UpdateUserPasswordParams holds the arguments for UpdateUserPassword.
type UpdateUserPasswordParams struct {
	ID           int64
	PasswordHash string
	UpdatedAt    time.Time
}

// UpdateUserPassword replaces the hash and clears any reset token and lockout.
func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE users SET
			password_hash = ?, password_reset_token = NULL, password_reset_expires = NULL,
			failed_login_attempts = 0, locked_until = NULL, updated_at = ?
		WHERE id = ?`,
		arg.PasswordHash, arg.UpdatedAt, arg.ID,
	)
	return err
}

// RehashUserPasswordParams holds the arguments for RehashUserPassword.
type RehashUserPasswordParams struct {
	ID           int64
	PasswordHash string
}

// RehashUserPassword swaps the stored hash without touching other columns.
func (q *Queries) RehashUserPassword(ctx context.Context, arg RehashUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, arg.PasswordHash, arg.ID)
	return err
}

// ClearExpiredResetTokens removes reset tokens whose expiry is before now.
func (q *Queries) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE users SET password_reset_token = NULL, password_reset_expires = NULL
		WHERE password_reset_token IS NOT NULL AND password_reset_expires < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
