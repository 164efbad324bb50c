// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const sessionColumns = `id, token, user_id, ip_address, user_agent, expires_at, last_activity, created_at`

const sessionColumnsQualified = `s.id, s.token, s.user_id, s.ip_address, s.user_agent, s.expires_at, s.last_activity, s.created_at`

func scanSession(row scanner) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Token, &s.UserID, &s.IpAddress, &s.UserAgent, &s.ExpiresAt, &s.LastActivity, &s.CreatedAt)
	return s, err
}

// CreateSessionParams holds the columns for CreateSession.
type CreateSessionParams struct {
	Token     string
	UserID    int64
	IpAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreateSession inserts a session row.
func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO sessions (token, user_id, ip_address, user_agent, expires_at, last_activity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.Token, arg.UserID, arg.IpAddress, arg.UserAgent, arg.ExpiresAt, arg.CreatedAt, arg.CreatedAt,
	)
	if err != nil {
		return Session{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Session{}, err
	}
	return scanSession(q.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
}

// GetValidSessionParams holds the arguments for GetValidSession.
type GetValidSessionParams struct {
	Token string
	Now   time.Time
}

// GetValidSession returns an unexpired session owned by an active user.
func (q *Queries) GetValidSession(ctx context.Context, arg GetValidSessionParams) (SessionWithUser, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+sessionColumnsQualified+`, u.username, u.email, u.totp_enabled
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ? AND u.is_active = 1`,
		arg.Token, arg.Now,
	)
	var r SessionWithUser
	err := row.Scan(
		&r.ID, &r.Token, &r.UserID, &r.IpAddress, &r.UserAgent, &r.ExpiresAt, &r.LastActivity, &r.CreatedAt,
		&r.Username, &r.Email, &r.TotpEnabled,
	)
	return r, err
}

// TouchSessionParams holds the arguments for TouchSession.
type TouchSessionParams struct {
	Token        string
	LastActivity time.Time
	ExpiresAt    time.Time
}

// TouchSession slides the expiry of a still-valid session.
func (q *Queries) TouchSession(ctx context.Context, arg TouchSessionParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE sessions SET last_activity = ?, expires_at = ?
		WHERE token = ? AND expires_at > ?`,
		arg.LastActivity, arg.ExpiresAt, arg.Token, arg.LastActivity,
	)
	return err
}

// DeleteSession removes a session by token.
func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteUserSessionParams holds the arguments for DeleteUserSession.
type DeleteUserSessionParams struct {
	ID     int64
	UserID int64
}

// DeleteUserSession removes one session owned by a user.
func (q *Queries) DeleteUserSession(ctx context.Context, arg DeleteUserSessionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND user_id = ?`, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteSessionsForUser removes every session of a user.
func (q *Queries) DeleteSessionsForUser(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// DeleteExpiredSessions removes rows whose expiry is at or before now.
func (q *Queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListSessionsForUserParams holds the arguments for ListSessionsForUser.
type ListSessionsForUserParams struct {
	UserID int64
	Now    time.Time
}

// ListSessionsForUser returns a user's unexpired sessions, most recent first.
func (q *Queries) ListSessionsForUser(ctx context.Context, arg ListSessionsForUserParams) ([]Session, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND expires_at > ?
		ORDER BY last_activity DESC`,
		arg.UserID, arg.Now,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
