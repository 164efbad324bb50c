// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session stores server-side admin sessions keyed by an opaque token.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mileusna/useragent"

	"github.com/olegiv/tegsite/internal/auth"
	"github.com/olegiv/tegsite/internal/store"
)

// DefaultLifetime is how long a session stays valid without activity.
const DefaultLifetime = 24 * time.Hour

// ErrSessionExpired is returned when a token is unknown, expired or belongs
// to an inactive user.
var ErrSessionExpired = errors.New("session expired or invalid")

// ErrSessionNotFound is returned when revoking a session the user does not own.
var ErrSessionNotFound = errors.New("session not found")

// Identity is the authenticated principal attached to a request.
type Identity struct {
	SessionID        int64
	UserID           int64
	Username         string
	Email            string
	TwoFactorEnabled bool
	Token            string
	Expiry           time.Time
	LastActivity     time.Time
}

// Info describes one of a user's active sessions for display.
type Info struct {
	ID           int64     `json:"id"`
	IPAddress    string    `json:"ipAddress"`
	Browser      string    `json:"browser"`
	OS           string    `json:"os"`
	Device       string    `json:"device"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Current      bool      `json:"current"`
}

// Store manages session rows.
type Store struct {
	queries  *store.Queries
	lifetime time.Duration
	now      func() time.Time
}

// NewStore creates a Store. A non-positive lifetime selects DefaultLifetime.
func NewStore(db *sql.DB, lifetime time.Duration) *Store {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Store{
		queries:  store.New(db),
		lifetime: lifetime,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Lifetime returns the sliding session lifetime.
func (s *Store) Lifetime() time.Duration {
	return s.lifetime
}

// Create mints a session for userID and returns its token. The row is
// committed before Create returns.
func (s *Store) Create(ctx context.Context, userID int64, ip, userAgent string) (string, error) {
	token, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}

	now := s.now()
	if _, err := s.queries.CreateSession(ctx, store.CreateSessionParams{
		Token:     token,
		UserID:    userID,
		IpAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.lifetime),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

// Resolve returns the identity behind token. Expired rows are left for Sweep.
func (s *Store) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrSessionExpired
	}

	row, err := s.queries.GetValidSession(ctx, store.GetValidSessionParams{Token: token, Now: s.now()})
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrSessionExpired
	}
	if err != nil {
		return Identity{}, fmt.Errorf("resolving session: %w", err)
	}

	return Identity{
		SessionID:        row.ID,
		UserID:           row.UserID,
		Username:         row.Username,
		Email:            row.Email,
		TwoFactorEnabled: row.TotpEnabled,
		Token:            row.Token,
		Expiry:           row.ExpiresAt,
		LastActivity:     row.LastActivity,
	}, nil
}

// Touch records activity and slides the expiry to now + lifetime.
func (s *Store) Touch(ctx context.Context, token string) error {
	now := s.now()
	return s.queries.TouchSession(ctx, store.TouchSessionParams{
		Token:        token,
		LastActivity: now,
		ExpiresAt:    now.Add(s.lifetime),
	})
}

// Revoke deletes the session with token. Unknown tokens are not an error.
func (s *Store) Revoke(ctx context.Context, token string) error {
	return s.queries.DeleteSession(ctx, token)
}

// RevokeByID deletes one of userID's sessions.
func (s *Store) RevokeByID(ctx context.Context, userID, sessionID int64) error {
	n, err := s.queries.DeleteUserSession(ctx, store.DeleteUserSessionParams{ID: sessionID, UserID: userID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeAllForUser deletes every session of userID.
func (s *Store) RevokeAllForUser(ctx context.Context, userID int64) error {
	return s.queries.DeleteSessionsForUser(ctx, userID)
}

// ListForUser returns userID's live sessions. The one matching currentToken
// is flagged as current.
func (s *Store) ListForUser(ctx context.Context, userID int64, currentToken string) ([]Info, error) {
	rows, err := s.queries.ListSessionsForUser(ctx, store.ListSessionsForUserParams{UserID: userID, Now: s.now()})
	if err != nil {
		return nil, err
	}

	items := make([]Info, 0, len(rows))
	for _, r := range rows {
		ua := useragent.Parse(r.UserAgent)
		items = append(items, Info{
			ID:           r.ID,
			IPAddress:    r.IpAddress,
			Browser:      browserLabel(ua),
			OS:           orUnknown(ua.OS),
			Device:       deviceLabel(ua),
			CreatedAt:    r.CreatedAt,
			LastActivity: r.LastActivity,
			ExpiresAt:    r.ExpiresAt,
			Current:      r.Token == currentToken,
		})
	}
	return items, nil
}

// Sweep deletes expired sessions and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	return s.queries.DeleteExpiredSessions(ctx, s.now())
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func browserLabel(ua useragent.UserAgent) string {
	if ua.Name == "" {
		return "Unknown"
	}
	if ua.Version == "" {
		return ua.Name
	}
	return ua.Name + " " + ua.Version
}

func deviceLabel(ua useragent.UserAgent) string {
	switch {
	case ua.Bot:
		return "bot"
	case ua.Tablet:
		return "tablet"
	case ua.Mobile:
		return "mobile"
	case ua.Desktop:
		return "desktop"
	default:
		return "unknown"
	}
}
