// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/tegsite/internal/session"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyIdentity holds the resolved session.Identity.
const ContextKeyIdentity ContextKey = "identity"

// LoginPath is where browsers without a valid session are sent.
const LoginPath = "/admin/login"

// touchTimeout bounds the background last-activity update.
const touchTimeout = 5 * time.Second

// SessionResolver is the part of session.Store the middleware needs.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (session.Identity, error)
	Touch(ctx context.Context, token string) error
}

// RequireSession rejects requests without a valid session. API requests get
// a 401 JSON body, page requests a redirect to the login page. On success
// the identity is stored in the request context and the session's activity
// is refreshed in the background.
func RequireSession(sessions SessionResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.TokenFromRequest(r)
			if token == "" {
				unauthenticated(w, r)
				return
			}

			identity, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, session.ErrSessionExpired) {
					logger.Error("failed to resolve session", "error", err, "path", r.URL.Path)
				}
				unauthenticated(w, r)
				return
			}

			go touch(sessions, token, logger)

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func touch(sessions SessionResolver, token string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
	defer cancel()
	if err := sessions.Touch(ctx, token); err != nil {
		logger.Warn("failed to update session activity", "error", err)
	}
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity session.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, identity)
}

// GetIdentity retrieves the session identity from the request context.
func GetIdentity(r *http.Request) (session.Identity, bool) {
	identity, ok := r.Context().Value(ContextKeyIdentity).(session.Identity)
	return identity, ok
}

// GetUserID returns the current user's ID from context, or 0 if not found.
func GetUserID(r *http.Request) int64 {
	if identity, ok := GetIdentity(r); ok {
		return identity.UserID
	}
	return 0
}
