// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/tegsite/internal/scheduler"
	"github.com/olegiv/tegsite/internal/service"
	"github.com/olegiv/tegsite/internal/session"
)

// authFailedMessage is shared by every credential failure.
const authFailedMessage = "Invalid username or password"

// writeServiceError maps service errors to HTTP responses. Anything not
// recognised is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		locked     *service.AccountLockedError
		validation *service.ValidationError
	)

	switch {
	case errors.As(err, &locked):
		retryAfter := locked.RetryAfter(time.Now().UTC())
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusLocked, response{
			Error:      "Account temporarily locked. Try again later.",
			RetryAfter: retryAfter,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, authFailedMessage)
	case errors.Is(err, service.ErrTwoFactorRequired):
		writeJSONError(w, http.StatusUnauthorized, "Two-factor verification required")
	case errors.Is(err, service.ErrInvalidTwoFactorCode):
		writeJSONError(w, http.StatusUnauthorized, "Invalid verification code")
	case errors.Is(err, session.ErrSessionExpired):
		writeJSONError(w, http.StatusUnauthorized, "Session expired")
	case errors.Is(err, service.ErrInvalidResetToken):
		writeJSONError(w, http.StatusBadRequest, "Invalid or expired reset token")
	case errors.Is(err, service.ErrSlugConflict):
		writeJSON(w, http.StatusConflict, response{
			Error:   "Slug already in use",
			Details: map[string]string{"slug": "slug already in use"},
		})
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, scheduler.ErrJobNotFound):
		writeJSONError(w, http.StatusNotFound, "Not found")
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, response{
			Error:   "Validation failed",
			Details: validation.Fields,
		})
	case errors.Is(err, errBadJSON):
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
	default:
		logAndInternalError(w, "request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	}
}

// logAndInternalError logs an error and writes a 500 Internal Server Error response.
func logAndInternalError(w http.ResponseWriter, logMsg string, args ...any) {
	slog.Error(logMsg, args...)
	writeJSONError(w, http.StatusInternalServerError, "Internal server error")
}

func isValidation(err error) bool {
	var verr *service.ValidationError
	return errors.As(err, &verr)
}
