// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/tegsite/internal/middleware"
	"github.com/olegiv/tegsite/internal/service"
	"github.com/olegiv/tegsite/internal/session"
)

// AdminHome is where the admin panel lands after a successful login.
const AdminHome = "/admin"

// forgotPasswordMessage is returned whether or not the address is known.
const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

// AuthHandler handles login, two-factor, password reset and session routes.
type AuthHandler struct {
	auth         *service.Authenticator
	sessions     *session.Store
	logger       *slog.Logger
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. The session cookie is marked
// Secure when secureCookie is true.
func NewAuthHandler(authenticator *service.Authenticator, sessions *session.Store, logger *slog.Logger, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		auth:         authenticator,
		sessions:     sessions,
		logger:       logger,
		secureCookie: secureCookie,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyTwoFactorRequest struct {
	UserID int64  `json:"userId"`
	Code   string `json:"code"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.auth.Authenticate(r.Context(), req.Username, req.Password, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if result.RequiresTwoFactor {
		writeJSONSuccess(w, map[string]any{
			"requiresTwoFactor": true,
			"userId":            result.User.ID,
		})
		return
	}

	if !h.startSession(w, r, result.User.ID) {
		return
	}
	writeJSONSuccess(w, map[string]any{
		"requiresTwoFactor": false,
		"redirect":          AdminHome,
	})
}

// VerifyTwoFactor handles POST /api/auth/verify-2fa.
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyTwoFactorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.UserID <= 0 || req.Code == "" {
		writeJSONError(w, http.StatusBadRequest, "User ID and code are required")
		return
	}

	user, err := h.auth.VerifyTwoFactor(r.Context(), req.UserID, req.Code, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if !h.startSession(w, r, user.ID) {
		return
	}
	writeJSONSuccess(w, map[string]any{"redirect": AdminHome})
}

// startSession stores a new session and sets its cookie. The row is
// committed before the cookie reaches the client.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, userID int64) bool {
	a := actor(r)
	token, err := h.sessions.Create(r.Context(), userID, a.IP, a.UserAgent)
	if err != nil {
		logAndInternalError(w, "failed to create session", "error", err, "user_id", userID)
		return false
	}
	session.SetCookie(w, token, h.sessions.Lifetime(), h.secureCookie)
	return true
}

// Logout handles POST /api/auth/logout. It succeeds without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := session.TokenFromRequest(r); token != "" {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			h.logger.Error("failed to revoke session", "error", err)
		}
	}
	session.ClearCookie(w, h.secureCookie)
	writeJSONSuccess(w, nil)
}

// SetupTwoFactor handles POST /api/auth/setup-2fa.
func (h *AuthHandler) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	enrollment, err := h.auth.SetupTwoFactor(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{
		"qrCodeDataUri": enrollment.QRDataURI,
		"secret":        enrollment.Secret,
	})
}

// EnableTwoFactor handles POST /api/auth/enable-2fa.
func (h *AuthHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Code == "" {
		writeJSONError(w, http.StatusBadRequest, "Code is required")
		return
	}

	if err := h.auth.EnableTwoFactor(r.Context(), middleware.GetUserID(r), req.Code, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Two-factor authentication enabled")
}

// DisableTwoFactor handles POST /api/auth/disable-2fa.
func (h *AuthHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DisableTwoFactor(r.Context(), middleware.GetUserID(r), actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Two-factor authentication disabled")
}

// ForgotPassword handles POST /api/auth/forgot-password. The response is
// the same whether or not the address belongs to a user.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.auth.RequestPasswordReset(r.Context(), req.Email, actor(r)); err != nil {
		if isValidation(err) {
			writeServiceError(w, r, err)
			return
		}
		h.logger.Error("password reset request failed", "error", err)
	}
	writeMessage(w, forgotPasswordMessage)
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Password has been reset. Please log in.")
}

type meResponse struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeData(w, http.StatusOK, meResponse{
		ID:               identity.UserID,
		Username:         identity.Username,
		Email:            identity.Email,
		TwoFactorEnabled: identity.TwoFactorEnabled,
	})
}

// Sessions handles GET /api/auth/sessions.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	sessions, err := h.sessions.ListForUser(r.Context(), identity.UserID, identity.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sessions)
}

// RevokeSession handles DELETE /api/auth/sessions/{id}.
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	if err := h.sessions.RevokeByID(r.Context(), middleware.GetUserID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Session revoked")
}
