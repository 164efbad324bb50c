// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/tegsite/internal/auth"
	"github.com/olegiv/tegsite/internal/service"
	"github.com/olegiv/tegsite/internal/session"
	"github.com/olegiv/tegsite/internal/testutil"
)

func TestLogin_SetsSessionCookie(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateUser(t, s.db, testUsername, testPassword)

	rr := s.do(http.MethodPost, "/api/auth/login", map[string]string{"username": testUsername, "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decodeMap(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["requiresTwoFactor"])
	assert.Equal(t, AdminHome, body["redirect"])

	cookie := sessionCookie(t, rr)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)
	assert.False(t, cookie.Secure)

	rr = s.do(http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var me meResponse
	decodeData(t, rr, &me)
	assert.Equal(t, testUsername, me.Username)
	assert.Equal(t, "admin@example.com", me.Email)
	assert.False(t, me.TwoFactorEnabled)
}

func TestLogin_Failures(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateUser(t, s.db, testUsername, testPassword)

	tests := []struct {
		name     string
		body     any
		raw      string
		wantCode int
		wantErr  string
	}{
		{"wrong password", map[string]string{"username": testUsername, "password": "nope"}, "", http.StatusUnauthorized, authFailedMessage},
		{"unknown user", map[string]string{"username": "ghost", "password": testPassword}, "", http.StatusUnauthorized, authFailedMessage},
		{"empty fields", map[string]string{}, "", http.StatusUnauthorized, authFailedMessage},
		{"malformed json", nil, "{not json", http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rr *httptest.ResponseRecorder
			if tt.raw != "" {
				rr = s.doRaw(http.MethodPost, "/api/auth/login", tt.raw)
			} else {
				rr = s.do(http.MethodPost, "/api/auth/login", tt.body, nil)
			}
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())

			env := decodeEnvelope(t, rr)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantErr, env.Error)
			assert.Empty(t, rr.Result().Cookies())
		})
	}
}

func TestLogin_LockoutRejectsCorrectPassword(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateUser(t, s.db, testUsername, testPassword)

	for i := 0; i < service.DefaultMaxLoginAttempts; i++ {
		rr := s.do(http.MethodPost, "/api/auth/login", map[string]string{"username": testUsername, "password": "wrong"}, nil)
		require.Contains(t, []int{http.StatusUnauthorized, http.StatusLocked}, rr.Code)
	}

	rr := s.do(http.MethodPost, "/api/auth/login", map[string]string{"username": testUsername, "password": testPassword}, nil)
	require.Equal(t, http.StatusLocked, rr.Code, rr.Body.String())

	env := decodeEnvelope(t, rr)
	assert.Greater(t, env.RetryAfter, 0)
	retry, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Equal(t, env.RetryAfter, retry)
	assert.LessOrEqual(t, retry, int(service.DefaultLockoutDuration.Seconds()))
	assert.Empty(t, rr.Result().Cookies())
}

func TestMe_RequiresSession(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodGet, "/api/auth/me", nil, &http.Cookie{Name: session.CookieName, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout_RevokesSession(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login()

	rr := s.do(http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	cleared := sessionCookie(t, rr)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	rr = s.do(http.MethodGet, "/api/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Logging out twice is harmless.
	rr = s.do(http.MethodPost, "/api/auth/logout", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSessions_ListAndRevoke(t *testing.T) {
	s := newTestServer(t)
	first := s.login()
	second := s.login()

	rr := s.do(http.MethodGet, "/api/auth/sessions", nil, first)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var list []session.Info
	decodeData(t, rr, &list)
	require.Len(t, list, 2)

	var other int64
	current := 0
	for _, info := range list {
		if info.Current {
			current++
		} else {
			other = info.ID
		}
		assert.Equal(t, "203.0.113.10", info.IPAddress)
	}
	assert.Equal(t, 1, current)

	rr = s.do(http.MethodDelete, "/api/auth/sessions/"+strconv.FormatInt(other, 10), nil, first)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(http.MethodGet, "/api/auth/me", nil, second)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodDelete, "/api/auth/sessions/"+strconv.FormatInt(other, 10), nil, first)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodDelete, "/api/auth/sessions/abc", nil, first)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestForgotPassword_GenericResponse(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateUser(t, s.db, testUsername, testPassword)

	known := s.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "admin@example.com"}, nil)
	unknown := s.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "nobody@example.com"}, nil)

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.Equal(t, forgotPasswordMessage, decodeEnvelope(t, known).Message)
	s.authn.Wait()
	assert.Equal(t, 1, s.mailer.count())

	rr := s.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": ""}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decodeEnvelope(t, rr).Details, "email")
}

func TestResetPassword_InvalidToken(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/api/auth/reset-password", map[string]string{"token": "bogus", "password": "a-long-enough-password"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid or expired reset token", decodeEnvelope(t, rr).Error)

	rr = s.do(http.MethodPost, "/api/auth/reset-password", map[string]string{"token": "bogus", "password": "short"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decodeEnvelope(t, rr).Details, "password")
}

func totpCodeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    auth.TOTPPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestTwoFactor_EnrollAndLogin(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login()

	rr := s.do(http.MethodPost, "/api/auth/setup-2fa", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var setup struct {
		QRCodeDataURI string `json:"qrCodeDataUri"`
		Secret        string `json:"secret"`
	}
	decodeData(t, rr, &setup)
	require.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.QRCodeDataURI, "data:image/png;base64,")

	rr = s.do(http.MethodPost, "/api/auth/enable-2fa", map[string]string{"code": "000000x"}, cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/api/auth/enable-2fa", map[string]string{"code": totpCodeAt(t, setup.Secret, time.Now())}, cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Password alone no longer opens a session.
	rr = s.do(http.MethodPost, "/api/auth/login", map[string]string{"username": testUsername, "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeMap(t, rr)
	assert.Equal(t, true, body["requiresTwoFactor"])
	assert.Empty(t, rr.Result().Cookies())
	userID := int64(body["userId"].(float64))

	rr = s.do(http.MethodPost, "/api/auth/verify-2fa", map[string]any{"userId": userID, "code": "123"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// The enrolment consumed the current step, so use the next one.
	code := totpCodeAt(t, setup.Secret, time.Now().Add(auth.TOTPPeriod*time.Second))
	rr = s.do(http.MethodPost, "/api/auth/verify-2fa", map[string]any{"userId": userID, "code": code}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, AdminHome, decodeMap(t, rr)["redirect"])
	twoFactorCookie := sessionCookie(t, rr)

	// The same code cannot be replayed.
	rr = s.do(http.MethodPost, "/api/auth/verify-2fa", map[string]any{"userId": userID, "code": code}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodGet, "/api/auth/me", nil, twoFactorCookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var me meResponse
	decodeData(t, rr, &me)
	assert.True(t, me.TwoFactorEnabled)

	rr = s.do(http.MethodPost, "/api/auth/disable-2fa", nil, twoFactorCookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(http.MethodPost, "/api/auth/login", map[string]string{"username": testUsername, "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decodeMap(t, rr)["requiresTwoFactor"])
}

func TestVerifyTwoFactor_WithoutChallenge(t *testing.T) {
	s := newTestServer(t)
	user := testutil.CreateUser(t, s.db, testUsername, testPassword)

	rr := s.do(http.MethodPost, "/api/auth/verify-2fa", map[string]any{"userId": user.ID, "code": "123456"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/api/auth/verify-2fa", map[string]any{"code": "123456"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
