// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/tegsite/internal/cache"
	"github.com/olegiv/tegsite/internal/imaging"
	"github.com/olegiv/tegsite/internal/mail"
	"github.com/olegiv/tegsite/internal/middleware"
	"github.com/olegiv/tegsite/internal/scheduler"
	"github.com/olegiv/tegsite/internal/service"
	"github.com/olegiv/tegsite/internal/session"
	"github.com/olegiv/tegsite/internal/store"
	"github.com/olegiv/tegsite/internal/testutil"
	"github.com/olegiv/tegsite/internal/version"
)

const (
	testUsername = "admin"
	testPassword = "correct-horse-battery"
)

// fakeMailer records messages instead of sending them.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) SendMail(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// testServer wires the real services to the JSON routes over a temp database.
type testServer struct {
	t        *testing.T
	db       *sql.DB
	router   http.Handler
	sessions *session.Store
	mailer   *fakeMailer
	authn    *service.Authenticator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	c := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Hour})
	t.Cleanup(func() {
		_ = c.Close()
		cleanup()
	})
	require.NoError(t, store.Seed(context.Background(), db, store.AdminSeed{}))

	logger := testutil.TestLoggerSilent()
	mailer := &fakeMailer{}
	events := service.NewEventService(db, logger)
	sanitizer := service.NewSanitizer()
	nav := service.NewNavigationService(db, c, sanitizer, events, logger)
	pages := service.NewPageService(db, sanitizer, events, nav)
	settings := service.NewSettingsService(db, c, sanitizer, mailer, events, logger)
	contact := service.NewContactService(db, sanitizer, mailer, nil, events, logger)
	images := service.NewImageService(db, imaging.NewProcessor(t.TempDir(), 5<<20), sanitizer, events, logger)
	authn := service.NewAuthenticator(db, c, mailer, events, service.AuthConfig{SiteURL: "https://teg.example"}, logger)
	sessions := session.NewStore(db, time.Hour)

	sched := scheduler.New(logger)
	require.NoError(t, sched.Add(scheduler.Job{
		Name:     "noop",
		Schedule: "@hourly",
		Run:      func(context.Context) error { return nil },
	}))
	require.NoError(t, sched.Add(scheduler.Job{
		Name:     "broken",
		Schedule: "@daily",
		Run:      func(context.Context) error { return errors.New("boom") },
	}))

	routes := &Routes{
		Auth:           NewAuthHandler(authn, sessions, logger, false),
		Pages:          NewPagesHandler(pages),
		Navigation:     NewNavigationHandler(nav),
		Images:         NewImagesHandler(images, 5<<20, logger),
		Settings:       NewSettingsHandler(settings, logger),
		Submissions:    NewSubmissionsHandler(contact),
		Dashboard:      NewDashboardHandler(service.NewDashboardService(db, contact), events),
		Public:         NewPublicHandler(pages, nav, settings, contact),
		Health:         NewHealthHandler(db, t.TempDir(), version.Info{Version: "test"}),
		Cache:          NewCacheHandler(c, cache.BackendMemory, events, logger),
		Scheduler:      NewSchedulerHandler(sched, events),
		SEO:            NewSEOHandler(pages, "https://teg.example", false, logger),
		RequireSession: middleware.RequireSession(sessions, logger),
	}
	r := chi.NewRouter()
	routes.Register(r)

	return &testServer{t: t, db: db, router: r, sessions: sessions, mailer: mailer, authn: authn}
}

// do sends a request with an optional JSON body and session cookie.
func (s *testServer) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "203.0.113.10:4000"
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends raw as the request body without a session.
func (s *testServer) doRaw(method, path, raw string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

// login creates the admin user on first use and returns a session cookie.
func (s *testServer) login() *http.Cookie {
	s.t.Helper()

	var n int
	require.NoError(s.t, s.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", testUsername).Scan(&n))
	if n == 0 {
		testutil.CreateUser(s.t, s.db, testUsername, testPassword)
	}

	rr := s.do(http.MethodPost, "/api/auth/login", map[string]string{"username": testUsername, "password": testPassword}, nil)
	require.Equal(s.t, http.StatusOK, rr.Code, rr.Body.String())
	return sessionCookie(s.t, rr)
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", session.CookieName)
	return nil
}

// envelope mirrors response with the payload kept raw.
type envelope struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Message    string            `json:"message"`
	Error      string            `json:"error"`
	Details    map[string]string `json:"details"`
	RetryAfter int               `json:"retryAfter"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

// decodeData unmarshals the data field of rr into v.
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	env := decodeEnvelope(t, rr)
	require.True(t, env.Success, rr.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v), rr.Body.String())
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m), rr.Body.String())
	return m
}
