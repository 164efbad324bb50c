// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/tegsite/internal/cache"
	"github.com/olegiv/tegsite/internal/mail"
	"github.com/olegiv/tegsite/internal/testutil"
)

// fakeMailer records messages instead of sending them.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
	// hold, when set, delays every send until it is closed.
	hold chan struct{}
}

func (m *fakeMailer) SendMail(_ context.Context, msg mail.Message) error {
	if m.hold != nil {
		<-m.hold
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

// testEnv bundles the collaborators shared by service tests.
type testEnv struct {
	db        *sql.DB
	cache     *cache.MemoryCache
	events    *EventService
	sanitizer *Sanitizer
	mailer    *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	c := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Hour})
	t.Cleanup(func() {
		_ = c.Close()
		cleanup()
	})

	return &testEnv{
		db:        db,
		cache:     c,
		events:    NewEventService(db, testutil.TestLoggerSilent()),
		sanitizer: NewSanitizer(),
		mailer:    &fakeMailer{},
	}
}

func (e *testEnv) navigation() *NavigationService {
	return NewNavigationService(e.db, e.cache, e.sanitizer, e.events, testutil.TestLoggerSilent())
}

func (e *testEnv) pages(nav *NavigationService) *PageService {
	return NewPageService(e.db, e.sanitizer, e.events, nav)
}

// countRows returns the number of rows in table.
func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return verr.Fields
}
