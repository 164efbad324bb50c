// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/olegiv/tegsite/internal/model"
	"github.com/olegiv/tegsite/internal/store"
	"github.com/olegiv/tegsite/internal/testutil"
)

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

func listEvents(t *testing.T, db *sql.DB) []store.Event {
	t.Helper()
	events, err := store.New(db).ListEvents(context.Background(), store.ListEventsParams{Limit: 100})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	return events
}

func decodeMetadata(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("metadata %q is not valid JSON: %v", raw, err)
	}
	return m
}

func TestEventLogHandler_Levels(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))

	logger.Debug("processing request", "request_id", "abc123")
	logger.Info("server started", "port", 8080)
	logger.Warn("slow query detected", "duration_ms", 5000)
	logger.Error("database connection failed", "host", "localhost")

	events := listEvents(t, db)
	if len(events) != 2 {
		t.Fatalf("expected 2 events (warn + error), got %d", len(events))
	}

	byMessage := map[string]store.Event{}
	for _, e := range events {
		byMessage[e.Message] = e
	}
	if got := byMessage["slow query detected"].Level; got != model.EventLevelWarning {
		t.Errorf("warn Level = %q, want %q", got, model.EventLevelWarning)
	}
	if got := byMessage["database connection failed"].Level; got != model.EventLevelError {
		t.Errorf("error Level = %q, want %q", got, model.EventLevelError)
	}
}

func TestEventLogHandler_CustomLevel(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	logger := slog.New(NewEventLogHandlerWithLevel(discardHandler{}, db, slog.LevelInfo))
	logger.Info("server started", "port", 8080)

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("expected 1 event with INFO threshold, got %d", len(events))
	}
	if events[0].Level != model.EventLevelInfo {
		t.Errorf("Level = %q, want %q", events[0].Level, model.EventLevelInfo)
	}
}

func TestExtractCategory(t *testing.T) {
	testCases := []struct {
		message string
		attrs   []slog.Attr
		want    string
	}{
		{"user authentication failed", nil, model.EventCategoryAuth},
		{"login attempt blocked", nil, model.EventCategoryAuth},
		{"session touch failed", nil, model.EventCategoryAuth},
		{"menu rebuild failed", nil, model.EventCategoryNavigation},
		{"image upload rejected", nil, model.EventCategoryImage},
		{"contact notification email failed", nil, model.EventCategoryContact},
		{"page not found", nil, model.EventCategoryPage},
		{"invalid setting value", nil, model.EventCategoryConfig},
		{"cache miss storm", nil, model.EventCategoryCache},
		{"something unexpected", nil, model.EventCategorySystem},
		{"login attempt blocked", []slog.Attr{slog.String("category", model.EventCategoryConfig)}, model.EventCategoryConfig},
		{"page not found", []slog.Attr{slog.String("category", "bogus")}, model.EventCategoryPage},
	}

	for _, tc := range testCases {
		if got := extractCategory(tc.message, tc.attrs); got != tc.want {
			t.Errorf("extractCategory(%q) = %q, want %q", tc.message, got, tc.want)
		}
	}
}

func TestEventLogHandler_MetadataExtraction(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Error("request failed",
		"category", model.EventCategorySystem,
		"status_code", 500,
		"path", "/api/admin/pages",
		"ip", "203.0.113.7",
	)

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	e := events[0]
	if e.IpAddress != "203.0.113.7" {
		t.Errorf("IpAddress = %q, want %q", e.IpAddress, "203.0.113.7")
	}

	meta := decodeMetadata(t, e.Metadata)
	if meta["path"] != "/api/admin/pages" {
		t.Errorf("metadata path = %v", meta["path"])
	}
	if meta["status_code"] != float64(500) {
		t.Errorf("metadata status_code = %v", meta["status_code"])
	}
	if _, ok := meta["category"]; ok {
		t.Error("category should not be duplicated into metadata")
	}
	if _, ok := meta["ip"]; ok {
		t.Error("ip should be stored in its own column")
	}
}

func TestEventLogHandler_UserID(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	user := testutil.CreateUser(t, db, "admin", "correct-horse-battery")

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Warn("password reset requested", "user_id", user.ID)

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].UserID.Valid || events[0].UserID.Int64 != user.ID {
		t.Errorf("UserID = %+v, want %d", events[0].UserID, user.ID)
	}
	if events[0].Username.String != "admin" {
		t.Errorf("Username = %q, want admin", events[0].Username.String)
	}
}

func TestEventLogHandler_WithAttrsAndGroup(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	h := NewEventLogHandler(discardHandler{}, db).
		WithAttrs([]slog.Attr{slog.String("service", "api")}).
		WithGroup("request")

	slog.New(h).Error("request error", "id", "abc123")

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	meta := decodeMetadata(t, events[0].Metadata)
	if meta["service"] != "api" {
		t.Errorf("metadata service = %v, want api", meta["service"])
	}
	if meta["request.id"] != "abc123" {
		t.Errorf("metadata request.id = %v, want abc123", meta["request.id"])
	}
}

func TestEventLogHandler_SpecialCharactersInMetadata(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Error("parse error",
		"input", `{"key": "value with \"quotes\""}`,
		"path", "C:\\Users\\test",
		"text", "line1\nline2\ttabbed",
	)

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	meta := decodeMetadata(t, events[0].Metadata)
	if meta["text"] != "line1\nline2\ttabbed" {
		t.Errorf("metadata text = %q", meta["text"])
	}
	if meta["path"] != "C:\\Users\\test" {
		t.Errorf("metadata path = %q", meta["path"])
	}
}

func TestEventLogHandler_EmptyMetadata(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	slog.New(NewEventLogHandler(discardHandler{}, db)).Warn("plain warning")

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Metadata != "{}" {
		t.Errorf("Metadata = %q, want {}", events[0].Metadata)
	}
}

func TestSlogLevelToEventLevel(t *testing.T) {
	h := &EventLogHandler{}

	testCases := []struct {
		level    slog.Level
		expected string
	}{
		{slog.LevelDebug, model.EventLevelInfo},
		{slog.LevelInfo, model.EventLevelInfo},
		{slog.LevelWarn, model.EventLevelWarning},
		{slog.LevelError, model.EventLevelError},
		{slog.LevelError + 4, model.EventLevelError},
	}

	for _, tc := range testCases {
		if result := h.slogLevelToEventLevel(tc.level); result != tc.expected {
			t.Errorf("slogLevelToEventLevel(%v) = %q, want %q", tc.level, result, tc.expected)
		}
	}
}
