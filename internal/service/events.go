// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides the business logic behind the HTTP handlers:
// authentication, the page and navigation content tree, contact
// submissions, images, site settings and the audit log.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/tegsite/internal/model"
	"github.com/olegiv/tegsite/internal/store"
)

// Actor identifies who performed an audited action.
type Actor struct {
	UserID    int64
	IP        string
	UserAgent string
}

// EventService writes and reads the audit log.
type EventService struct {
	queries *store.Queries
	logger  *slog.Logger
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, logger *slog.Logger) *EventService {
	return &EventService{
		queries: store.New(db),
		logger:  logger,
	}
}

// LogEvent creates a new event log entry.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.logEvent(ctx, level, category, message, userID, ipAddress, "", metadata)
}

func (s *EventService) logEvent(ctx context.Context, level, category, message string, userID *int64, ipAddress, userAgent string, metadata map[string]any) error {
	var nullUserID sql.NullInt64
	if userID != nil && *userID > 0 {
		nullUserID = sql.NullInt64{Int64: *userID, Valid: true}
	}

	metadataJSON := "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    nullUserID,
		Metadata:  metadataJSON,
		IpAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		// Plain Info level so the event-log handler does not try to
		// persist this failure a second time.
		s.logger.Info("failed to write audit event", "error", err, "message", message)
		return err
	}
	return nil
}

// Record writes an info event on behalf of actor. Failures are logged
// and not returned since auditing never blocks the action itself.
func (s *EventService) Record(ctx context.Context, actor Actor, category, message string, metadata map[string]any) {
	s.write(ctx, model.EventLevelInfo, actor, category, message, metadata)
}

// RecordWarning is Record at warning level.
func (s *EventService) RecordWarning(ctx context.Context, actor Actor, category, message string, metadata map[string]any) {
	s.write(ctx, model.EventLevelWarning, actor, category, message, metadata)
}

func (s *EventService) write(ctx context.Context, level string, actor Actor, category, message string, metadata map[string]any) {
	var uid *int64
	if actor.UserID > 0 {
		uid = &actor.UserID
	}
	_ = s.logEvent(ctx, level, category, message, uid, actor.IP, actor.UserAgent, metadata)
}

// EventView is an audit log entry as returned to the admin UI.
type EventView struct {
	ID        int64           `json:"id"`
	Level     string          `json:"level"`
	Category  string          `json:"category"`
	Message   string          `json:"message"`
	UserID    *int64          `json:"userId,omitempty"`
	Username  string          `json:"username,omitempty"`
	IPAddress string          `json:"ipAddress,omitempty"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ListEvents returns a page of events, newest first. An unknown category
// is rejected.
func (s *EventService) ListEvents(ctx context.Context, category string, limit, offset int64) ([]EventView, error) {
	if category != "" && !model.IsValidEventCategory(category) {
		return nil, fieldError("category", "unknown category")
	}
	limit, offset = clampPage(limit, offset)

	rows, err := s.queries.ListEvents(ctx, store.ListEventsParams{Category: category, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	out := make([]EventView, 0, len(rows))
	for _, e := range rows {
		v := EventView{
			ID:        e.ID,
			Level:     e.Level,
			Category:  e.Category,
			Message:   e.Message,
			Username:  e.Username.String,
			IPAddress: e.IpAddress,
			Metadata:  json.RawMessage(e.Metadata),
			CreatedAt: e.CreatedAt,
		}
		if !json.Valid(v.Metadata) {
			v.Metadata = json.RawMessage("{}")
		}
		if e.UserID.Valid {
			id := e.UserID.Int64
			v.UserID = &id
		}
		out = append(out, v)
	}
	return out, nil
}

// DeleteOldEvents removes events older than the specified duration.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) error {
	return s.queries.DeleteOldEvents(ctx, time.Now().UTC().Add(-olderThan))
}

// Page size limits shared by list endpoints.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

func clampPage(limit, offset int64) (int64, int64) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
