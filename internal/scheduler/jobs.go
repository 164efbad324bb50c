// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/olegiv/tegsite/internal/geoip"
	"github.com/olegiv/tegsite/internal/session"
	"github.com/olegiv/tegsite/internal/store"
)

// Job names.
const (
	JobSessionSweep    = "session-sweep"
	JobResetTokenPurge = "reset-token-purge"
	JobEventRetention  = "event-retention"
	JobGeoIPReload     = "geoip-reload"
)

const (
	sessionSweepSched    = "*/5 * * * *"
	resetTokenPurgeSched = "0 * * * *"
	eventRetentionSched  = "30 3 * * *"
	geoIPReloadSched     = "0 4 * * *"
)

// Maintenance holds the dependencies of the built-in maintenance jobs.
// GeoIP and EventRetention are optional.
type Maintenance struct {
	DB             *sql.DB
	Sessions       *session.Store
	GeoIP          *geoip.Lookup
	EventRetention time.Duration
	Logger         *slog.Logger
}

// RegisterMaintenance adds the built-in jobs to s.
func RegisterMaintenance(s *Scheduler, m Maintenance) error {
	queries := store.New(m.DB)

	jobs := []Job{
		{
			Name:        JobSessionSweep,
			Description: "Delete expired admin sessions",
			Schedule:    sessionSweepSched,
			Run: func(ctx context.Context) error {
				n, err := m.Sessions.Sweep(ctx)
				if err != nil {
					return err
				}
				if n > 0 {
					m.Logger.Info("expired sessions removed", "count", n)
				}
				return nil
			},
		},
		{
			Name:        JobResetTokenPurge,
			Description: "Clear expired password reset tokens",
			Schedule:    resetTokenPurgeSched,
			Run: func(ctx context.Context) error {
				n, err := queries.ClearExpiredResetTokens(ctx, time.Now().UTC())
				if err != nil {
					return err
				}
				if n > 0 {
					m.Logger.Info("expired reset tokens cleared", "count", n)
				}
				return nil
			},
		},
	}

	if m.EventRetention > 0 {
		jobs = append(jobs, Job{
			Name:        JobEventRetention,
			Description: "Purge audit events past the retention window",
			Schedule:    eventRetentionSched,
			Run: func(ctx context.Context) error {
				return queries.DeleteOldEvents(ctx, time.Now().UTC().Add(-m.EventRetention))
			},
		})
	}

	if m.GeoIP != nil && m.GeoIP.IsEnabled() {
		jobs = append(jobs, Job{
			Name:        JobGeoIPReload,
			Description: "Reload the GeoIP country database from disk",
			Schedule:    geoIPReloadSched,
			Run: func(context.Context) error {
				return m.GeoIP.Reload()
			},
		})
	}

	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			return err
		}
	}
	return nil
}
