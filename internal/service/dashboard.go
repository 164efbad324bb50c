// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"

	"github.com/olegiv/tegsite/internal/store"
)

// DashboardStats are the admin landing page counters.
type DashboardStats struct {
	TotalPages          int64            `json:"totalPages"`
	PublishedPages      int64            `json:"publishedPages"`
	TotalSubmissions    int64            `json:"totalSubmissions"`
	UnreadSubmissions   int64            `json:"unreadSubmissions"`
	SubmissionsThisWeek int64            `json:"submissionsThisWeek"`
	RecentSubmissions   []SubmissionView `json:"recentSubmissions"`
}

// DashboardService aggregates counters for the admin dashboard.
type DashboardService struct {
	queries *store.Queries
	contact *ContactService
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(db *sql.DB, contact *ContactService) *DashboardService {
	return &DashboardService{queries: store.New(db), contact: contact}
}

// Stats returns page and submission counters plus the latest submissions.
func (s *DashboardService) Stats(ctx context.Context) (DashboardStats, error) {
	pages, err := s.queries.CountPages(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	subs, err := s.contact.Stats(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	recent, err := s.contact.List(ctx, false, 5, 0)
	if err != nil {
		return DashboardStats{}, err
	}
	return DashboardStats{
		TotalPages:          pages.Total,
		PublishedPages:      pages.Published,
		TotalSubmissions:    subs.Total,
		UnreadSubmissions:   subs.Unread,
		SubmissionsThisWeek: subs.ThisWeek,
		RecentSubmissions:   recent,
	}, nil
}
