// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/tegsite/internal/service"
)

// DashboardHandler serves the admin dashboard and the audit log.
type DashboardHandler struct {
	dashboard *service.DashboardService
	events    *service.EventService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService, events *service.EventService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, events: events}
}

// Stats handles GET /api/admin/dashboard.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

// Events handles GET /api/admin/events?category=&limit=&offset=.
func (h *DashboardHandler) Events(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", service.DefaultPageSize, 1, service.MaxPageSize)
	offset := ParseIntParam(r, "offset", 0, 0, 1<<31)

	events, err := h.events.ListEvents(r.Context(), r.URL.Query().Get("category"), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, events)
}
