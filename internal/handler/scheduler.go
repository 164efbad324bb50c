// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/tegsite/internal/model"
	"github.com/olegiv/tegsite/internal/scheduler"
	"github.com/olegiv/tegsite/internal/service"
)

// SchedulerHandler lists maintenance jobs and runs them on demand.
type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
	events    *service.EventService
}

// NewSchedulerHandler creates a new SchedulerHandler.
func NewSchedulerHandler(s *scheduler.Scheduler, events *service.EventService) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s, events: events}
}

// List handles GET /api/admin/scheduler.
func (h *SchedulerHandler) List(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.scheduler.List())
}

// Run handles POST /api/admin/scheduler/{name}/run. The job runs before
// the response is written.
func (h *SchedulerHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.scheduler.TriggerNow(r.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			writeServiceError(w, r, err)
			return
		}
		h.events.RecordWarning(r.Context(), actor(r), model.EventCategorySystem, "Scheduled job failed",
			map[string]any{"job": name, "error": err.Error()})
		writeJSONError(w, http.StatusInternalServerError, "Job failed")
		return
	}

	h.events.Record(r.Context(), actor(r), model.EventCategorySystem, "Scheduled job triggered",
		map[string]any{"job": name})
	writeMessage(w, "Job completed")
}
