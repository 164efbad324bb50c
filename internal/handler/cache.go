// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/tegsite/internal/cache"
	"github.com/olegiv/tegsite/internal/model"
	"github.com/olegiv/tegsite/internal/service"
)

// CacheHandler reports and clears the shared cache.
type CacheHandler struct {
	cache   cache.Cache
	backend string
	events  *service.EventService
	logger  *slog.Logger
}

// NewCacheHandler creates a new CacheHandler. backend names the cache
// implementation in responses.
func NewCacheHandler(c cache.Cache, backend string, events *service.EventService, logger *slog.Logger) *CacheHandler {
	return &CacheHandler{
		cache:   c,
		backend: backend,
		events:  events,
		logger:  logger,
	}
}

// CacheStats is the payload of GET /api/admin/cache.
type CacheStats struct {
	Backend string       `json:"backend"`
	Stats   *cache.Stats `json:"stats,omitempty"`
}

// Stats handles GET /api/admin/cache.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	out := CacheStats{Backend: h.backend}
	if sp, ok := h.cache.(cache.StatsProvider); ok {
		st := sp.Stats()
		out.Stats = &st
	}
	writeData(w, http.StatusOK, out)
}

// Clear handles POST /api/admin/cache/clear.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(r.Context()); err != nil {
		logAndInternalError(w, "failed to clear cache", "error", err)
		return
	}
	if sp, ok := h.cache.(cache.StatsProvider); ok {
		sp.ResetStats()
	}

	h.logger.Info("cache cleared", "backend", h.backend, "user_id", actor(r).UserID)
	h.events.Record(r.Context(), actor(r), model.EventCategoryCache, "Cache cleared",
		map[string]any{"backend": h.backend})
	writeMessage(w, "Cache cleared")
}
