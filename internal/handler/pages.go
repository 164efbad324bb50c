// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/tegsite/internal/service"
)

// PagesHandler handles the admin page routes.
type PagesHandler struct {
	pages *service.PageService
}

// NewPagesHandler creates a new PagesHandler.
func NewPagesHandler(pages *service.PageService) *PagesHandler {
	return &PagesHandler{pages: pages}
}

// List handles GET /api/admin/pages.
func (h *PagesHandler) List(w http.ResponseWriter, r *http.Request) {
	pages, err := h.pages.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, pages)
}

// Get handles GET /api/admin/pages/{id}.
func (h *PagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	page, err := h.pages.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, page)
}

// Create handles POST /api/admin/pages.
func (h *PagesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.PageInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	page, err := h.pages.Create(r.Context(), in, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, page)
}

// Update handles PUT /api/admin/pages/{id}. Fields absent from the body
// keep their stored values.
func (h *PagesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	current, err := h.pages.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	in := current.Input()
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	page, err := h.pages.Update(r.Context(), id, in, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, page)
}

// Delete handles DELETE /api/admin/pages/{id}.
func (h *PagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	if err := h.pages.Delete(r.Context(), id, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Page deleted")
}

// TogglePublish handles POST /api/admin/pages/{id}/publish.
func (h *PagesHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	published, err := h.pages.TogglePublish(r.Context(), id, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"isPublished": published})
}
