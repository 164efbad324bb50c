// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/tegsite/internal/service"
)

// NavigationHandler handles the admin navigation routes.
type NavigationHandler struct {
	nav *service.NavigationService
}

// NewNavigationHandler creates a new NavigationHandler.
func NewNavigationHandler(nav *service.NavigationService) *NavigationHandler {
	return &NavigationHandler{nav: nav}
}

type reorderRequest struct {
	Items []service.NavMove `json:"items"`
}

// List handles GET /api/admin/navigation. Hidden items are included.
func (h *NavigationHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.nav.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

// Create handles POST /api/admin/navigation.
func (h *NavigationHandler) Create(w http.ResponseWriter, r *http.Request) {
	in := service.NewNavItemInput()
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	item, err := h.nav.Create(r.Context(), in, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, item)
}

// Update handles PUT /api/admin/navigation/{id}.
func (h *NavigationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	current, err := h.nav.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	in := current.Input()
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	item, err := h.nav.Update(r.Context(), id, in, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, item)
}

// Delete handles DELETE /api/admin/navigation/{id}. Children go with it.
func (h *NavigationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	if err := h.nav.Delete(r.Context(), id, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Navigation item deleted")
}

// Reorder handles POST /api/admin/navigation/reorder.
func (h *NavigationHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if len(req.Items) == 0 {
		writeJSONError(w, http.StatusBadRequest, "No items to reorder")
		return
	}

	if err := h.nav.Reorder(r.Context(), req.Items, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Navigation reordered")
}
