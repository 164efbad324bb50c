// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/tegsite/internal/service"
)

// PublicHandler serves the read-only site API and the contact form.
type PublicHandler struct {
	pages    *service.PageService
	nav      *service.NavigationService
	settings *service.SettingsService
	contact  *service.ContactService
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(pages *service.PageService, nav *service.NavigationService, settings *service.SettingsService, contact *service.ContactService) *PublicHandler {
	return &PublicHandler{
		pages:    pages,
		nav:      nav,
		settings: settings,
		contact:  contact,
	}
}

// Navigation handles GET /api/navigation with the visible tree.
func (h *PublicHandler) Navigation(w http.ResponseWriter, r *http.Request) {
	tree, err := h.nav.ResolveNavigationTree(r.Context(), true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, tree)
}

// Settings handles GET /api/settings/public.
func (h *PublicHandler) Settings(w http.ResponseWriter, r *http.Request) {
	values, err := h.settings.Public(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, values)
}

// Page handles GET /api/pages/{slug}. Drafts are reported as missing.
func (h *PublicHandler) Page(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.GetPublishedBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, page)
}

// Services handles GET /api/services.
func (h *PublicHandler) Services(w http.ResponseWriter, r *http.Request) {
	pages, err := h.pages.ListServicePages(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, pages)
}

// Contact handles POST /api/contact.
func (h *PublicHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var in service.ContactInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if _, err := h.contact.Submit(r.Context(), in, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "Thank you for your message. We will get back to you soon.",
	})
}
