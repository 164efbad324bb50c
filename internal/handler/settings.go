// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/tegsite/internal/service"
)

// SettingsHandler handles site settings and the SMTP configuration.
type SettingsHandler struct {
	settings *service.SettingsService
	logger   *slog.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settings *service.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

// List handles GET /api/admin/settings.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	values, err := h.settings.All(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, values)
}

// Update handles PUT /api/admin/settings with a flat key/value object.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := decodeJSON(w, r, &values); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.settings.Update(r.Context(), values, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := h.settings.All(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

// EmailConfig handles GET /api/admin/email-config. The password is masked.
func (h *SettingsHandler) EmailConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.EmailConfig(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, cfg)
}

// SaveEmailConfig handles POST /api/admin/email-config.
func (h *SettingsHandler) SaveEmailConfig(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.EmailConfig(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	in := current.Input()
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.settings.SaveEmailConfig(r.Context(), in, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	saved, err := h.settings.EmailConfig(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, saved)
}

// TestEmail handles POST /api/admin/email-config/test.
func (h *SettingsHandler) TestEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.SendTestEmail(r.Context(), actor(r)); err != nil {
		h.logger.Warn("test email failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "Failed to send test email. Check the SMTP settings.")
		return
	}
	writeMessage(w, "Test email sent")
}
