// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/tegsite/internal/service"
)

// SubmissionsHandler handles the contact submission inbox.
type SubmissionsHandler struct {
	contact *service.ContactService
}

// NewSubmissionsHandler creates a new SubmissionsHandler.
func NewSubmissionsHandler(contact *service.ContactService) *SubmissionsHandler {
	return &SubmissionsHandler{contact: contact}
}

type markReadRequest struct {
	IsRead *bool `json:"isRead"`
}

// List handles GET /api/admin/submissions?unread=&limit=&offset=.
func (h *SubmissionsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", service.DefaultPageSize, 1, service.MaxPageSize)
	offset := ParseIntParam(r, "offset", 0, 0, 1<<31)

	items, err := h.contact.List(r.Context(), ParseBoolParam(r, "unread"), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

// MarkRead handles PUT /api/admin/submissions/{id}/read. An empty body
// marks the submission as read.
func (h *SubmissionsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	isRead := true
	if r.ContentLength != 0 {
		var req markReadRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		if req.IsRead != nil {
			isRead = *req.IsRead
		}
	}

	if err := h.contact.MarkRead(r.Context(), id, isRead, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"isRead": isRead})
}

// Delete handles DELETE /api/admin/submissions/{id}.
func (h *SubmissionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	if err := h.contact.Delete(r.Context(), id, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Submission deleted")
}
