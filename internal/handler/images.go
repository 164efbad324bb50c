// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/tegsite/internal/service"
)

// multipartOverhead is allowed on top of the file size for form fields and boundaries.
const multipartOverhead = 64 << 10

// ImagesHandler handles image uploads and the image library.
type ImagesHandler struct {
	images        *service.ImageService
	maxUploadSize int64
	logger        *slog.Logger
}

// NewImagesHandler creates a new ImagesHandler accepting files of up to maxUploadSize bytes.
func NewImagesHandler(images *service.ImageService, maxUploadSize int64, logger *slog.Logger) *ImagesHandler {
	return &ImagesHandler{
		images:        images,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

type altTextRequest struct {
	AltText string `json:"altText"`
}

// List handles GET /api/admin/images.
func (h *ImagesHandler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.images.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, images)
}

// Upload handles POST /api/admin/images with a multipart "file" field and
// an optional "altText" field.
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		h.logger.Debug("failed to parse multipart form", "error", err)
		writeJSONError(w, http.StatusBadRequest, "Invalid upload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > h.maxUploadSize {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}

	image, err := h.images.Upload(r.Context(), file, header.Filename, r.FormValue("altText"), actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, image)
}

// Update handles PUT /api/admin/images/{id}. Only the alt text can change.
func (h *ImagesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	var req altTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	image, err := h.images.UpdateAltText(r.Context(), id, req.AltText, actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, image)
}

// Delete handles DELETE /api/admin/images/{id}.
func (h *ImagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	if err := h.images.Delete(r.Context(), id, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Image deleted")
}
