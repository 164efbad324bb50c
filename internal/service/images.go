// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/olegiv/tegsite/internal/imaging"
	"github.com/olegiv/tegsite/internal/model"
	"github.com/olegiv/tegsite/internal/store"
	"github.com/olegiv/tegsite/internal/util"
)

const maxAltTextLength = 255

// ImageStorage writes and removes image files.
type ImageStorage interface {
	Store(r io.Reader, originalFilename string) (*imaging.StoredImage, error)
	Delete(filename string) error
}

// ImageView is an uploaded image as returned by the API.
type ImageView struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"originalFilename"`
	URL              string    `json:"url"`
	MimeType         string    `json:"mimeType"`
	FileSize         int64     `json:"fileSize"`
	Width            *int64    `json:"width"`
	Height           *int64    `json:"height"`
	AltText          string    `json:"altText"`
	UploadedBy       string    `json:"uploadedBy,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ImageService manages the media library.
type ImageService struct {
	queries   *store.Queries
	storage   ImageStorage
	sanitizer *Sanitizer
	events    *EventService
	logger    *slog.Logger
}

// NewImageService creates an ImageService.
func NewImageService(db *sql.DB, storage ImageStorage, sanitizer *Sanitizer, events *EventService, logger *slog.Logger) *ImageService {
	return &ImageService{
		queries:   store.New(db),
		storage:   storage,
		sanitizer: sanitizer,
		events:    events,
		logger:    logger,
	}
}

func imageView(i store.Image) ImageView {
	return ImageView{
		ID:               i.ID,
		Filename:         i.Filename,
		OriginalFilename: i.OriginalFilename,
		URL:              "/uploads/" + i.Filename,
		MimeType:         i.MimeType,
		FileSize:         i.FileSize,
		Width:            util.Int64PtrFromNull(i.Width),
		Height:           util.Int64PtrFromNull(i.Height),
		AltText:          i.AltText,
		UploadedBy:       i.UploadedByName.String,
		CreatedAt:        i.CreatedAt,
	}
}

// List returns all images, newest first.
func (s *ImageService) List(ctx context.Context) ([]ImageView, error) {
	images, err := s.queries.ListImages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ImageView, 0, len(images))
	for _, i := range images {
		out = append(out, imageView(i))
	}
	return out, nil
}

// Upload stores the file and records it. Rejected files produce a
// ValidationError on the "file" field.
func (s *ImageService) Upload(ctx context.Context, r io.Reader, originalFilename, altText string, actor Actor) (ImageView, error) {
	name, err := util.UploadName(originalFilename)
	if err != nil {
		return ImageView{}, fieldError("file", "invalid file name")
	}

	stored, err := s.storage.Store(r, name)
	if err != nil {
		switch {
		case errors.Is(err, imaging.ErrUnsupportedType):
			return ImageView{}, fieldError("file", "file type not allowed")
		case errors.Is(err, imaging.ErrTooLarge):
			return ImageView{}, fieldError("file", "file is too large")
		case errors.Is(err, imaging.ErrContentMismatch), errors.Is(err, imaging.ErrUnsafeSVG):
			return ImageView{}, fieldError("file", "invalid file type")
		}
		return ImageView{}, err
	}

	params := store.CreateImageParams{
		Filename:         stored.Filename,
		OriginalFilename: util.TruncateRunes(name, 255),
		MimeType:         stored.MimeType,
		FileSize:         stored.Size,
		AltText:          util.TruncateRunes(s.sanitizer.Text(altText), maxAltTextLength),
		UploadedBy:       actorID(actor),
		CreatedAt:        time.Now().UTC(),
	}
	if stored.Width > 0 && stored.Height > 0 {
		params.Width = util.NullInt64FromValue(int64(stored.Width))
		params.Height = util.NullInt64FromValue(int64(stored.Height))
	}

	id, err := s.queries.CreateImage(ctx, params)
	if err != nil {
		if delErr := s.storage.Delete(stored.Filename); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", "filename", stored.Filename, "error", delErr)
		}
		return ImageView{}, fmt.Errorf("recording image: %w", err)
	}
	img, err := s.queries.GetImage(ctx, id)
	if err != nil {
		return ImageView{}, err
	}

	s.events.Record(ctx, actor, model.EventCategoryImage, "Image uploaded",
		map[string]any{"image_id": id, "filename": stored.Filename, "size": stored.Size})
	return imageView(img), nil
}

// UpdateAltText sets the alt text of image id.
func (s *ImageService) UpdateAltText(ctx context.Context, id int64, altText string, actor Actor) (ImageView, error) {
	altText = s.sanitizer.Text(altText)
	if len([]rune(altText)) > maxAltTextLength {
		return ImageView{}, fieldError("altText", fmt.Sprintf("alt text must be at most %d characters", maxAltTextLength))
	}

	n, err := s.queries.UpdateImageAltText(ctx, id, altText)
	if err != nil {
		return ImageView{}, err
	}
	if n == 0 {
		return ImageView{}, ErrNotFound
	}
	img, err := s.queries.GetImage(ctx, id)
	if err != nil {
		return ImageView{}, err
	}

	s.events.Record(ctx, actor, model.EventCategoryImage, "Image updated", map[string]any{"image_id": id})
	return imageView(img), nil
}

// Delete removes the row and then the file. Pages using the image as hero
// lose the reference.
func (s *ImageService) Delete(ctx context.Context, id int64, actor Actor) error {
	img, err := s.queries.GetImage(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := s.queries.DeleteImage(ctx, id); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if err := s.storage.Delete(img.Filename); err != nil {
		s.logger.Warn("failed to delete image file", "filename", img.Filename, "error", err)
	}

	s.events.Record(ctx, actor, model.EventCategoryImage, "Image deleted",
		map[string]any{"image_id": id, "filename": img.Filename})
	return nil
}
