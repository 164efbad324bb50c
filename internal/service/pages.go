// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/tegsite/internal/model"
	"github.com/olegiv/tegsite/internal/store"
	"github.com/olegiv/tegsite/internal/util"
)

const (
	maxTitleLength           = 255
	maxMetaDescriptionLength = 500
	defaultLanguage          = "en"
)

// PageView is a page as returned by the API.
type PageView struct {
	ID              int64     `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	MetaTitle       string    `json:"metaTitle"`
	MetaDescription string    `json:"metaDescription"`
	Content         string    `json:"content"`
	HeroImageID     *int64    `json:"heroImageId"`
	HeroImageURL    string    `json:"heroImageUrl,omitempty"`
	IsPublished     bool      `json:"isPublished"`
	IsServicePage   bool      `json:"isServicePage"`
	ServiceIcon     string    `json:"serviceIcon"`
	ServiceOrder    int64     `json:"serviceOrder"`
	Language        string    `json:"language"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PageInput holds the editable fields of a page. An empty Slug is derived
// from Title.
type PageInput struct {
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
	Content         string `json:"content"`
	HeroImageID     *int64 `json:"heroImageId"`
	IsPublished     bool   `json:"isPublished"`
	IsServicePage   bool   `json:"isServicePage"`
	ServiceIcon     string `json:"serviceIcon"`
	ServiceOrder    int64  `json:"serviceOrder"`
	Language        string `json:"language"`
}

// Input returns the editable fields of v, for partial updates.
func (v PageView) Input() PageInput {
	return PageInput{
		Slug:            v.Slug,
		Title:           v.Title,
		MetaTitle:       v.MetaTitle,
		MetaDescription: v.MetaDescription,
		Content:         v.Content,
		HeroImageID:     v.HeroImageID,
		IsPublished:     v.IsPublished,
		IsServicePage:   v.IsServicePage,
		ServiceIcon:     v.ServiceIcon,
		ServiceOrder:    v.ServiceOrder,
		Language:        v.Language,
	}
}

// PageService manages site pages.
type PageService struct {
	db        *sql.DB
	queries   *store.Queries
	sanitizer *Sanitizer
	events    *EventService
	nav       *NavigationService
}

// NewPageService creates a PageService. Page changes invalidate the
// navigation cache of nav since tree links carry page slugs.
func NewPageService(db *sql.DB, sanitizer *Sanitizer, events *EventService, nav *NavigationService) *PageService {
	return &PageService{
		db:        db,
		queries:   store.New(db),
		sanitizer: sanitizer,
		events:    events,
		nav:       nav,
	}
}

func pageView(p store.Page) PageView {
	v := PageView{
		ID:              p.ID,
		Slug:            p.Slug,
		Title:           p.Title,
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		Content:         p.Content,
		HeroImageID:     util.Int64PtrFromNull(p.HeroImageID),
		IsPublished:     p.IsPublished,
		IsServicePage:   p.IsServicePage,
		ServiceIcon:     p.ServiceIcon,
		ServiceOrder:    p.ServiceOrder,
		Language:        p.Language,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.HeroImageFilename.Valid {
		v.HeroImageURL = "/uploads/" + p.HeroImageFilename.String
	}
	return v
}

func pageViews(pages []store.Page) []PageView {
	out := make([]PageView, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageView(p))
	}
	return out
}

// List returns all pages.
func (s *PageService) List(ctx context.Context) ([]PageView, error) {
	pages, err := s.queries.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	return pageViews(pages), nil
}

// ListPublished returns the pages visible on the public site.
func (s *PageService) ListPublished(ctx context.Context) ([]PageView, error) {
	pages, err := s.queries.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PageView, 0, len(pages))
	for _, p := range pages {
		if p.IsPublished {
			out = append(out, pageView(p))
		}
	}
	return out, nil
}

// ListServicePages returns published service pages by service order, then title.
func (s *PageService) ListServicePages(ctx context.Context) ([]PageView, error) {
	pages, err := s.queries.ListServicePages(ctx)
	if err != nil {
		return nil, err
	}
	return pageViews(pages), nil
}

// Get returns a page by id.
func (s *PageService) Get(ctx context.Context, id int64) (PageView, error) {
	p, err := s.queries.GetPageByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return PageView{}, ErrNotFound
	}
	if err != nil {
		return PageView{}, err
	}
	return pageView(p), nil
}

// GetPublishedBySlug returns a published page. Drafts are reported as not found.
func (s *PageService) GetPublishedBySlug(ctx context.Context, slug string) (PageView, error) {
	p, err := s.queries.GetPageBySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !p.IsPublished) {
		return PageView{}, ErrNotFound
	}
	if err != nil {
		return PageView{}, err
	}
	return pageView(p), nil
}

// Create adds a page. A slug already in use yields ErrSlugConflict.
func (s *PageService) Create(ctx context.Context, in PageInput, actor Actor) (PageView, error) {
	in, err := s.prepare(in)
	if err != nil {
		return PageView{}, err
	}

	var page store.Page
	err = store.WithTx(ctx, s.db, func(q *store.Queries) error {
		if err := checkPageReferences(ctx, q, 0, in); err != nil {
			return err
		}
		id, err := q.CreatePage(ctx, store.CreatePageParams{
			Slug:            in.Slug,
			Title:           in.Title,
			MetaTitle:       in.MetaTitle,
			MetaDescription: in.MetaDescription,
			Content:         in.Content,
			HeroImageID:     util.NullInt64FromPtr(in.HeroImageID),
			IsPublished:     in.IsPublished,
			IsServicePage:   in.IsServicePage,
			ServiceIcon:     in.ServiceIcon,
			ServiceOrder:    in.ServiceOrder,
			Language:        in.Language,
			CreatedBy:       actorID(actor),
			CreatedAt:       time.Now().UTC(),
		})
		if err != nil {
			return mapSlugConstraint(fmt.Errorf("creating page: %w", err))
		}
		page, err = q.GetPageByID(ctx, id)
		return err
	})
	if err != nil {
		return PageView{}, err
	}

	s.nav.InvalidateCache(ctx)
	s.events.Record(ctx, actor, model.EventCategoryPage, "Page created",
		map[string]any{"page_id": page.ID, "title": page.Title, "slug": page.Slug})
	return pageView(page), nil
}

// Update replaces the editable fields of page id. On ErrSlugConflict the
// stored page is left untouched.
func (s *PageService) Update(ctx context.Context, id int64, in PageInput, actor Actor) (PageView, error) {
	in, err := s.prepare(in)
	if err != nil {
		return PageView{}, err
	}

	var before, page store.Page
	err = store.WithTx(ctx, s.db, func(q *store.Queries) error {
		var err error
		before, err = q.GetPageByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := checkPageReferences(ctx, q, id, in); err != nil {
			return err
		}
		if err := q.UpdatePage(ctx, store.UpdatePageParams{
			ID:              id,
			Slug:            in.Slug,
			Title:           in.Title,
			MetaTitle:       in.MetaTitle,
			MetaDescription: in.MetaDescription,
			Content:         in.Content,
			HeroImageID:     util.NullInt64FromPtr(in.HeroImageID),
			IsPublished:     in.IsPublished,
			IsServicePage:   in.IsServicePage,
			ServiceIcon:     in.ServiceIcon,
			ServiceOrder:    in.ServiceOrder,
			Language:        in.Language,
			UpdatedBy:       actorID(actor),
			UpdatedAt:       time.Now().UTC(),
		}); err != nil {
			return mapSlugConstraint(fmt.Errorf("updating page: %w", err))
		}
		page, err = q.GetPageByID(ctx, id)
		return err
	})
	if err != nil {
		return PageView{}, err
	}

	s.nav.InvalidateCache(ctx)
	s.events.Record(ctx, actor, model.EventCategoryPage, "Page updated",
		map[string]any{"page_id": id, "old_title": before.Title, "title": page.Title, "slug": page.Slug})
	return pageView(page), nil
}

// TogglePublish flips the publication flag and returns the new value.
func (s *PageService) TogglePublish(ctx context.Context, id int64, actor Actor) (bool, error) {
	var published bool
	err := store.WithTx(ctx, s.db, func(q *store.Queries) error {
		p, err := q.GetPageByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		published = !p.IsPublished
		return q.SetPagePublished(ctx, store.SetPagePublishedParams{
			ID:          id,
			IsPublished: published,
			UpdatedBy:   actorID(actor),
			UpdatedAt:   time.Now().UTC(),
		})
	})
	if err != nil {
		return false, err
	}

	s.nav.InvalidateCache(ctx)
	s.events.Record(ctx, actor, model.EventCategoryPage, "Page publication changed",
		map[string]any{"page_id": id, "published": published})
	return published, nil
}

// Delete removes page id. Navigation items linking to it keep their row
// with the page reference cleared.
func (s *PageService) Delete(ctx context.Context, id int64, actor Actor) error {
	var page store.Page
	err := store.WithTx(ctx, s.db, func(q *store.Queries) error {
		var err error
		page, err = q.GetPageByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := q.DeletePage(ctx, id); err != nil {
			return fmt.Errorf("deleting page: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.nav.InvalidateCache(ctx)
	s.events.Record(ctx, actor, model.EventCategoryPage, "Page deleted",
		map[string]any{"page_id": id, "title": page.Title, "slug": page.Slug})
	return nil
}

// prepare sanitizes in, derives a missing slug and validates the result.
func (s *PageService) prepare(in PageInput) (PageInput, error) {
	in.Title = s.sanitizer.Text(in.Title)
	in.MetaTitle = s.sanitizer.Text(in.MetaTitle)
	in.MetaDescription = s.sanitizer.Text(in.MetaDescription)
	in.ServiceIcon = s.sanitizer.Text(in.ServiceIcon)
	in.Content = s.sanitizer.Clean(in.Content)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = util.Slugify(in.Title)
	}
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	if in.Language == "" {
		in.Language = defaultLanguage
	}

	verr := NewValidationError()
	switch {
	case in.Title == "":
		verr.Add("title", "title is required")
	case len([]rune(in.Title)) > maxTitleLength:
		verr.Add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	switch {
	case in.Slug == "":
		verr.Add("slug", "slug is required")
	case len(in.Slug) > util.MaxSlugLength:
		verr.Add("slug", fmt.Sprintf("slug must be at most %d characters", util.MaxSlugLength))
	case !util.IsValidSlug(in.Slug):
		verr.Add("slug", "slug may contain only lowercase letters, digits and single hyphens")
	}
	if len([]rune(in.MetaTitle)) > maxTitleLength {
		verr.Add("metaTitle", fmt.Sprintf("meta title must be at most %d characters", maxTitleLength))
	}
	if len([]rune(in.MetaDescription)) > maxMetaDescriptionLength {
		verr.Add("metaDescription", fmt.Sprintf("meta description must be at most %d characters", maxMetaDescriptionLength))
	}
	if len(in.Language) > 10 {
		verr.Add("language", "invalid language code")
	}
	return in, verr.Err()
}

// checkPageReferences enforces slug uniqueness and the hero image
// reference inside the writing transaction. id is zero for a new page.
func checkPageReferences(ctx context.Context, q *store.Queries, id int64, in PageInput) error {
	existing, err := q.GetPageBySlug(ctx, in.Slug)
	switch {
	case err == nil && existing.ID != id:
		return ErrSlugConflict
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return err
	}

	if in.HeroImageID != nil {
		if _, err := q.GetImage(ctx, *in.HeroImageID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fieldError("heroImageId", "image not found")
			}
			return err
		}
	}
	return nil
}

// mapSlugConstraint turns a unique index violation on pages.slug, raised
// by a concurrent writer, into ErrSlugConflict.
func mapSlugConstraint(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed: pages.slug") {
		return ErrSlugConflict
	}
	return err
}

func actorID(actor Actor) sql.NullInt64 {
	if actor.UserID <= 0 {
		return sql.NullInt64{}
	}
	return util.NullInt64FromValue(actor.UserID)
}
