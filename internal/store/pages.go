// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const pageSelect = `SELECT p.id, p.slug, p.title, p.meta_title, p.meta_description, p.content,
	p.hero_image_id, i.filename, p.is_published, p.is_service_page, p.service_icon, p.service_order,
	p.language, p.created_by, p.updated_by, p.created_at, p.updated_at
	FROM pages p
	LEFT JOIN images i ON i.id = p.hero_image_id`

func scanPage(row scanner) (Page, error) {
	var p Page
	err := row.Scan(
		&p.ID,
		&p.Slug,
		&p.Title,
		&p.MetaTitle,
		&p.MetaDescription,
		&p.Content,
		&p.HeroImageID,
		&p.HeroImageFilename,
		&p.IsPublished,
		&p.IsServicePage,
		&p.ServiceIcon,
		&p.ServiceOrder,
		&p.Language,
		&p.CreatedBy,
		&p.UpdatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (q *Queries) listPages(ctx context.Context, query string, args ...any) ([]Page, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// GetPageByID returns a page by id.
func (q *Queries) GetPageByID(ctx context.Context, id int64) (Page, error) {
	return scanPage(q.db.QueryRowContext(ctx, pageSelect+` WHERE p.id = ?`, id))
}

// GetPageBySlug returns a page by exact slug.
func (q *Queries) GetPageBySlug(ctx context.Context, slug string) (Page, error) {
	return scanPage(q.db.QueryRowContext(ctx, pageSelect+` WHERE p.slug = ?`, slug))
}

// ListPages returns all pages, service pages first.
func (q *Queries) ListPages(ctx context.Context) ([]Page, error) {
	return q.listPages(ctx, pageSelect+` ORDER BY p.is_service_page DESC, p.service_order, p.title`)
}

// ListServicePages returns published service pages in display order.
func (q *Queries) ListServicePages(ctx context.Context) ([]Page, error) {
	return q.listPages(ctx, pageSelect+` WHERE p.is_service_page = 1 AND p.is_published = 1
		ORDER BY p.service_order, p.title`)
}

// CreatePageParams holds the columns for CreatePage.
type CreatePageParams struct {
	Slug            string
	Title           string
	MetaTitle       string
	MetaDescription string
	Content         string
	HeroImageID     sql.NullInt64
	IsPublished     bool
	IsServicePage   bool
	ServiceIcon     string
	ServiceOrder    int64
	Language        string
	CreatedBy       sql.NullInt64
	CreatedAt       time.Time
}

// CreatePage inserts a page and returns its id.
func (q *Queries) CreatePage(ctx context.Context, arg CreatePageParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO pages (
			slug, title, meta_title, meta_description, content, hero_image_id, is_published,
			is_service_page, service_icon, service_order, language, created_by, updated_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Slug, arg.Title, arg.MetaTitle, arg.MetaDescription, arg.Content, arg.HeroImageID, arg.IsPublished,
		arg.IsServicePage, arg.ServiceIcon, arg.ServiceOrder, arg.Language, arg.CreatedBy, arg.CreatedBy,
		arg.CreatedAt, arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdatePageParams holds the columns for UpdatePage.
type UpdatePageParams struct {
	ID              int64
	Slug            string
	Title           string
	MetaTitle       string
	MetaDescription string
	Content         string
	HeroImageID     sql.NullInt64
	IsPublished     bool
	IsServicePage   bool
	ServiceIcon     string
	ServiceOrder    int64
	Language        string
	UpdatedBy       sql.NullInt64
	UpdatedAt       time.Time
}

// UpdatePage overwrites every editable column of a page.
func (q *Queries) UpdatePage(ctx context.Context, arg UpdatePageParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE pages SET
			slug = ?, title = ?, meta_title = ?, meta_description = ?, content = ?, hero_image_id = ?,
			is_published = ?, is_service_page = ?, service_icon = ?, service_order = ?, language = ?,
			updated_by = ?, updated_at = ?
		WHERE id = ?`,
		arg.Slug, arg.Title, arg.MetaTitle, arg.MetaDescription, arg.Content, arg.HeroImageID,
		arg.IsPublished, arg.IsServicePage, arg.ServiceIcon, arg.ServiceOrder, arg.Language,
		arg.UpdatedBy, arg.UpdatedAt, arg.ID,
	)
	return err
}

// SetPagePublishedParams holds the arguments for SetPagePublished.
type SetPagePublishedParams struct {
	ID          int64
	IsPublished bool
	UpdatedBy   sql.NullInt64
	UpdatedAt   time.Time
}

// SetPagePublished flips only the publication flag.
func (q *Queries) SetPagePublished(ctx context.Context, arg SetPagePublishedParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE pages SET is_published = ?, updated_by = ?, updated_at = ? WHERE id = ?`,
		arg.IsPublished, arg.UpdatedBy, arg.UpdatedAt, arg.ID,
	)
	return err
}

// DeletePage removes a page. Navigation items referencing it keep their
// row with page_id set to NULL.
func (q *Queries) DeletePage(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PageCounts holds dashboard page totals.
type PageCounts struct {
	Total     int64
	Published int64
}

// CountPages returns total and published page counts.
func (q *Queries) CountPages(ctx context.Context) (PageCounts, error) {
	var c PageCounts
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(is_published), 0) FROM pages`).Scan(&c.Total, &c.Published)
	return c, err
}
