// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const navigationSelect = `SELECT n.id, n.label, n.url, n.page_id, p.slug, n.parent_id, n.position,
	n.is_visible, n.open_in_new_tab, n.created_at
	FROM navigation_items n
	LEFT JOIN pages p ON p.id = n.page_id`

func scanNavigationItem(row scanner) (NavigationItem, error) {
	var n NavigationItem
	err := row.Scan(
		&n.ID,
		&n.Label,
		&n.Url,
		&n.PageID,
		&n.PageSlug,
		&n.ParentID,
		&n.Position,
		&n.IsVisible,
		&n.OpenInNewTab,
		&n.CreatedAt,
	)
	return n, err
}

// ListNavigationItems returns every item ordered by position, then creation order.
func (q *Queries) ListNavigationItems(ctx context.Context) ([]NavigationItem, error) {
	rows, err := q.db.QueryContext(ctx, navigationSelect+` ORDER BY n.position, n.created_at, n.id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []NavigationItem
	for rows.Next() {
		n, err := scanNavigationItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// GetNavigationItem returns one item by id.
func (q *Queries) GetNavigationItem(ctx context.Context, id int64) (NavigationItem, error) {
	return scanNavigationItem(q.db.QueryRowContext(ctx, navigationSelect+` WHERE n.id = ?`, id))
}

// CreateNavigationItemParams holds the columns for CreateNavigationItem.
type CreateNavigationItemParams struct {
	Label        string
	Url          string
	PageID       sql.NullInt64
	ParentID     sql.NullInt64
	Position     int64
	IsVisible    bool
	OpenInNewTab bool
	CreatedAt    time.Time
}

// CreateNavigationItem inserts an item and returns its id.
func (q *Queries) CreateNavigationItem(ctx context.Context, arg CreateNavigationItemParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO navigation_items
			(label, url, page_id, parent_id, position, is_visible, open_in_new_tab, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Label, arg.Url, arg.PageID, arg.ParentID, arg.Position, arg.IsVisible, arg.OpenInNewTab, arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateNavigationItemParams holds the columns for UpdateNavigationItem.
type UpdateNavigationItemParams struct {
	ID           int64
	Label        string
	Url          string
	PageID       sql.NullInt64
	ParentID     sql.NullInt64
	Position     int64
	IsVisible    bool
	OpenInNewTab bool
}

// UpdateNavigationItem overwrites every editable column of an item.
func (q *Queries) UpdateNavigationItem(ctx context.Context, arg UpdateNavigationItemParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE navigation_items SET
			label = ?, url = ?, page_id = ?, parent_id = ?, position = ?, is_visible = ?, open_in_new_tab = ?
		WHERE id = ?`,
		arg.Label, arg.Url, arg.PageID, arg.ParentID, arg.Position, arg.IsVisible, arg.OpenInNewTab, arg.ID,
	)
	return err
}

// MoveNavigationItemParams holds the arguments for MoveNavigationItem.
type MoveNavigationItemParams struct {
	ID       int64
	ParentID sql.NullInt64
	Position int64
}

// MoveNavigationItem sets parent and position of one item.
func (q *Queries) MoveNavigationItem(ctx context.Context, arg MoveNavigationItemParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE navigation_items SET parent_id = ?, position = ? WHERE id = ?`,
		arg.ParentID, arg.Position, arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteNavigationItem removes an item; descendants cascade.
func (q *Queries) DeleteNavigationItem(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM navigation_items WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
