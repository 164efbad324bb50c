// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const imageSelect = `SELECT i.id, i.filename, i.original_filename, i.mime_type, i.file_size, i.width, i.height,
	i.alt_text, i.uploaded_by, u.username, i.created_at
	FROM images i
	LEFT JOIN users u ON u.id = i.uploaded_by`

func scanImage(row scanner) (Image, error) {
	var i Image
	err := row.Scan(
		&i.ID,
		&i.Filename,
		&i.OriginalFilename,
		&i.MimeType,
		&i.FileSize,
		&i.Width,
		&i.Height,
		&i.AltText,
		&i.UploadedBy,
		&i.UploadedByName,
		&i.CreatedAt,
	)
	return i, err
}

// ListImages returns all images, newest first.
func (q *Queries) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := q.db.QueryContext(ctx, imageSelect+` ORDER BY i.created_at DESC, i.id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Image
	for rows.Next() {
		i, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// GetImage returns one image by id.
func (q *Queries) GetImage(ctx context.Context, id int64) (Image, error) {
	return scanImage(q.db.QueryRowContext(ctx, imageSelect+` WHERE i.id = ?`, id))
}

// CreateImageParams holds the columns for CreateImage.
type CreateImageParams struct {
	Filename         string
	OriginalFilename string
	MimeType         string
	FileSize         int64
	Width            sql.NullInt64
	Height           sql.NullInt64
	AltText          string
	UploadedBy       sql.NullInt64
	CreatedAt        time.Time
}

// CreateImage inserts an image row and returns its id.
func (q *Queries) CreateImage(ctx context.Context, arg CreateImageParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO images
			(filename, original_filename, mime_type, file_size, width, height, alt_text, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Filename, arg.OriginalFilename, arg.MimeType, arg.FileSize, arg.Width, arg.Height,
		arg.AltText, arg.UploadedBy, arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateImageAltText sets the alt text of an image.
func (q *Queries) UpdateImageAltText(ctx context.Context, id int64, altText string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE images SET alt_text = ? WHERE id = ?`, altText, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteImage removes an image row; pages using it as hero lose the reference.
func (q *Queries) DeleteImage(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	return err
}
