// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const submissionColumns = `id, name, email, phone, subject, message, service_interest, ip_address,
	user_agent, country_code, is_read, email_sent, email_error, created_at`

func scanSubmission(row scanner) (ContactSubmission, error) {
	var s ContactSubmission
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Email,
		&s.Phone,
		&s.Subject,
		&s.Message,
		&s.ServiceInterest,
		&s.IpAddress,
		&s.UserAgent,
		&s.CountryCode,
		&s.IsRead,
		&s.EmailSent,
		&s.EmailError,
		&s.CreatedAt,
	)
	return s, err
}

// CreateSubmissionParams holds the columns for CreateSubmission.
type CreateSubmissionParams struct {
	Name            string
	Email           string
	Phone           string
	Subject         string
	Message         string
	ServiceInterest string
	IpAddress       string
	UserAgent       string
	CountryCode     string
	CreatedAt       time.Time
}

// CreateSubmission inserts a contact submission.
func (q *Queries) CreateSubmission(ctx context.Context, arg CreateSubmissionParams) (ContactSubmission, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO contact_submissions
			(name, email, phone, subject, message, service_interest, ip_address, user_agent, country_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Name, arg.Email, arg.Phone, arg.Subject, arg.Message, arg.ServiceInterest,
		arg.IpAddress, arg.UserAgent, arg.CountryCode, arg.CreatedAt,
	)
	if err != nil {
		return ContactSubmission{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ContactSubmission{}, err
	}
	return q.GetSubmission(ctx, id)
}

// GetSubmission returns a submission by id.
func (q *Queries) GetSubmission(ctx context.Context, id int64) (ContactSubmission, error) {
	return scanSubmission(q.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM contact_submissions WHERE id = ?`, id))
}

// ListSubmissionsParams holds the arguments for ListSubmissions.
type ListSubmissionsParams struct {
	UnreadOnly bool
	Limit      int64
	Offset     int64
}

// ListSubmissions returns submissions, newest first.
func (q *Queries) ListSubmissions(ctx context.Context, arg ListSubmissionsParams) ([]ContactSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM contact_submissions`
	if arg.UnreadOnly {
		query += ` WHERE is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := q.db.QueryContext(ctx, query, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []ContactSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// SetSubmissionRead sets the read flag.
func (q *Queries) SetSubmissionRead(ctx context.Context, id int64, isRead bool) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE contact_submissions SET is_read = ? WHERE id = ?`, isRead, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateSubmissionEmailStatusParams holds the arguments for UpdateSubmissionEmailStatus.
type UpdateSubmissionEmailStatusParams struct {
	ID         int64
	EmailSent  bool
	EmailError string
}

// UpdateSubmissionEmailStatus records the notification delivery outcome.
func (q *Queries) UpdateSubmissionEmailStatus(ctx context.Context, arg UpdateSubmissionEmailStatusParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE contact_submissions SET email_sent = ?, email_error = ? WHERE id = ?`,
		arg.EmailSent, arg.EmailError, arg.ID,
	)
	return err
}

// DeleteSubmission removes a submission.
func (q *Queries) DeleteSubmission(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM contact_submissions WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SubmissionStats holds submission totals.
type SubmissionStats struct {
	Total    int64
	Unread   int64
	ThisWeek int64
}

// GetSubmissionStats counts all, unread and recent submissions.
func (q *Queries) GetSubmissionStats(ctx context.Context, since time.Time) (SubmissionStats, error) {
	var s SubmissionStats
	err := q.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at > ? THEN 1 ELSE 0 END), 0)
		FROM contact_submissions`, since).Scan(&s.Total, &s.Unread, &s.ThisWeek)
	return s, err
}
