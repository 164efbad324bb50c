// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"time"
)

// User is a row of the users table.
type User struct {
	ID                   int64
	Username             string
	Email                string
	PasswordHash         string
	TotpSecret           sql.NullString
	TotpEnabled          bool
	TotpLastStep         int64
	FailedLoginAttempts  int64
	LockedUntil          sql.NullTime
	PasswordResetToken   sql.NullString
	PasswordResetExpires sql.NullTime
	IsActive             bool
	LastLoginAt          sql.NullTime
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Session is a row of the sessions table.
type Session struct {
	ID           int64
	Token        string
	UserID       int64
	IpAddress    string
	UserAgent    string
	ExpiresAt    time.Time
	LastActivity time.Time
	CreatedAt    time.Time
}

// SessionWithUser is a session joined with the owning user's identity columns.
type SessionWithUser struct {
	Session
	Username    string
	Email       string
	TotpEnabled bool
}

// Page is a row of the pages table joined with its hero image filename.
type Page struct {
	ID                int64
	Slug              string
	Title             string
	MetaTitle         string
	MetaDescription   string
	Content           string
	HeroImageID       sql.NullInt64
	HeroImageFilename sql.NullString
	IsPublished       bool
	IsServicePage     bool
	ServiceIcon       string
	ServiceOrder      int64
	Language          string
	CreatedBy         sql.NullInt64
	UpdatedBy         sql.NullInt64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NavigationItem is a row of the navigation_items table joined with the
// referenced page slug.
type NavigationItem struct {
	ID           int64
	Label        string
	Url          string
	PageID       sql.NullInt64
	PageSlug     sql.NullString
	ParentID     sql.NullInt64
	Position     int64
	IsVisible    bool
	OpenInNewTab bool
	CreatedAt    time.Time
}

// Image is a row of the images table.
type Image struct {
	ID               int64
	Filename         string
	OriginalFilename string
	MimeType         string
	FileSize         int64
	Width            sql.NullInt64
	Height           sql.NullInt64
	AltText          string
	UploadedBy       sql.NullInt64
	UploadedByName   sql.NullString
	CreatedAt        time.Time
}

// SiteSetting is a row of the site_settings table.
type SiteSetting struct {
	ID        int64
	Key       string
	Value     string
	IsPublic  bool
	UpdatedBy sql.NullInt64
	UpdatedAt time.Time
}

// EmailConfig is the single row of the email_config table.
type EmailConfig struct {
	SmtpHost       string
	SmtpPort       int64
	UseTls         bool
	SmtpUsername   string
	SmtpPassword   string
	FromEmail      string
	FromName       string
	RecipientEmail string
	IsConfigured   bool
	UpdatedBy      sql.NullInt64
	UpdatedAt      time.Time
}

// ContactSubmission is a row of the contact_submissions table.
type ContactSubmission struct {
	ID              int64
	Name            string
	Email           string
	Phone           string
	Subject         string
	Message         string
	ServiceInterest string
	IpAddress       string
	UserAgent       string
	CountryCode     string
	IsRead          bool
	EmailSent       bool
	EmailError      string
	CreatedAt       time.Time
}

// Event is a row of the events (audit log) table.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	Username  sql.NullString
	Metadata  string
	IpAddress string
	UserAgent string
	CreatedAt time.Time
}
