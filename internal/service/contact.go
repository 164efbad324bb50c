// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/olegiv/tegsite/internal/geoip"
	"github.com/olegiv/tegsite/internal/mail"
	"github.com/olegiv/tegsite/internal/model"
	"github.com/olegiv/tegsite/internal/store"
	"github.com/olegiv/tegsite/internal/util"
)

// Field limits for contact submissions.
const (
	maxContactName      = 100
	maxContactEmail     = 255
	maxContactPhone     = 30
	maxContactSubject   = 255
	maxContactMessage   = 5000
	maxContactService   = 100
	maxContactUserAgent = 500
)

// CountryResolver maps a client IP to an ISO country code.
type CountryResolver interface {
	LookupCountry(ip string) string
}

// ContactInput is a public contact form submission.
type ContactInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Subject         string `json:"subject"`
	Message         string `json:"message"`
	ServiceInterest string `json:"serviceInterest"`
}

// SubmissionView is a stored submission as shown in the admin UI.
type SubmissionView struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Subject         string    `json:"subject"`
	Message         string    `json:"message"`
	ServiceInterest string    `json:"serviceInterest"`
	IPAddress       string    `json:"ipAddress"`
	CountryCode     string    `json:"countryCode"`
	CountryName     string    `json:"countryName"`
	IsRead          bool      `json:"isRead"`
	EmailSent       bool      `json:"emailSent"`
	EmailError      string    `json:"emailError,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// SubmissionStats summarizes the inbox.
type SubmissionStats struct {
	Total    int64 `json:"total"`
	Unread   int64 `json:"unread"`
	ThisWeek int64 `json:"thisWeek"`
}

// ContactService stores contact form submissions and notifies the site owner.
type ContactService struct {
	queries   *store.Queries
	sanitizer *Sanitizer
	mailer    mail.Sender
	geo       CountryResolver
	events    *EventService
	logger    *slog.Logger
	now       func() time.Time
}

// NewContactService creates a ContactService. geo may be nil.
func NewContactService(db *sql.DB, sanitizer *Sanitizer, mailer mail.Sender, geo CountryResolver, events *EventService, logger *slog.Logger) *ContactService {
	return &ContactService{
		queries:   store.New(db),
		sanitizer: sanitizer,
		mailer:    mailer,
		geo:       geo,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and stores a submission, then emails a notification.
// Delivery failures are recorded on the row and do not fail the call.
func (s *ContactService) Submit(ctx context.Context, in ContactInput, client Actor) (SubmissionView, error) {
	in = s.clean(in)
	if err := validateContact(in); err != nil {
		return SubmissionView{}, err
	}

	country := ""
	if s.geo != nil {
		country = s.geo.LookupCountry(client.IP)
	}

	sub, err := s.queries.CreateSubmission(ctx, store.CreateSubmissionParams{
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		Subject:         in.Subject,
		Message:         in.Message,
		ServiceInterest: in.ServiceInterest,
		IpAddress:       client.IP,
		UserAgent:       util.TruncateRunes(client.UserAgent, maxContactUserAgent),
		CountryCode:     country,
		CreatedAt:       s.now(),
	})
	if err != nil {
		return SubmissionView{}, fmt.Errorf("storing contact submission: %w", err)
	}

	sendErr := s.mailer.SendMail(ctx, notificationMessage(sub))
	status := store.UpdateSubmissionEmailStatusParams{ID: sub.ID, EmailSent: sendErr == nil}
	if sendErr != nil {
		status.EmailError = util.TruncateRunes(sendErr.Error(), 500)
		if errors.Is(sendErr, mail.ErrNotConfigured) {
			s.logger.Info("contact notification skipped", "submission_id", sub.ID, "reason", sendErr)
		} else {
			s.logger.Warn("contact notification failed", "submission_id", sub.ID, "error", sendErr)
		}
	}
	if err := s.queries.UpdateSubmissionEmailStatus(ctx, status); err != nil {
		s.logger.Warn("failed to record notification status", "submission_id", sub.ID, "error", err)
	}
	sub.EmailSent = status.EmailSent
	sub.EmailError = status.EmailError

	s.events.Record(ctx, Actor{IP: client.IP, UserAgent: client.UserAgent}, model.EventCategoryContact,
		"Contact form submitted", map[string]any{"submission_id": sub.ID, "country": country})
	return submissionView(sub), nil
}

func (s *ContactService) clean(in ContactInput) ContactInput {
	return ContactInput{
		Name:            util.TruncateRunes(s.sanitizer.Text(in.Name), maxContactName),
		Email:           util.TruncateRunes(strings.TrimSpace(in.Email), maxContactEmail),
		Phone:           util.TruncateRunes(s.sanitizer.Text(in.Phone), maxContactPhone),
		Subject:         util.TruncateRunes(s.sanitizer.Text(in.Subject), maxContactSubject),
		Message:         util.TruncateRunes(s.sanitizer.Text(in.Message), maxContactMessage),
		ServiceInterest: util.TruncateRunes(s.sanitizer.Text(in.ServiceInterest), maxContactService),
	}
}

func validateContact(in ContactInput) error {
	verr := NewValidationError()
	if in.Name == "" {
		verr.Add("name", "name is required")
	}
	if in.Email == "" {
		verr.Add("email", "email is required")
	} else if addr, err := netmail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		verr.Add("email", "email address is invalid")
	}
	if in.Message == "" {
		verr.Add("message", "message is required")
	}
	return verr.Err()
}

func notificationMessage(sub store.ContactSubmission) mail.Message {
	subject := sub.Subject
	if subject == "" {
		subject = "No Subject"
	}

	var b strings.Builder
	b.WriteString("## New contact form submission\n\n")
	fmt.Fprintf(&b, "- **Name:** %s\n", sub.Name)
	fmt.Fprintf(&b, "- **Email:** %s\n", sub.Email)
	fmt.Fprintf(&b, "- **Phone:** %s\n", orDash(sub.Phone))
	fmt.Fprintf(&b, "- **Service interest:** %s\n", orDash(sub.ServiceInterest))
	fmt.Fprintf(&b, "- **Subject:** %s\n", subject)
	if sub.CountryCode != "" {
		fmt.Fprintf(&b, "- **Country:** %s\n", geoip.CountryName(sub.CountryCode))
	}
	b.WriteString("\n### Message\n\n")
	b.WriteString(sub.Message)
	b.WriteString("\n\n---\n\nSubmitted from the TEG Finance website contact form.\n")

	msg := mail.MarkdownMessage(nil, "New Contact Form Submission: "+subject, b.String())
	msg.ReplyTo = sub.Email
	return msg
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func submissionView(s store.ContactSubmission) SubmissionView {
	v := SubmissionView{
		ID:              s.ID,
		Name:            s.Name,
		Email:           s.Email,
		Phone:           s.Phone,
		Subject:         s.Subject,
		Message:         s.Message,
		ServiceInterest: s.ServiceInterest,
		IPAddress:       s.IpAddress,
		CountryCode:     s.CountryCode,
		IsRead:          s.IsRead,
		EmailSent:       s.EmailSent,
		EmailError:      s.EmailError,
		CreatedAt:       s.CreatedAt,
	}
	if s.CountryCode != "" {
		v.CountryName = geoip.CountryName(s.CountryCode)
	}
	return v
}

// List returns submissions newest first.
func (s *ContactService) List(ctx context.Context, unreadOnly bool, limit, offset int64) ([]SubmissionView, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.queries.ListSubmissions(ctx, store.ListSubmissionsParams{
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]SubmissionView, 0, len(rows))
	for _, r := range rows {
		out = append(out, submissionView(r))
	}
	return out, nil
}

// Stats counts all, unread and last-seven-days submissions.
func (s *ContactService) Stats(ctx context.Context) (SubmissionStats, error) {
	st, err := s.queries.GetSubmissionStats(ctx, s.now().AddDate(0, 0, -7))
	if err != nil {
		return SubmissionStats{}, err
	}
	return SubmissionStats{Total: st.Total, Unread: st.Unread, ThisWeek: st.ThisWeek}, nil
}

// MarkRead sets the read flag of submission id.
func (s *ContactService) MarkRead(ctx context.Context, id int64, isRead bool, actor Actor) error {
	n, err := s.queries.SetSubmissionRead(ctx, id, isRead)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	s.events.Record(ctx, actor, model.EventCategoryContact, "Submission marked",
		map[string]any{"submission_id": id, "read": isRead})
	return nil
}

// Delete removes submission id.
func (s *ContactService) Delete(ctx context.Context, id int64, actor Actor) error {
	n, err := s.queries.DeleteSubmission(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	s.events.Record(ctx, actor, model.EventCategoryContact, "Submission deleted",
		map[string]any{"submission_id": id})
	return nil
}
