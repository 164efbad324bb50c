// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidationError(t *testing.T) {
	v := NewValidationError()
	if v.Err() != nil {
		t.Fatal("empty ValidationError should yield nil")
	}

	v.Add("title", "title is required")
	v.Add("slug", "slug is invalid")
	v.Add("title", "ignored second message")

	err := fmt.Errorf("saving page: %w", v.Err())
	if !errors.Is(err, ErrValidation) {
		t.Error("expected errors.Is(err, ErrValidation)")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected errors.As to find *ValidationError")
	}
	if verr.Fields["title"] != "title is required" {
		t.Errorf("title message = %q", verr.Fields["title"])
	}

	want := "validation failed: slug: slug is invalid; title: title is required"
	if v.Error() != want {
		t.Errorf("Error() = %q, want %q", v.Error(), want)
	}
}

func TestAuthErrorsUnwrap(t *testing.T) {
	var err error = &InvalidCredentialsError{Remaining: 2}
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Error("InvalidCredentialsError should unwrap to ErrInvalidCredentials")
	}
	if err.Error() != ErrInvalidCredentials.Error() {
		t.Error("remaining attempts must not appear in the message")
	}

	err = &AccountLockedError{Until: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	if !errors.Is(err, ErrAccountLocked) {
		t.Error("AccountLockedError should unwrap to ErrAccountLocked")
	}
}
