// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Sentinel errors. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrAccountLocked        = errors.New("account temporarily locked")
	ErrTwoFactorRequired    = errors.New("two-factor verification required")
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
	ErrSlugConflict         = errors.New("slug already in use")
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
)

// InvalidCredentialsError carries the attempts left before lockout.
type InvalidCredentialsError struct {
	Remaining int
}

func (e *InvalidCredentialsError) Error() string {
	return ErrInvalidCredentials.Error()
}

func (e *InvalidCredentialsError) Unwrap() error {
	return ErrInvalidCredentials
}

// AccountLockedError reports when a locked account may try again.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("%s until %s", ErrAccountLocked, e.Until.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Unwrap() error {
	return ErrAccountLocked
}

// RetryAfter returns the whole seconds from now until the lock lifts, at least 1.
func (e *AccountLockedError) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(e.Until.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// ValidationError holds per-field messages.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records msg for field unless the field already has a message.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Err returns e when it holds any field, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// fieldError is shorthand for a ValidationError with one field.
func fieldError(field, msg string) error {
	v := NewValidationError()
	v.Add(field, msg)
	return v
}
