// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxUploadNameLength is the longest file name most filesystems accept.
const MaxUploadNameLength = 255

// ErrInvalidUploadName is returned for names that cannot address a file
// in the uploads directory.
var ErrInvalidUploadName = errors.New("invalid upload name")

// UploadName reduces a client-supplied file name to a bare name. Browsers
// on Windows may send "C:\fakepath\photo.png", so both separators count.
func UploadName(name string) (string, error) {
	base := strings.TrimSpace(name[strings.LastIndexAny(name, `/\`)+1:])
	switch {
	case base == "", base == ".", base == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidUploadName, name)
	case len(base) > MaxUploadNameLength:
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidUploadName, MaxUploadNameLength)
	case strings.ContainsFunc(base, unicode.IsControl):
		return "", fmt.Errorf("%w: control character in %q", ErrInvalidUploadName, name)
	}
	return base, nil
}

// UploadPath resolves a stored file name inside uploadsDir. Unlike
// UploadName it refuses anything that is not already a bare name.
func UploadPath(uploadsDir, name string) (string, error) {
	base, err := UploadName(name)
	if err != nil {
		return "", err
	}
	if base != name {
		return "", fmt.Errorf("%w: %q is not a bare file name", ErrInvalidUploadName, name)
	}

	dir, err := filepath.Abs(uploadsDir)
	if err != nil {
		return "", fmt.Errorf("resolving uploads directory: %w", err)
	}
	path := filepath.Join(dir, base)

	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel != filepath.Base(path) {
		return "", fmt.Errorf("%w: %q escapes the uploads directory", ErrInvalidUploadName, name)
	}
	return path, nil
}
