// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans untrusted input.
type Sanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewSanitizer creates a Sanitizer. Rich text keeps the tags the page
// editor produces; plain text strips every tag.
func NewSanitizer() *Sanitizer {
	rich := bluemonday.UGCPolicy()
	rich.AllowAttrs("class").Globally()
	rich.AllowAttrs("target").Matching(bluemonday.Paragraph).OnElements("a")
	rich.RequireNoFollowOnLinks(false)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.AllowElements("figure", "figcaption", "section", "span")

	return &Sanitizer{
		rich:  rich,
		plain: bluemonday.StrictPolicy(),
	}
}

// Clean returns safe HTML for page bodies.
func (s *Sanitizer) Clean(input string) string {
	return s.rich.Sanitize(input)
}

// Text strips all markup and surrounding whitespace. Entities are decoded
// so the result is plain text, not HTML.
func (s *Sanitizer) Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(input)))
}
