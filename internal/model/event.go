// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model holds shared domain constants.
package model

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth       = "auth"
	EventCategoryPage       = "page"
	EventCategoryNavigation = "navigation"
	EventCategoryImage      = "image"
	EventCategoryConfig     = "config"
	EventCategoryContact    = "contact"
	EventCategorySystem     = "system"
	EventCategoryCache      = "cache"
)

// EventCategories lists every category, in display order.
var EventCategories = []string{
	EventCategoryAuth,
	EventCategoryPage,
	EventCategoryNavigation,
	EventCategoryImage,
	EventCategoryConfig,
	EventCategoryContact,
	EventCategorySystem,
	EventCategoryCache,
}

// IsValidEventCategory reports whether c is a known category.
func IsValidEventCategory(c string) bool {
	for _, known := range EventCategories {
		if c == known {
			return true
		}
	}
	return false
}
