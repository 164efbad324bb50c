// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seo

import (
	"strings"
	"testing"
)

func TestBuildRobotsDefault(t *testing.T) {
	content := BuildRobots(RobotsConfig{
		SiteURL:       "https://tegfinance.example/",
		DisallowPaths: []string{"/drafts"},
	})

	for _, want := range []string{
		"User-agent: *\n",
		"Disallow: /admin\n",
		"Disallow: /api/\n",
		"Disallow: /drafts\n",
		"Allow: /\n",
		"Sitemap: https://tegfinance.example/sitemap.xml\n",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("BuildRobots() missing %q in:\n%s", want, content)
		}
	}
}

func TestBuildRobotsDisallowAll(t *testing.T) {
	content := BuildRobots(RobotsConfig{SiteURL: "https://tegfinance.example", DisallowAll: true})

	if content != "User-agent: *\nDisallow: /\n" {
		t.Errorf("BuildRobots() = %q", content)
	}
}

func TestBuildRobotsDefaultsNotMutated(t *testing.T) {
	_ = BuildRobots(RobotsConfig{DisallowPaths: []string{"/a", "/b", "/c"}})

	if len(defaultDisallow) != 2 {
		t.Errorf("defaultDisallow modified: %v", defaultDisallow)
	}
}
