// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSitemap_ListsPublishedPagesOnly(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login()

	rr := s.do(http.MethodPost, "/api/admin/pages", map[string]any{"title": "About Us", "isPublished": true}, cookie)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = s.do(http.MethodPost, "/api/admin/pages", map[string]any{"title": "Draft Notes"}, cookie)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(http.MethodGet, "/sitemap.xml", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/xml; charset=utf-8", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "<loc>https://teg.example/</loc>")
	assert.Contains(t, body, "<loc>https://teg.example/page/about-us</loc>")
	assert.NotContains(t, body, "draft-notes")
}

func TestRobots(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/robots.txt", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Disallow: /admin\n")
	assert.Contains(t, rr.Body.String(), "Sitemap: https://teg.example/sitemap.xml\n")
}
