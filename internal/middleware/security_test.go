// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveWithHeaders(cfg SecurityHeadersConfig, path string) *httptest.ResponseRecorder {
	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name       string
		isDev      bool
		wantHSTS   string
		wantScript string
	}{
		{
			name:       "production",
			isDev:      false,
			wantHSTS:   "max-age=31536000; includeSubDomains",
			wantScript: "script-src 'self';",
		},
		{
			name:       "development",
			isDev:      true,
			wantHSTS:   "",
			wantScript: "script-src 'self' 'unsafe-inline' 'unsafe-eval';",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithHeaders(DefaultSecurityHeadersConfig(tt.isDev), "/")

			if got := rec.Header().Get("Strict-Transport-Security"); got != tt.wantHSTS {
				t.Errorf("HSTS = %q, want %q", got, tt.wantHSTS)
			}
			csp := rec.Header().Get("Content-Security-Policy")
			if !strings.Contains(csp, tt.wantScript) {
				t.Errorf("CSP %q missing %q", csp, tt.wantScript)
			}
			if !strings.Contains(csp, "frame-ancestors 'none'") {
				t.Errorf("CSP %q should forbid framing", csp)
			}

			want := map[string]string{
				"X-Frame-Options":        "DENY",
				"X-Content-Type-Options": "nosniff",
				"Referrer-Policy":        "strict-origin-when-cross-origin",
			}
			for h, v := range want {
				if got := rec.Header().Get(h); got != v {
					t.Errorf("%s = %q, want %q", h, got, v)
				}
			}
			if rec.Header().Get("Permissions-Policy") == "" {
				t.Error("Permissions-Policy missing")
			}
		})
	}
}

func TestSecurityHeadersExcludePaths(t *testing.T) {
	cfg := DefaultSecurityHeadersConfig(false)
	cfg.ExcludePaths = []string{"/uploads/"}

	if rec := serveWithHeaders(cfg, "/uploads/a.png"); rec.Header().Get("Content-Security-Policy") != "" {
		t.Error("excluded path should not get CSP")
	}
	if rec := serveWithHeaders(cfg, "/api/navigation"); rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("non-excluded path should get CSP")
	}
}

func TestBuildCSP(t *testing.T) {
	csp := buildCSP(map[string]string{
		"upgrade-insecure-requests": "",
		"script-src":                "'self'",
		"default-src":               "'self'",
		"report-to":                 "csp",
	})

	want := "default-src 'self'; script-src 'self'; report-to csp; upgrade-insecure-requests "
	if csp != want {
		t.Errorf("buildCSP() = %q, want %q", csp, want)
	}
}

func TestBuildPermissionsPolicy(t *testing.T) {
	got := buildPermissionsPolicy(map[string]string{"usb": "()", "camera": "()"})
	if got != "camera=(), usb=()" {
		t.Errorf("buildPermissionsPolicy() = %q", got)
	}
}
