// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testCSRFKey = []byte("12345678901234567890123456789012")

func TestDefaultCSRFConfig(t *testing.T) {
	tests := []struct {
		name    string
		siteURL string
		extra   []string
		isDev   bool
		want    []string
	}{
		{
			name:    "production site only",
			siteURL: "https://tegfinance.example",
			want:    []string{"tegfinance.example"},
		},
		{
			name:    "extra origins keep host and port",
			siteURL: "https://tegfinance.example",
			extra:   []string{"https://admin.tegfinance.example:8443", "not a url"},
			want:    []string{"tegfinance.example", "admin.tegfinance.example:8443"},
		},
		{
			name:    "development adds local servers",
			siteURL: "http://localhost:8080",
			isDev:   true,
			want:    []string{"localhost:8080", "127.0.0.1:8080", "localhost:5173"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCSRFConfig(testCSRFKey, tt.siteURL, tt.extra, tt.isDev)
			if len(cfg.AuthKey) != 32 {
				t.Errorf("AuthKey length = %d, want 32", len(cfg.AuthKey))
			}
			if strings.Join(cfg.TrustedOrigins, ",") != strings.Join(tt.want, ",") {
				t.Errorf("TrustedOrigins = %v, want %v", cfg.TrustedOrigins, tt.want)
			}
			for _, origin := range cfg.TrustedOrigins {
				if strings.HasPrefix(origin, "http") {
					t.Errorf("TrustedOrigin %q should be host[:port], not a URL", origin)
				}
			}
		})
	}
}

func TestCSRF_FetchMetadata(t *testing.T) {
	cfg := DefaultCSRFConfig(testCSRFKey, "https://tegfinance.example", nil, false)
	handler := CSRF(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name      string
		method    string
		fetchSite string
		want      int
	}{
		{"safe method cross-site", http.MethodGet, "cross-site", http.StatusOK},
		{"same-origin post", http.MethodPost, "same-origin", http.StatusOK},
		{"cross-site post", http.MethodPost, "cross-site", http.StatusForbidden},
		{"cross-site delete", http.MethodDelete, "cross-site", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "https://tegfinance.example/api/admin/pages", nil)
			req.Header.Set("Sec-Fetch-Site", tt.fetchSite)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("Status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusForbidden {
				if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
			}
		})
	}
}

func TestCSRF_CustomErrorHandler(t *testing.T) {
	cfg := DefaultCSRFConfig(testCSRFKey, "https://tegfinance.example", nil, false)

	called := false
	cfg.ErrorHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	handler := CSRF(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("downstream handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "https://tegfinance.example/api/admin/pages", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !called || rr.Code != http.StatusTeapot {
		t.Errorf("custom handler called = %v, status = %d", called, rr.Code)
	}
}
