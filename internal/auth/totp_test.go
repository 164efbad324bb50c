// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()

	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    TOTPPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}

func TestGenerateTOTP(t *testing.T) {
	enrollment, err := GenerateTOTP("admin")
	if err != nil {
		t.Fatalf("GenerateTOTP: %v", err)
	}
	if enrollment.Secret == "" {
		t.Error("expected a secret")
	}
	if !strings.HasPrefix(enrollment.QRDataURI, "data:image/png;base64,") {
		t.Errorf("QRDataURI prefix = %q", enrollment.QRDataURI[:min(30, len(enrollment.QRDataURI))])
	}
	if !strings.Contains(enrollment.URL, "otpauth://totp/") {
		t.Errorf("URL = %q, want otpauth URL", enrollment.URL)
	}
}

func TestMatchTOTP(t *testing.T) {
	enrollment, err := GenerateTOTP("admin")
	if err != nil {
		t.Fatalf("GenerateTOTP: %v", err)
	}
	secret := enrollment.Secret
	now := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)
	current := TOTPStep(now)

	tests := []struct {
		name      string
		code      string
		afterStep int64
		wantStep  int64
		wantOK    bool
	}{
		{"current window", codeAt(t, secret, now), 0, current, true},
		{"previous window", codeAt(t, secret, now.Add(-30*time.Second)), 0, current - 1, true},
		{"next window", codeAt(t, secret, now.Add(30*time.Second)), 0, current + 1, true},
		{"two windows old", codeAt(t, secret, now.Add(-90*time.Second)), 0, 0, false},
		{"replayed step", codeAt(t, secret, now), current, 0, false},
		{"wrong length", "12345", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, ok := MatchTOTP(secret, tt.code, now, tt.afterStep)
			if ok != tt.wantOK {
				t.Fatalf("MatchTOTP() ok = %v, want %v", ok, tt.wantOK)
			}
			if step != tt.wantStep {
				t.Errorf("MatchTOTP() step = %d, want %d", step, tt.wantStep)
			}
		})
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	b, _ := GenerateToken()
	if a == b {
		t.Error("expected distinct tokens")
	}
	if len(a) != 43 {
		t.Errorf("token length = %d, want 43", len(a))
	}
	if HashToken(a) == a || len(HashToken(a)) != 64 {
		t.Errorf("HashToken(%q) = %q", a, HashToken(a))
	}
}
