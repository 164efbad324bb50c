// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters shared by enrolment and validation.
const (
	TOTPIssuer = "TEG Finance Admin"
	TOTPPeriod = 30
	TOTPSkew   = 1
	qrSize     = 200
)

// TOTPEnrollment is a freshly generated secret plus what the user needs to
// register it in an authenticator app.
type TOTPEnrollment struct {
	Secret    string
	URL       string
	QRDataURI string
}

// GenerateTOTP creates a new secret for accountName and renders its
// provisioning URL as a PNG data URI.
func GenerateTOTP(accountName string) (TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: accountName,
		Period:      TOTPPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("generating TOTP secret: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("rendering QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return TOTPEnrollment{}, fmt.Errorf("encoding QR code: %w", err)
	}

	return TOTPEnrollment{
		Secret:    key.Secret(),
		URL:       key.URL(),
		QRDataURI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// TOTPStep returns the time-step counter containing t.
func TOTPStep(t time.Time) int64 {
	return t.Unix() / TOTPPeriod
}

// MatchTOTP checks code against the steps around now and returns the step
// that matched. Steps at or before afterStep are ignored so a code cannot be
// replayed inside its window.
func MatchTOTP(secret, code string, now time.Time, afterStep int64) (int64, bool) {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return 0, false
	}

	opts := totp.ValidateOpts{
		Period:    TOTPPeriod,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}

	current := TOTPStep(now)
	for step := current - TOTPSkew; step <= current+TOTPSkew; step++ {
		if step <= afterStep {
			continue
		}
		expected, err := totp.GenerateCodeCustom(secret, time.Unix(step*TOTPPeriod, 0).UTC(), opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}
