// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the application configuration from TEG_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
	"your-secret-key-change-in-production",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"TEG_DB_PATH" envDefault:"./data/teg.db"`
	DBDriver      string `env:"TEG_DB_DRIVER" envDefault:"sqlite"` // "sqlite" (pure Go) or "sqlite3" (cgo)
	SessionSecret string `env:"TEG_SESSION_SECRET,required"`
	ServerHost    string `env:"TEG_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"TEG_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"TEG_ENV" envDefault:"development"`
	LogLevel      string `env:"TEG_LOG_LEVEL" envDefault:"info"`
	UploadsDir    string `env:"TEG_UPLOADS_DIR" envDefault:"./uploads"`
	SiteURL       string `env:"TEG_SITE_URL" envDefault:"http://localhost:8080"` // Used in password reset links

	// Authentication
	SessionLifetime  time.Duration `env:"TEG_SESSION_LIFETIME" envDefault:"24h"`
	MaxLoginAttempts int           `env:"TEG_MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	LockoutDuration  time.Duration `env:"TEG_LOCKOUT_DURATION" envDefault:"30m"`
	PasswordResetTTL time.Duration `env:"TEG_PASSWORD_RESET_TTL" envDefault:"1h"`

	// Bootstrap administrator, created only when the users table is empty
	AdminUsername string `env:"TEG_ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail    string `env:"TEG_ADMIN_EMAIL"`
	AdminPassword string `env:"TEG_ADMIN_PASSWORD"`

	// Cache configuration
	RedisURL     string `env:"TEG_REDIS_URL"`                         // Optional Redis URL for distributed caching
	CachePrefix  string `env:"TEG_CACHE_PREFIX" envDefault:"teg:"`    // Redis key prefix
	CacheTTL     int    `env:"TEG_CACHE_TTL" envDefault:"3600"`       // Default cache TTL in seconds
	CacheMaxSize int    `env:"TEG_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries

	// GeoIP configuration
	GeoIPDBPath string `env:"TEG_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	// Uploads
	MaxUploadSize int64 `env:"TEG_MAX_UPLOAD_SIZE" envDefault:"5242880"` // 5MB

	// Extra origins accepted by CSRF protection (scheme://host[:port])
	TrustedOrigins []string `env:"TEG_TRUSTED_ORIGINS" envSeparator:","`

	// Audit events older than this many days are purged by the scheduler
	EventRetentionDays int `env:"TEG_EVENT_RETENTION_DAYS" envDefault:"90"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// CacheTTLDuration returns the default cache TTL.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// MinSessionSecretLength is the minimum required length for the session secret.
// The secret doubles as the 32-byte CSRF authentication key.
const MinSessionSecretLength = 32

var validEnvs = []string{"development", "production", "test"}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("TEG_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("TEG_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("TEG_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if !isValidEnv(cfg.Env) {
		return nil, fmt.Errorf("TEG_ENV must be one of %s, got %q", strings.Join(validEnvs, ", "), cfg.Env)
	}

	if cfg.MaxLoginAttempts < 1 {
		return nil, fmt.Errorf("TEG_MAX_LOGIN_ATTEMPTS must be positive, got %d", cfg.MaxLoginAttempts)
	}
	if cfg.LockoutDuration <= 0 {
		return nil, fmt.Errorf("TEG_LOCKOUT_DURATION must be positive, got %s", cfg.LockoutDuration)
	}
	if cfg.SessionLifetime <= 0 {
		return nil, fmt.Errorf("TEG_SESSION_LIFETIME must be positive, got %s", cfg.SessionLifetime)
	}

	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	return cfg, nil
}

func isValidEnv(e string) bool {
	for _, v := range validEnvs {
		if e == v {
			return true
		}
	}
	return false
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
