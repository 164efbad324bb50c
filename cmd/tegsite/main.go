// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/tegsite/internal/cache"
	"github.com/olegiv/tegsite/internal/config"
	"github.com/olegiv/tegsite/internal/geoip"
	"github.com/olegiv/tegsite/internal/handler"
	"github.com/olegiv/tegsite/internal/imaging"
	"github.com/olegiv/tegsite/internal/logging"
	"github.com/olegiv/tegsite/internal/mail"
	"github.com/olegiv/tegsite/internal/middleware"
	"github.com/olegiv/tegsite/internal/scheduler"
	"github.com/olegiv/tegsite/internal/service"
	"github.com/olegiv/tegsite/internal/session"
	"github.com/olegiv/tegsite/internal/store"
	"github.com/olegiv/tegsite/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func buildInfo() version.Info {
	return version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}
}

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	resetUser := flag.String("reset-admin-password", "", "Set the password of `username` to TEG_ADMIN_PASSWORD and exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "tegsite - TEG Finance website and admin API\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TEG_SESSION_SECRET     Session and CSRF key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TEG_DB_PATH            SQLite database path (default: ./data/teg.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TEG_DB_DRIVER          sqlite (pure Go) or sqlite3 (cgo) (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TEG_SERVER_PORT        Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TEG_ENV                Environment: development|production|test (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TEG_SITE_URL           Public base URL used in emails and CSRF origin checks\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TEG_ADMIN_USERNAME     Bootstrap administrator username (default: admin)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TEG_ADMIN_PASSWORD     Bootstrap administrator password\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TEG_REDIS_URL          Redis URL for shared caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TEG_GEOIP_DB_PATH      GeoLite2-Country.mmdb path (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Println(buildInfo())
		os.Exit(0)
	}

	var err error
	if *resetUser != "" {
		err = resetAdminPassword(*resetUser)
	} else {
		err = run()
	}
	if err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbCfg := store.DefaultDBConfig()
	dbCfg.Driver = cfg.DBDriver
	slog.Info("initializing database", "path", cfg.DBPath, "driver", dbCfg.Driver)
	db, err := store.NewDBWithConfig(cfg.DBPath, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func resetAdminPassword(username string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.AdminPassword == "" {
		return errors.New("TEG_ADMIN_PASSWORD must be set to reset a password")
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := store.ResetAdminPassword(context.Background(), db, username, cfg.AdminPassword); err != nil {
		return fmt.Errorf("resetting password: %w", err)
	}
	slog.Info("password reset", "username", username)
	return nil
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	ctx := context.Background()
	if err := store.Seed(ctx, db, store.AdminSeed{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}

	cacheCfg := cache.Config{
		Prefix:           cfg.CachePrefix,
		DefaultTTL:       cfg.CacheTTLDuration(),
		MaxSize:          cfg.CacheMaxSize,
		CleanupInterval:  time.Minute,
		FallbackToMemory: true,
	}
	if cfg.UseRedisCache() {
		cacheCfg.RedisURL = cfg.RedisURL
	}
	cacheInfo, err := cache.NewCacheWithInfo(cacheCfg)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	appCache := cacheInfo.Cache
	defer func() { _ = appCache.Close() }()
	switch {
	case cacheInfo.IsFallback:
		slog.Warn("cache initialized", "backend", cacheInfo.Backend, "note", "Redis unavailable, using fallback")
	case cacheInfo.Backend == cache.BackendRedis:
		slog.Info("cache initialized", "backend", cacheInfo.Backend, "url", cache.SanitizeRedisURL(cfg.RedisURL))
	default:
		slog.Info("cache initialized", "backend", cacheInfo.Backend)
	}

	geo := geoip.NewLookup()
	if cfg.GeoIPEnabled() {
		if err := geo.Init(cfg.GeoIPDBPath); err != nil {
			slog.Warn("geoip database not loaded, country lookup disabled", "path", cfg.GeoIPDBPath, "error", err)
		} else {
			slog.Info("geoip enabled", "path", cfg.GeoIPDBPath)
		}
	}
	defer func() { _ = geo.Close() }()

	if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}

	mailer := mail.NewSMTPSender(db, logger)
	events := service.NewEventService(db, logger)
	sanitizer := service.NewSanitizer()
	nav := service.NewNavigationService(db, appCache, sanitizer, events, logger)
	pages := service.NewPageService(db, sanitizer, events, nav)
	settings := service.NewSettingsService(db, appCache, sanitizer, mailer, events, logger)
	contact := service.NewContactService(db, sanitizer, mailer, geo, events, logger)
	images := service.NewImageService(db, imaging.NewProcessor(cfg.UploadsDir, cfg.MaxUploadSize), sanitizer, events, logger)
	authn := service.NewAuthenticator(db, appCache, mailer, events, service.AuthConfig{
		MaxLoginAttempts: cfg.MaxLoginAttempts,
		LockoutDuration:  cfg.LockoutDuration,
		ResetTokenTTL:    cfg.PasswordResetTTL,
		SiteURL:          cfg.SiteURL,
	}, logger)
	sessions := session.NewStore(db, cfg.SessionLifetime)

	sched := scheduler.New(logger)
	if err := scheduler.RegisterMaintenance(sched, scheduler.Maintenance{
		DB:             db,
		Sessions:       sessions,
		GeoIP:          geo,
		EventRetention: time.Duration(cfg.EventRetentionDays) * 24 * time.Hour,
		Logger:         logger,
	}); err != nil {
		return fmt.Errorf("registering scheduled jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	secureCookie := !cfg.IsDevelopment()
	routes := &handler.Routes{
		Auth:           handler.NewAuthHandler(authn, sessions, logger, secureCookie),
		Pages:          handler.NewPagesHandler(pages),
		Navigation:     handler.NewNavigationHandler(nav),
		Images:         handler.NewImagesHandler(images, cfg.MaxUploadSize, logger),
		Settings:       handler.NewSettingsHandler(settings, logger),
		Submissions:    handler.NewSubmissionsHandler(contact),
		Dashboard:      handler.NewDashboardHandler(service.NewDashboardService(db, contact), events),
		Public:         handler.NewPublicHandler(pages, nav, settings, contact),
		Health:         handler.NewHealthHandler(db, cfg.UploadsDir, buildInfo()),
		Cache:          handler.NewCacheHandler(appCache, cacheInfo.Backend, events, logger),
		Scheduler:      handler.NewSchedulerHandler(sched, events),
		SEO:            handler.NewSEOHandler(pages, cfg.SiteURL, cfg.Env != "production", logger),
		RequireSession: middleware.RequireSession(sessions, logger),
		CSRF: middleware.CSRF(middleware.DefaultCSRFConfig(
			[]byte(cfg.SessionSecret)[:config.MinSessionSecretLength],
			cfg.SiteURL, cfg.TrustedOrigins, cfg.IsDevelopment(),
		)),
		LoginLimiter:          middleware.NewRateLimiter("login", middleware.LoginLimit, logger),
		TwoFactorLimiter:      middleware.NewRateLimiter("two-factor", middleware.TwoFactorLimit, logger),
		ForgotPasswordLimiter: middleware.NewRateLimiter("forgot-password", middleware.ForgotPasswordLimit, logger),
		ContactLimiter:        middleware.NewRateLimiter("contact", middleware.ContactLimit, logger),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.NewRateLimiter("global", middleware.DefaultLimit, logger).Middleware())

	routes.Register(r)

	uploads := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir)))
	r.Handle("/uploads/*", middleware.StaticCache(365*24*time.Hour, true)(uploads))

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", appVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	authn.Wait()

	slog.Info("server stopped")
	return nil
}
