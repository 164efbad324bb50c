// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/tegsite/internal/middleware"
)

// Routes groups the handlers and the per-route middleware of the JSON API.
// RequireSession is mandatory; a nil CSRF or limiter is skipped.
type Routes struct {
	Auth        *AuthHandler
	Pages       *PagesHandler
	Navigation  *NavigationHandler
	Images      *ImagesHandler
	Settings    *SettingsHandler
	Submissions *SubmissionsHandler
	Dashboard   *DashboardHandler
	Public      *PublicHandler
	Health      *HealthHandler
	Cache       *CacheHandler
	Scheduler   *SchedulerHandler
	SEO         *SEOHandler

	RequireSession func(http.Handler) http.Handler
	CSRF           func(http.Handler) http.Handler

	LoginLimiter          *middleware.RateLimiter
	TwoFactorLimiter      *middleware.RateLimiter
	ForgotPasswordLimiter *middleware.RateLimiter
	ContactLimiter        *middleware.RateLimiter
}

// Register mounts every route on r. It panics when RequireSession is nil.
func (rt *Routes) Register(r chi.Router) {
	if rt.RequireSession == nil {
		panic("handler: Routes.RequireSession is required")
	}

	r.Get("/health", rt.Health.Health)
	if rt.SEO != nil {
		r.Get("/sitemap.xml", rt.SEO.Sitemap)
		r.Get("/robots.txt", rt.SEO.Robots)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)

		// Public site
		r.Get("/navigation", rt.Public.Navigation)
		r.Get("/settings/public", rt.Public.Settings)
		r.Get("/pages/{slug}", rt.Public.Page)
		r.Get("/services", rt.Public.Services)
		r.With(limit(rt.ContactLimiter)).Post("/contact", rt.Public.Contact)

		r.Route("/auth", func(r chi.Router) {
			r.Use(optional(rt.CSRF))

			r.With(limit(rt.LoginLimiter)).Post("/login", rt.Auth.Login)
			r.With(limit(rt.TwoFactorLimiter)).Post("/verify-2fa", rt.Auth.VerifyTwoFactor)
			r.Post("/logout", rt.Auth.Logout)
			r.With(limit(rt.ForgotPasswordLimiter)).Post("/forgot-password", rt.Auth.ForgotPassword)
			r.With(limit(rt.ForgotPasswordLimiter)).Post("/reset-password", rt.Auth.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(rt.RequireSession)

				r.Get("/me", rt.Auth.Me)
				r.Get("/sessions", rt.Auth.Sessions)
				r.Delete("/sessions/{id}", rt.Auth.RevokeSession)
				r.Post("/setup-2fa", rt.Auth.SetupTwoFactor)
				r.With(limit(rt.TwoFactorLimiter)).Post("/enable-2fa", rt.Auth.EnableTwoFactor)
				r.Post("/disable-2fa", rt.Auth.DisableTwoFactor)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(rt.RequireSession)
			r.Use(optional(rt.CSRF))

			r.Get("/dashboard", rt.Dashboard.Stats)
			r.Get("/events", rt.Dashboard.Events)
			r.Get("/health", rt.Health.Details)

			r.Route("/pages", func(r chi.Router) {
				r.Get("/", rt.Pages.List)
				r.Post("/", rt.Pages.Create)
				r.Get("/{id}", rt.Pages.Get)
				r.Put("/{id}", rt.Pages.Update)
				r.Delete("/{id}", rt.Pages.Delete)
				r.Post("/{id}/publish", rt.Pages.TogglePublish)
			})

			r.Route("/navigation", func(r chi.Router) {
				r.Get("/", rt.Navigation.List)
				r.Post("/", rt.Navigation.Create)
				r.Post("/reorder", rt.Navigation.Reorder)
				r.Put("/{id}", rt.Navigation.Update)
				r.Delete("/{id}", rt.Navigation.Delete)
			})

			r.Route("/images", func(r chi.Router) {
				r.Get("/", rt.Images.List)
				r.Post("/", rt.Images.Upload)
				r.Put("/{id}", rt.Images.Update)
				r.Delete("/{id}", rt.Images.Delete)
			})

			r.Get("/settings", rt.Settings.List)
			r.Put("/settings", rt.Settings.Update)
			r.Get("/email-config", rt.Settings.EmailConfig)
			r.Post("/email-config", rt.Settings.SaveEmailConfig)
			r.Post("/email-config/test", rt.Settings.TestEmail)

			r.Route("/submissions", func(r chi.Router) {
				r.Get("/", rt.Submissions.List)
				r.Put("/{id}/read", rt.Submissions.MarkRead)
				r.Delete("/{id}", rt.Submissions.Delete)
			})

			if rt.Cache != nil {
				r.Get("/cache", rt.Cache.Stats)
				r.Post("/cache/clear", rt.Cache.Clear)
			}
			if rt.Scheduler != nil {
				r.Get("/scheduler", rt.Scheduler.List)
				r.Post("/scheduler/{name}/run", rt.Scheduler.Run)
			}
		})
	})
}

func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return passThrough
	}
	return rl.Middleware()
}

func optional(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return passThrough
	}
	return mw
}

func passThrough(next http.Handler) http.Handler {
	return next
}
