// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/olegiv/tegsite/internal/util"
)

// ErrRateLimited is reported when a client exceeds its request allowance.
var ErrRateLimited = errors.New("too many requests")

// maxTrackedClients caps the per-IP limiter map before it is reset.
const maxTrackedClients = 10000

// Per-IP request allowances.
var (
	LoginLimit          = Limit{Requests: 5, Window: 15 * time.Minute}
	TwoFactorLimit      = Limit{Requests: 5, Window: 15 * time.Minute}
	ContactLimit        = Limit{Requests: 3, Window: time.Minute}
	ForgotPasswordLimit = Limit{Requests: 3, Window: time.Hour}
	DefaultLimit        = Limit{Requests: 100, Window: time.Minute}
)

// Limit allows Requests per Window, refilled evenly.
type Limit struct {
	Requests int
	Window   time.Duration
}

func (l Limit) rate() rate.Limit {
	return rate.Limit(float64(l.Requests) / l.Window.Seconds())
}

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](r rate.Limit, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	if len(lc.limiters) >= maxTrackedClients {
		lc.limiters = make(map[K]*rate.Limiter)
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	name   string
	cache  *limiterCache[string]
	logger *slog.Logger
	now    func() time.Time
}

// NewRateLimiter creates a limiter named for logging.
func NewRateLimiter(name string, limit Limit, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		name:   name,
		cache:  newLimiterCache[string](limit.rate(), limit.Requests),
		logger: logger,
		now:    time.Now,
	}
}

// Allow consumes one request for ip. When the allowance is spent it returns
// false and the wait until the next request would be accepted.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	res := rl.cache.get(ip).ReserveN(rl.now(), 1)
	if !res.OK() {
		return false, time.Minute
	}
	delay := res.DelayFrom(rl.now())
	if delay > 0 {
		res.CancelAt(rl.now())
		return false, delay
	}
	return true, 0
}

// Middleware returns 429 with a Retry-After header once the client's
// allowance is spent.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := util.ClientIP(r)
			ok, wait := rl.Allow(ip)
			if !ok {
				retryAfter := retryAfterSeconds(wait)
				rl.logger.Warn("rate limit exceeded", "limiter", rl.name, "ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeErrorBody(w, http.StatusTooManyRequests, errorResponse{
					Error:      "Too many requests. Please try again later.",
					RetryAfter: retryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
