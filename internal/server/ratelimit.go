// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// DefaultMaxVisitors bounds how many client IPs keep a limiter.
const DefaultMaxVisitors = 10000

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxVisitors caps tracked IPs; the least recently seen is evicted first.
	MaxVisitors int
}

// Validate checks c and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return snerr.Errorf(snerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return snerr.Errorf(snerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)", c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return snerr.Errorf(snerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = DefaultMaxVisitors
	}
	return nil
}

// rateLimitMiddleware enforces a token bucket per client IP. It passes
// everything through when the rate is zero.
func rateLimitMiddleware(cfg RateLimitConfig) (func(http.Handler) http.Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond == 0 {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	visitors, err := lru.New[string, *rate.Limiter](cfg.MaxVisitors)
	if err != nil {
		return nil, snerr.Errorf(snerr.CodeServerConfigInvalid, "creating visitor cache: %w", err)
	}
	var mu sync.Mutex

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if l, ok := visitors.Get(ip); ok {
			return l
		}
		l := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		visitors.Add(ip, l)
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Key on the host only so extra connections do not get extra buckets.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !limiterFor(ip).Allow() {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
