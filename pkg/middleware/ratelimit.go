package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/orgdeck/orgdeck/pkg/httputil"
)

// RateLimitConfig bounds request volume per client over a fixed window
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// DefaultRateLimitConfig suits the unauthenticated endpoints (login,
// register, invitation acceptance), which are the brute-force surface.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
	}
}

// RateLimiter is a Redis-backed fixed-window limiter shared across
// instances. Redis failures fail open: losing rate limiting is better than
// losing logins.
type RateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewRateLimiter creates a Redis-backed rate limiter
func NewRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RateLimiter{redis: redisClient, config: config, prefix: prefix}
}

// Handler wraps an HTTP handler with per-client-IP rate limiting. A nil
// Redis client disables limiting entirely.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("%s:%s", rl.prefix, clientIP(r))
		ctx := r.Context()

		pipe := rl.redis.Pipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.config.WindowDuration)
		if _, err := pipe.Exec(ctx); err != nil {
			next.ServeHTTP(w, r)
			return
		}

		count := incr.Val()
		remaining := int64(rl.config.RequestsPerWindow) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.config.RequestsPerWindow) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.config.WindowDuration.Seconds())))
			httputil.WriteMessage(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller address, preferring the proxy header
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
