package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client in memory.
type RateLimiter struct {
	mu       sync.Mutex
	requests int
	window   time.Duration
	limit    rate.Limit
	ttl      time.Duration
	now      func() time.Time
	entries  map[string]*limBucket
}

type limBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requests per window for each client, with bursts up
// to requests. Idle clients are forgotten after a few windows.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: requests,
		window:   window,
		limit:    rate.Limit(float64(requests) / window.Seconds()),
		ttl:      3 * window,
		now:      time.Now,
		entries:  make(map[string]*limBucket),
	}
}

// Allow reports whether a request from key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.entries[key]
	if b == nil {
		b = &limBucket{lim: rate.NewLimiter(rl.limit, rl.requests)}
		rl.entries[key] = b
	}
	b.lastSeen = now

	for k, v := range rl.entries {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.entries, k)
		}
	}
	return b.lim.AllowN(now, 1)
}

// RateLimit returns middleware that rate limits requests per client address
// and calling application.
func RateLimit(limiter *RateLimiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r) + "|" + r.Header.Get(AppIDHeader)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.requests))
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(limiter.window.Seconds())))
				jsonError(w, http.StatusTooManyRequests, CodeUnspecified, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
