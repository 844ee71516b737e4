package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/chorely/internal/clock"
)

// RealIP returns the client address, preferring X-Forwarded-For when the
// server sits behind a proxy.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter struct {
	mu      sync.Mutex
	clock   clock.Clock
	limit   int
	period  time.Duration
	windows map[string]*window
}

func NewRateLimiter(c clock.Clock, limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		clock:   c,
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
	}
}

// Allow records a request for key and reports whether it is within the
// limit. The second result is how long until the window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(rl.period)}
		rl.windows[key] = w
	}
	w.count++
	return w.count <= rl.limit, w.resetAt.Sub(now)
}

// Cleanup drops expired windows.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimit rejects requests over the limiter's budget, keyed by client IP.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := limiter.Allow(RealIP(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds()+0.5)))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
