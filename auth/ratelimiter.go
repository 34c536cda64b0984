package auth

import (
	"net/http"
	"sync"
	"time"
)

// --- Rate Limiter ---

// RateLimiter caps attempts per remote address within a rolling window.
// The first attempt from an address opens its window; once the window
// expires the counter starts over.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*attemptWindow
	limit   int
	window  time.Duration
	now     func() time.Time
}

type attemptWindow struct {
	count     int
	expiresAt time.Time
}

// NewRateLimiter allows up to limit attempts per window from one address.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*attemptWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// WithClock overrides the limiter's clock. Tests only.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.now = now
	return rl
}

// Allow records an attempt from addr and reports whether it is within
// the limit.
func (rl *RateLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[addr]
	if !ok || now.After(w.expiresAt) {
		rl.windows[addr] = &attemptWindow{count: 1, expiresAt: now.Add(rl.window)}
		return true
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(r.RemoteAddr) {
			RespondWithError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
