package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands out a token bucket per client key.
// Keys are the client address after chi's RealIP has run.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per key with the given burst.
// Keys unused for idle are dropped by Evict.
func NewRateLimiter(perMinute, burst int, idle time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
	}
}

// Allow reports whether a request for key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Evict removes keys idle for longer than the configured idle period.
func (rl *RateLimiter) Evict() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	removed := 0
	for key, v := range rl.limiters {
		if v.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// StartEviction runs Evict every idle period until ctx is cancelled.
func (rl *RateLimiter) StartEviction(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.idle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Evict()
			}
		}
	}()
}

// RateLimit rejects requests over the per-client budget with 429.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(clientKey(r)) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey is the peer host. Forwarding headers are ignored here; they only
// apply when the server installs RealIP behind a trusted proxy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
