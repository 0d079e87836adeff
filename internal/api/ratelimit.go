package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter caps requests per client IP with a fixed window. The
// history endpoints sit behind it: they hit SQLite and decompress
// snapshot blobs, so an unauthenticated scraper should not get to run
// them in a loop.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	maxRate int
	span    time.Duration
}

type window struct {
	remaining int
	openedAt  time.Time
}

// NewRateLimiter allows maxRate requests per span for each client IP.
func NewRateLimiter(maxRate int, span time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		maxRate: maxRate,
		span:    span,
	}
	go rl.cleanupLoop()
	return rl
}

// Allow records a request for ip and reports whether it is within the
// limit.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[ip]
	if !ok || now.Sub(w.openedAt) >= rl.span {
		rl.windows[ip] = &window{remaining: rl.maxRate - 1, openedAt: now}
		return true
	}
	if w.remaining > 0 {
		w.remaining--
		return true
	}
	return false
}

// RetryAfter returns whole seconds until ip's window resets.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[ip]
	if !ok {
		return 0
	}
	left := rl.span - time.Since(w.openedAt)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds()) + 1
}

func (rl *RateLimiter) cleanupLoop() {
	for {
		time.Sleep(time.Hour)
		rl.mu.Lock()
		now := time.Now()
		for ip, w := range rl.windows {
			if now.Sub(w.openedAt) > 2*rl.span {
				delete(rl.windows, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// clientIP resolves the address to limit on: the first entry of
// X-Forwarded-For when a proxy set it, otherwise the connection's
// remote address with the port stripped.
func clientIP(r *http.Request) string {
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

// RateLimitMiddleware rejects over-limit requests with 429 and a
// Retry-After header.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
