package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// RateLimiter tracks request times per IP address in a sliding window.
// Entries expire from the cache once an IP has been quiet for a full window.
type RateLimiter struct {
	mu     sync.Mutex
	hits   *cache.Cache
	limit  int           // Max requests allowed
	window time.Duration // Time window for rate limiting
	now    func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   cache.New(window, 2*window),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow checks if request from IP should be allowed
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	var recent []time.Time
	if v, ok := rl.hits.Get(ip); ok {
		for _, t := range v.([]time.Time) {
			if t.After(cutoff) {
				recent = append(recent, t)
			}
		}
	}

	if len(recent) >= rl.limit {
		rl.hits.Set(ip, recent, rl.window)
		return false
	}

	rl.hits.Set(ip, append(recent, now), rl.window)
	return true
}

// RateLimit rejects callers that exceed limit requests per window with 429.
// trustedHops is the number of reverse proxies in front of the server; see
// clientIP.
func RateLimit(limit int, window time.Duration, trustedHops int) func(http.Handler) http.Handler {
	return rateLimitWith(NewRateLimiter(limit, window), trustedHops)
}

func rateLimitWith(limiter *RateLimiter, trustedHops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustedHops)

			if !limiter.Allow(ip) {
				slog.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
				)
				http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the address the rate limit is keyed on. With no trusted
// proxies only the socket address counts. Behind trustedHops proxies, each
// proxy appends the address it saw to X-Forwarded-For, so the client is the
// entry trustedHops from the right; anything left of it is caller supplied.
func clientIP(r *http.Request, trustedHops int) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}

	if trustedHops <= 0 {
		return remote
	}

	var hops []string
	for _, h := range r.Header.Values("X-Forwarded-For") {
		for _, ip := range strings.Split(h, ",") {
			ip = strings.TrimSpace(ip)
			if ip != "" {
				hops = append(hops, ip)
			}
		}
	}

	if len(hops) < trustedHops {
		return remote
	}
	return hops[len(hops)-trustedHops]
}
