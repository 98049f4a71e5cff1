/*
Package limiter provides rate limiting based on client IP addresses.

It uses the Token Bucket algorithm (rate.Limiter) per client IP. Idle buckets are
swept periodically by Serve, which runs under the process supervisor.
*/
package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"groupnav/internal/metrics"
	"groupnav/internal/pkg/errs"
	"groupnav/internal/pkg/logx"
	"groupnav/internal/pkg/resp"
)

// DefaultCleanupInterval is how often Serve sweeps idle buckets.
const DefaultCleanupInterval = 3 * time.Minute

// IPRateLimiter implements a rate limiter keyed by client IP address.
type IPRateLimiter struct {
	name string

	mu sync.RWMutex

	// limits stores the map from client IP address to its bucket.
	limits map[string]*rate.Limiter

	// r is the refill rate in events per second.
	r rate.Limit

	// b is the bucket size.
	b int

	cleanupInterval time.Duration
}

// NewIPRateLimiter creates an IPRateLimiter with refill rate r and burst b.
// name labels its log lines and metrics.
func NewIPRateLimiter(name string, r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		name:            name,
		limits:          make(map[string]*rate.Limiter),
		r:               r,
		b:               b,
		cleanupInterval: DefaultCleanupInterval,
	}
}

// GetLimiter retrieves the rate limiter corresponding to the given IP address,
// creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if exists {
		return limiter
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists = i.limits[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.limits[ip] = limiter
	}

	return limiter
}

// Size returns the number of tracked IP addresses.
func (i *IPRateLimiter) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.limits)
}

// Sweep removes every bucket that has refilled completely and returns how many were removed.
func (i *IPRateLimiter) Sweep(now time.Time) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for ip, limiter := range i.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(i.limits, ip)
			removed++
		}
	}
	return removed
}

// Serve sweeps idle buckets until ctx is cancelled.
func (i *IPRateLimiter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(i.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			removed := i.Sweep(now)
			logx.Debug("Rate limiter cleanup finished",
				"limiter", i.name,
				"removed", removed,
				"remaining", i.Size(),
			)
		}
	}
}

// String names the limiter for the supervisor.
func (i *IPRateLimiter) String() string {
	return "limiter-" + i.name
}

// Middleware returns an HTTP middleware that rejects callers over their budget with 429.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !i.GetLimiter(ip).Allow() {
			metrics.RateLimited.WithLabelValues(i.name).Inc()
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
