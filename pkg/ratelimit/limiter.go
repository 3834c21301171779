// Package ratelimit throttles outbound fetches per target host so batches
// of URLs pointing at one site do not hammer it.
package ratelimit

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit gating.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_rate_limit_waits_total",
		Help: "Total number of outbound requests that waited for a rate limit token",
	})

	rateLimitHosts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scraper_rate_limit_hosts",
		Help: "Number of distinct hosts with an active rate limiter",
	})
)

// HostLimiter applies a token-bucket limit independently to each target host.
// Limiters are created lazily on first use and kept for the process lifetime.
type HostLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter allowing perSecond requests per host with
// the given burst. Values below 1 fall back to 1.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the host's bucket has a token or ctx ends. The host
// comparison ignores case and port.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	limiter := h.forHost(host)
	if limiter.Allow() {
		return nil
	}
	rateLimitWaitsTotal.Inc()
	return limiter.Wait(ctx)
}

// forHost returns the limiter for a host, creating it if needed.
func (h *HostLimiter) forHost(host string) *rate.Limiter {
	key := normalizeHost(host)

	h.mu.Lock()
	defer h.mu.Unlock()

	limiter, ok := h.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(h.limit, h.burst)
		h.limiters[key] = limiter
		rateLimitHosts.Set(float64(len(h.limiters)))
	}
	return limiter
}

// normalizeHost strips the port and lowercases the host.
func normalizeHost(host string) string {
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host
}
