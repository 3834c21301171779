// Package fetcher performs single-URL page fetches on behalf of proxy
// clients, with deadline enforcement and typed failure classification.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/williamsnieves/proxy-scraper-backend/pkg/ratelimit"
)

// Prometheus metrics for fetch operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_fetch_requests_total",
		Help: "Total fetch attempts by result status",
	}, []string{"status"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scraper_fetch_duration_seconds",
		Help:    "Fetch duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_fetch_failures_total",
		Help: "Total fetch failures by kind",
	}, []string{"kind"})

	fetchBodyBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scraper_fetch_body_bytes",
		Help:    "Size of fetched response bodies in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})
)

// Request describes one fetch: a target URL and the deadline for completing it.
type Request struct {
	URL     string
	Timeout time.Duration
}

// Fetcher is anything that can turn a Request into an Outcome. The batch
// orchestrator and the transport layer depend on this interface so that
// fetch behavior is substitutable in tests.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) Outcome
}

// Config holds HTTPFetcher configuration.
type Config struct {
	// Client is the shared HTTP client. Required; connection pooling lives
	// here, so one client instance should be reused across all fetches.
	Client *http.Client

	// MaxBodyBytes caps how much of a response body is read. Zero means
	// the default cap.
	MaxBodyBytes int64

	// Limiter optionally throttles outbound requests per target host.
	Limiter *ratelimit.HostLimiter

	// Headers synthesizes browser-profile request headers. Nil disables
	// header synthesis.
	Headers *HeaderProfile
}

// DefaultMaxBodyBytes caps response bodies at 10 MiB.
const DefaultMaxBodyBytes = 10 << 20

// HTTPFetcher fetches pages over a shared *http.Client.
type HTTPFetcher struct {
	client       *http.Client
	maxBodyBytes int64
	limiter      *ratelimit.HostLimiter
	headers      *HeaderProfile
	logger       zerolog.Logger
}

// New creates an HTTPFetcher.
func New(cfg Config) (*HTTPFetcher, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &HTTPFetcher{
		client:       cfg.Client,
		maxBodyBytes: cfg.MaxBodyBytes,
		limiter:      cfg.Limiter,
		headers:      cfg.Headers,
		logger:       log.With().Str("component", "fetcher").Logger(),
	}, nil
}

// Fetch performs one HTTP GET with a request-scoped deadline. Any received
// HTTP response is a success; only validation, connection and deadline
// problems produce failures. There are no retries here.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) Outcome {
	target, err := validateURL(req.URL)
	if err != nil {
		fetchFailuresTotal.WithLabelValues(string(FailureInvalidURL)).Inc()
		fetchRequestsTotal.WithLabelValues("invalid").Inc()
		f.logger.Debug().Str("url", req.URL).Err(err).Msg("Rejected malformed URL")
		return Failure(FailureInvalidURL, "invalid url %q: %v", req.URL, err)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, target.Host); err != nil {
			return f.classifyFailure(req.URL, err)
		}
	}

	start := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(start).Seconds())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		fetchFailuresTotal.WithLabelValues(string(FailureInvalidURL)).Inc()
		fetchRequestsTotal.WithLabelValues("invalid").Inc()
		return Failure(FailureInvalidURL, "build request for %q: %v", req.URL, err)
	}

	if f.headers != nil {
		f.headers.Apply(httpReq)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return f.classifyFailure(req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return f.classifyFailure(req.URL, err)
	}

	fetchRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
	fetchBodyBytes.Observe(float64(len(body)))

	f.logger.Debug().
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Int("body_bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return Outcome{
		Success:    true,
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
		FinalURL:   resp.Request.URL.String(),
	}
}

// classifyFailure maps a transport-level error to a typed failure outcome.
func (f *HTTPFetcher) classifyFailure(rawURL string, err error) Outcome {
	kind := FailureNetwork

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = FailureTimeout
	}

	fetchFailuresTotal.WithLabelValues(string(kind)).Inc()
	fetchRequestsTotal.WithLabelValues(string(kind)).Inc()

	f.logger.Warn().
		Str("url", rawURL).
		Str("kind", string(kind)).
		Err(err).
		Msg("Fetch failed")

	return Failure(kind, "fetch %q: %v", rawURL, err)
}

// validateURL rejects anything that is not an absolute http(s) URL before
// any network I/O happens.
func validateURL(raw string) (*url.URL, error) {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}
