// Package metrics documents the Prometheus metrics exposed by the proxy
// scraper. Metrics are defined in their owning packages (fetcher, batch,
// cache, ratelimit) to keep registration local and avoid import cycles;
// this package only names the registry and the full inventory.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer used by the service.
// All metrics are registered automatically via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Inventory
//
// Fetch metrics (pkg/fetcher):
//   - scraper_fetch_requests_total{status} (Counter): fetch attempts by HTTP status or failure kind
//   - scraper_fetch_duration_seconds (Histogram): fetch duration
//   - scraper_fetch_failures_total{kind} (Counter): failures by classification
//   - scraper_fetch_body_bytes (Histogram): fetched body sizes
//
// Batch metrics (pkg/batch):
//   - scraper_batches_total (Counter): batch runs
//   - scraper_batch_duration_seconds (Histogram): batch run duration
//   - scraper_batch_size_urls (Histogram): URLs per batch
//   - scraper_batch_timeouts_total (Counter): runs that hit the overall deadline
//   - scraper_fetches_in_flight (Gauge): live fetches across all batches
//
// Cache metrics (pkg/cache):
//   - scraper_cache_hits_total (Counter): page cache hits
//   - scraper_cache_misses_total (Counter): page cache misses
//   - scraper_cache_written_bytes_total (Counter): bytes written to cache
//   - scraper_cache_errors_total{operation} (Counter): cache operation errors
//
// Rate limit metrics (pkg/ratelimit):
//   - scraper_rate_limit_waits_total (Counter): requests that waited for a token
//   - scraper_rate_limit_hosts (Gauge): hosts with an active limiter
//
// Example Prometheus queries:
//
//   # Cache hit rate
//   rate(scraper_cache_hits_total[5m]) /
//   (rate(scraper_cache_hits_total[5m]) + rate(scraper_cache_misses_total[5m]))
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(scraper_fetch_duration_seconds_bucket[5m]))
//
//   # Batch deadline pressure
//   rate(scraper_batch_timeouts_total[5m]) / rate(scraper_batches_total[5m])
