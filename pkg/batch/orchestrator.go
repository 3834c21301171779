package batch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/williamsnieves/proxy-scraper-backend/pkg/fetcher"
)

// Prometheus metrics for batch orchestration.
var (
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_batches_total",
		Help: "Total number of batch runs",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scraper_batch_duration_seconds",
		Help:    "Duration of batch runs in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scraper_batch_size_urls",
		Help:    "Number of URLs per batch run",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})

	batchTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_batch_timeouts_total",
		Help: "Total number of batch runs that hit the overall deadline",
	})

	fetchesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scraper_fetches_in_flight",
		Help: "Number of fetches currently in flight across all batches",
	})
)

// ErrEmptyBatch is returned when a batch request carries no URLs. It is the
// only batch-scoped failure; everything else is recorded per item.
var ErrEmptyBatch = errors.New("batch contains no urls")

// Config holds orchestrator defaults, applied when a Request leaves the
// corresponding field zero.
type Config struct {
	// MaxConcurrency is the maximum number of fetches in flight per batch.
	MaxConcurrency int

	// PerItemTimeout bounds each individual fetch.
	PerItemTimeout time.Duration

	// BatchTimeout bounds the whole batch run.
	BatchTimeout time.Duration
}

// DefaultConfig returns safe orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		PerItemTimeout: 30 * time.Second,
		BatchTimeout:   120 * time.Second,
	}
}

// Request describes one batch run.
type Request struct {
	URLs           []string
	PerItemTimeout time.Duration
	BatchTimeout   time.Duration
	MaxConcurrency int
}

// Item pairs a requested URL with its fetch outcome. The outcome's own url
// field is the final URL after redirects, so both survive serialization and
// clients can tell where a fetch ended up.
type Item struct {
	URL string `json:"requested_url"`
	fetcher.Outcome
}

// Result holds one outcome per requested URL, in input order.
type Result struct {
	ID       string        `json:"batch_id"`
	Items    []Item        `json:"results"`
	Duration time.Duration `json:"-"`
}

// Orchestrator runs batches over a substitutable Fetcher. It holds no state
// between runs; each Run call owns its worker pool and result slots.
type Orchestrator struct {
	fetcher fetcher.Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewOrchestrator creates an orchestrator, filling in defaults for any
// config field left zero.
func NewOrchestrator(f fetcher.Fetcher, cfg Config) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaults.MaxConcurrency
	}
	if cfg.PerItemTimeout <= 0 {
		cfg.PerItemTimeout = defaults.PerItemTimeout
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaults.BatchTimeout
	}

	return &Orchestrator{
		fetcher: f,
		config:  cfg,
		logger:  log.With().Str("component", "batch").Logger(),
	}
}

// indexedOutcome carries a finished fetch back to the collector with the
// input position it belongs to.
type indexedOutcome struct {
	index   int
	outcome fetcher.Outcome
}

// Run fetches every URL in the request under the concurrency cap and both
// deadlines, and returns one outcome per URL in input order. Item failures
// never fail the run; only an empty URL list does.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.URLs) == 0 {
		return nil, ErrEmptyBatch
	}

	if req.PerItemTimeout <= 0 {
		req.PerItemTimeout = o.config.PerItemTimeout
	}
	if req.BatchTimeout <= 0 {
		req.BatchTimeout = o.config.BatchTimeout
	}
	if req.MaxConcurrency <= 0 {
		req.MaxConcurrency = o.config.MaxConcurrency
	}

	id := uuid.NewString()
	n := len(req.URLs)
	start := time.Now()

	batchesTotal.Inc()
	batchSize.Observe(float64(n))

	o.logger.Info().
		Str("batch_id", id).
		Int("urls", n).
		Dur("batch_timeout", req.BatchTimeout).
		Msg("Starting batch run")

	batchCtx, cancel := context.WithTimeout(ctx, req.BatchTimeout)
	defer cancel()

	// Index queue feeds workers; the outcome channel is buffered to the
	// batch size so a worker send never blocks after the collector seals.
	indexQueue := make(chan int, n)
	for i := range req.URLs {
		indexQueue <- i
	}
	close(indexQueue)

	outcomes := make(chan indexedOutcome, n)

	workers := min(req.MaxConcurrency, n)
	for w := 0; w < workers; w++ {
		go o.worker(batchCtx, &req, indexQueue, outcomes, w)
	}

	// The collector is the only writer of the result slots, so completion
	// order cannot disturb input order and a late fetch cannot overwrite
	// an outcome recorded at the deadline.
	items := make([]Item, n)
	filled := make([]bool, n)
	completed := 0

collect:
	for completed < n {
		select {
		case out := <-outcomes:
			// An outcome racing the deadline is not recorded: workers
			// cancelled by the batch deadline report their own timeouts,
			// and those slots must read as batch timeouts instead.
			if batchCtx.Err() != nil {
				break collect
			}
			if !filled[out.index] {
				filled[out.index] = true
				items[out.index] = Item{URL: req.URLs[out.index], Outcome: out.outcome}
				completed++
			}
		case <-batchCtx.Done():
			break collect
		}
	}
	cancel()

	if completed < n {
		batchTimeoutsTotal.Inc()
		for i := range items {
			if !filled[i] {
				items[i] = Item{
					URL:     req.URLs[i],
					Outcome: fetcher.Failure(fetcher.FailureBatchTimeout, "batch deadline elapsed before %q finished", req.URLs[i]),
				}
			}
		}
		o.logger.Warn().
			Str("batch_id", id).
			Int("completed", completed).
			Int("urls", n).
			Msg("Batch deadline elapsed with items pending")
	}

	duration := time.Since(start)
	batchDuration.Observe(duration.Seconds())

	o.logger.Info().
		Str("batch_id", id).
		Int("urls", n).
		Int("completed", completed).
		Dur("duration", duration).
		Msg("Batch run complete")

	return &Result{ID: id, Items: items, Duration: duration}, nil
}

// worker drains the index queue, fetching one URL at a time. The outcome
// channel is buffered to the batch size, so sends never block and workers
// exit promptly once the queue drains or the batch deadline cancels them.
func (o *Orchestrator) worker(ctx context.Context, req *Request, indexQueue <-chan int, outcomes chan<- indexedOutcome, workerID int) {
	for idx := range indexQueue {
		select {
		case <-ctx.Done():
			o.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopping (batch deadline)")
			return
		default:
		}

		fetchesInFlight.Inc()
		outcome := o.fetcher.Fetch(ctx, fetcher.Request{
			URL:     req.URLs[idx],
			Timeout: req.PerItemTimeout,
		})
		fetchesInFlight.Dec()

		outcomes <- indexedOutcome{index: idx, outcome: outcome}
	}
}
