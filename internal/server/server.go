// Package server is the HTTP transport boundary: it decodes scrape requests,
// hands them to the fetcher or the batch orchestrator, and encodes outcomes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/williamsnieves/proxy-scraper-backend/pkg/batch"
	"github.com/williamsnieves/proxy-scraper-backend/pkg/fetcher"
)

// Server routes proxy-scraper endpoints to the fetch core.
type Server struct {
	fetcher      fetcher.Fetcher
	orchestrator *batch.Orchestrator
	redis        *redis.Client
	maxBatchSize int
	scrapeLimit  time.Duration
	router       *chi.Mux
	logger       zerolog.Logger
}

// Options configures the server.
type Options struct {
	// Fetcher handles single-URL scrapes. Required.
	Fetcher fetcher.Fetcher

	// Orchestrator handles batch scrapes. Required.
	Orchestrator *batch.Orchestrator

	// Redis is pinged by the readiness probe. Nil when caching is disabled.
	Redis *redis.Client

	// MaxBatchSize caps URLs per batch request. Zero means 10.
	MaxBatchSize int

	// ScrapeTimeout is the default deadline for single-URL scrapes.
	// Zero means 30s.
	ScrapeTimeout time.Duration
}

// New creates a Server and mounts its routes.
func New(opts Options) *Server {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 10
	}
	if opts.ScrapeTimeout <= 0 {
		opts.ScrapeTimeout = 30 * time.Second
	}

	s := &Server{
		fetcher:      opts.Fetcher,
		orchestrator: opts.Orchestrator,
		redis:        opts.Redis,
		maxBatchSize: opts.MaxBatchSize,
		scrapeLimit:  opts.ScrapeTimeout,
		router:       chi.NewRouter(),
		logger:       log.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(corsMiddleware)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Post("/scrape", s.handleScrape)
	s.router.Post("/batch-scrape", s.handleBatchScrape)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ScrapeRequest is the body of POST /scrape.
type ScrapeRequest struct {
	URL string `json:"url"`

	// TimeoutSeconds overrides the default per-fetch deadline.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// BatchScrapeRequest is the body of POST /batch-scrape.
type BatchScrapeRequest struct {
	URLs []string `json:"urls"`

	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// BatchScrapeResponse is the body of a successful POST /batch-scrape.
type BatchScrapeResponse struct {
	BatchID string       `json:"batch_id"`
	Total   int          `json:"total"`
	Results []batch.Item `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "proxy-scraper",
	})
}

// handleReady reports whether downstream dependencies are reachable. With
// caching disabled there is nothing to probe, so the service is always ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness probe failed: redis unreachable")
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "cache unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "URL is required"})
		return
	}

	timeout := s.scrapeLimit
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	outcome := s.fetcher.Fetch(r.Context(), fetcher.Request{
		URL:     req.URL,
		Timeout: timeout,
	})

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleBatchScrape(w http.ResponseWriter, r *http.Request) {
	var req BatchScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if len(req.URLs) > s.maxBatchSize {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("too many URLs (maximum %d)", s.maxBatchSize),
		})
		return
	}

	var perItem time.Duration
	if req.TimeoutSeconds > 0 {
		perItem = time.Duration(req.TimeoutSeconds) * time.Second
	}

	result, err := s.orchestrator.Run(r.Context(), batch.Request{
		URLs:           req.URLs,
		PerItemTimeout: perItem,
	})
	if err != nil {
		if errors.Is(err, batch.ErrEmptyBatch) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "URLs must be a non-empty array"})
			return
		}
		s.logger.Error().Err(err).Msg("Batch run failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "batch run failed"})
		return
	}

	writeJSON(w, http.StatusOK, BatchScrapeResponse{
		BatchID: result.ID,
		Total:   len(result.Items),
		Results: result.Items,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
