package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/williamsnieves/proxy-scraper-backend/internal/config"
	"github.com/williamsnieves/proxy-scraper-backend/internal/server"
	"github.com/williamsnieves/proxy-scraper-backend/pkg/batch"
	"github.com/williamsnieves/proxy-scraper-backend/pkg/cache"
	"github.com/williamsnieves/proxy-scraper-backend/pkg/fetcher"
	"github.com/williamsnieves/proxy-scraper-backend/pkg/logging"
	"github.com/williamsnieves/proxy-scraper-backend/pkg/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		l := logging.NewLogger("main")
		l.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger = logger.With().Str("component", "main").Logger()

	// Shared HTTP client; the per-fetch deadline comes from the request
	// context, not from a client-wide timeout.
	httpClient := &http.Client{}

	httpFetcher, err := fetcher.New(fetcher.Config{
		Client:  httpClient,
		Limiter: ratelimit.NewHostLimiter(cfg.HostRateLimit, cfg.HostRateBurst),
		Headers: fetcher.NewHeaderProfile(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create fetcher")
	}

	var f fetcher.Fetcher = httpFetcher
	var redisClient *redis.Client

	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cancel()
			logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Failed to connect to Redis")
		}
		cancel()

		f = cache.NewCachedFetcher(httpFetcher, cache.NewManager(redisClient, cfg.CacheTTL))
		logger.Info().Str("redis_url", cfg.RedisURL).Dur("ttl", cfg.CacheTTL).Msg("Page cache enabled")
	} else {
		logger.Info().Msg("Page cache disabled (REDIS_URL not set)")
	}

	orchestrator := batch.NewOrchestrator(f, batch.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		PerItemTimeout: cfg.PerItemTimeout,
		BatchTimeout:   cfg.BatchTimeout,
	})

	srv := server.New(server.Options{
		Fetcher:       f,
		Orchestrator:  orchestrator,
		Redis:         redisClient,
		MaxBatchSize:  cfg.MaxBatchSize,
		ScrapeTimeout: cfg.PerItemTimeout,
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Starting proxy scraper server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-done
	logger.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}

	if redisClient != nil {
		redisClient.Close()
	}
}
