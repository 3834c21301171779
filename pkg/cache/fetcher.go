package cache

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/williamsnieves/proxy-scraper-backend/pkg/fetcher"
)

// CachedFetcher wraps a Fetcher with a read-through page cache. Only
// successful outcomes are stored; failures always go back to the network
// on the next attempt.
type CachedFetcher struct {
	next    fetcher.Fetcher
	manager *Manager
	logger  zerolog.Logger
}

// NewCachedFetcher wraps next with the given cache manager.
func NewCachedFetcher(next fetcher.Fetcher, manager *Manager) *CachedFetcher {
	return &CachedFetcher{
		next:    next,
		manager: manager,
		logger:  log.With().Str("component", "cache").Logger(),
	}
}

// Fetch serves the outcome from cache when possible, delegating to the
// wrapped fetcher otherwise. Cache errors degrade to a direct fetch.
func (c *CachedFetcher) Fetch(ctx context.Context, req fetcher.Request) fetcher.Outcome {
	key := Key{URL: req.URL}

	entry, err := c.manager.Get(ctx, key)
	if err == nil {
		c.logger.Debug().Str("url", req.URL).Msg("Cache hit")
		return fetcher.Outcome{
			Success:    true,
			StatusCode: entry.StatusCode,
			Body:       entry.Body,
			Headers:    entry.Headers,
			FinalURL:   entry.FinalURL,
		}
	}
	if err != ErrCacheMiss {
		c.logger.Warn().Err(err).Str("url", req.URL).Msg("Cache get error")
	}

	outcome := c.next.Fetch(ctx, req)

	if outcome.Success {
		set := &Entry{
			StatusCode: outcome.StatusCode,
			Body:       outcome.Body,
			Headers:    outcome.Headers,
			FinalURL:   outcome.FinalURL,
		}
		if err := c.manager.Set(ctx, key, set); err != nil {
			c.logger.Warn().Err(err).Str("url", req.URL).Msg("Failed to cache page")
		} else {
			c.logger.Debug().Str("url", req.URL).Msg("Cached page")
		}
	}

	return outcome
}
