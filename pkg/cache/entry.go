package cache

import (
	"net/http"
	"time"
)

// Entry is a cached successful fetch.
type Entry struct {
	// StatusCode is the HTTP status of the cached response.
	StatusCode int `json:"status_code"`

	// Body is the response body.
	Body []byte `json:"body"`

	// Headers are the response headers.
	Headers http.Header `json:"headers"`

	// FinalURL is the URL after redirects.
	FinalURL string `json:"final_url"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
