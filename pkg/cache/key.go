package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached page by its target URL.
type Key struct {
	// URL is the raw target URL as requested by the client.
	URL string
}

// String generates a deterministic cache key string.
// Format: scrape:host/path:query1=val1:query2=val2
//
// The URL is normalized (lowercased host, sorted query parameters) so that
// trivially different spellings of the same page share an entry. Unparseable
// URLs fall back to the raw string; they never reach the network anyway.
func (k Key) String() string {
	u, err := url.Parse(k.URL)
	if err != nil || u.Host == "" {
		return "scrape:" + k.URL
	}

	parts := []string{"scrape", strings.ToLower(u.Host) + strings.TrimSuffix(u.Path, "/")}

	query := u.Query()
	if len(query) > 0 {
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, key+"="+query.Get(key))
		}
	}

	return strings.Join(parts, ":")
}
