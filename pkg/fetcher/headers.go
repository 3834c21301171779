package fetcher

import (
	"math/rand"
	"net/http"
	"strings"
)

// userAgents are rotated per request so target sites see ordinary browser
// traffic instead of a single static client string.
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// HeaderProfile synthesizes request headers that look like a real browser
// navigation. Some marketplaces block requests that arrive without them.
type HeaderProfile struct {
	// ReferredDomains lists domains that get a Google referer, simulating
	// arrival from a search result.
	ReferredDomains []string

	// pick overrides user-agent selection in tests.
	pick func(n int) int
}

// NewHeaderProfile returns a profile with the default referred domains.
func NewHeaderProfile() *HeaderProfile {
	return &HeaderProfile{
		ReferredDomains: []string{"etsy.com", "gumroad.com"},
	}
}

// Apply sets browser-profile headers on the outbound request.
func (p *HeaderProfile) Apply(req *http.Request) {
	pick := p.pick
	if pick == nil {
		pick = rand.Intn
	}

	req.Header.Set("User-Agent", userAgents[pick(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-User", "?1")

	if p.isReferred(req.URL.Host) {
		req.Header.Set("Referer", "https://www.google.com/")
		req.Header.Set("Sec-Fetch-Site", "cross-site")
	} else {
		req.Header.Set("Sec-Fetch-Site", "none")
	}
}

// isReferred reports whether the host belongs to a referred domain.
func (p *HeaderProfile) isReferred(host string) bool {
	host = strings.ToLower(host)
	for _, domain := range p.ReferredDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
