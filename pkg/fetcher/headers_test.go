package fetcher

import (
	"net/http"
	"testing"
)

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest(%q) failed: %v", url, err)
	}
	return req
}

func TestHeaderProfile_Apply(t *testing.T) {
	profile := NewHeaderProfile()
	profile.pick = func(n int) int { return 0 }

	req := newRequest(t, "https://example.com/page")
	profile.Apply(req)

	if got := req.Header.Get("User-Agent"); got != userAgents[0] {
		t.Errorf("User-Agent = %q, want %q", got, userAgents[0])
	}
	if req.Header.Get("Accept") == "" {
		t.Error("Accept header not set")
	}
	if got := req.Header.Get("Sec-Fetch-Site"); got != "none" {
		t.Errorf("Sec-Fetch-Site = %q, want none", got)
	}
	if req.Header.Get("Referer") != "" {
		t.Error("Unreferred domain should not get a Referer")
	}
}

func TestHeaderProfile_ReferredDomains(t *testing.T) {
	profile := NewHeaderProfile()

	tests := []struct {
		url      string
		referred bool
	}{
		{"https://www.etsy.com/listing/123", true},
		{"https://etsy.com/", true},
		{"https://gumroad.com/l/abc", true},
		{"https://example.com/", false},
		{"https://notetsy.com/", false},
	}

	for _, tt := range tests {
		req := newRequest(t, tt.url)
		profile.Apply(req)

		hasReferer := req.Header.Get("Referer") != ""
		if hasReferer != tt.referred {
			t.Errorf("Apply(%s): referer present = %v, want %v", tt.url, hasReferer, tt.referred)
		}

		wantSite := "none"
		if tt.referred {
			wantSite = "cross-site"
		}
		if got := req.Header.Get("Sec-Fetch-Site"); got != wantSite {
			t.Errorf("Apply(%s): Sec-Fetch-Site = %q, want %q", tt.url, got, wantSite)
		}
	}
}

func TestHeaderProfile_RotatesUserAgents(t *testing.T) {
	profile := NewHeaderProfile()

	seen := make(map[string]bool)
	for i := range userAgents {
		idx := i
		profile.pick = func(n int) int { return idx }

		req := newRequest(t, "https://example.com/")
		profile.Apply(req)
		seen[req.Header.Get("User-Agent")] = true
	}

	if len(seen) != len(userAgents) {
		t.Errorf("Saw %d distinct user agents, want %d", len(seen), len(userAgents))
	}
}
