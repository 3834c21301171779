// Package testutil provides testing utilities for the proxy scraper.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock target-site path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSite is a configurable stand-in for a scrape target. Besides serving
// canned responses it tracks request counts and the peak number of requests
// served concurrently, which tests use to verify the fetch concurrency cap.
type MockSite struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	requestCount  int
	inFlight      int
	peakInFlight  int
	lastUserAgent string
}

// NewMockSite starts a mock target site.
func NewMockSite() *MockSite {
	site := &MockSite{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	site.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.requestCount++
		site.inFlight++
		if site.inFlight > site.peakInFlight {
			site.peakInFlight = site.inFlight
		}
		site.lastUserAgent = r.Header.Get("User-Agent")
		handler := site.handlers[r.URL.Path]
		site.mu.Unlock()

		defer func() {
			site.mu.Lock()
			site.inFlight--
			site.mu.Unlock()
		}()

		if handler != nil {
			handler(w, r)
			return
		}

		site.defaultHandler(w, r)
	}))

	return site
}

// URL returns the mock site base URL.
func (m *MockSite) URL() string {
	return m.server.URL
}

// Close shuts down the mock site.
func (m *MockSite) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSite) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.inFlight = 0
	m.peakInFlight = 0
	m.lastUserAgent = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSite) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockSite) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests served.
func (m *MockSite) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// PeakInFlight returns the highest number of requests served at once.
func (m *MockSite) PeakInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakInFlight
}

// LastUserAgent returns the User-Agent of the most recent request.
func (m *MockSite) LastUserAgent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUserAgent
}

// defaultHandler serves a small HTML page.
func (m *MockSite) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<html><head><title>mock page</title></head><body>ok</body></html>"))
}
