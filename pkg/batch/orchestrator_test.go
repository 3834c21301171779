package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamsnieves/proxy-scraper-backend/internal/testutil"
	"github.com/williamsnieves/proxy-scraper-backend/pkg/fetcher"
)

// stubFetcher returns canned outcomes and tracks concurrency.
type stubFetcher struct {
	mu       sync.Mutex
	outcomes map[string]fetcher.Outcome
	delays   map[string]time.Duration
	calls    int
	inFlight int
	peak     int

	// lastTimeout records the per-item timeout passed with the most
	// recent request.
	lastTimeout time.Duration
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		outcomes: make(map[string]fetcher.Outcome),
		delays:   make(map[string]time.Duration),
	}
}

func (s *stubFetcher) Fetch(ctx context.Context, req fetcher.Request) fetcher.Outcome {
	s.mu.Lock()
	s.calls++
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.lastTimeout = req.Timeout
	delay := s.delays[req.URL]
	outcome, ok := s.outcomes[req.URL]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fetcher.Failure(fetcher.FailureTimeout, "fetch %q: %v", req.URL, ctx.Err())
		}
	}

	if !ok {
		return fetcher.Outcome{Success: true, StatusCode: http.StatusOK, FinalURL: req.URL}
	}
	return outcome
}

func (s *stubFetcher) peakInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRun_EmptyBatch(t *testing.T) {
	orch := NewOrchestrator(newStubFetcher(), DefaultConfig())

	result, err := orch.Run(context.Background(), Request{URLs: nil})

	require.ErrorIs(t, err, ErrEmptyBatch)
	assert.Nil(t, result)
}

func TestRun_PreservesInputOrder(t *testing.T) {
	stub := newStubFetcher()

	// Later URLs finish first, so completion order is the reverse of
	// input order.
	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://site-%d.example", i)
		stub.delays[urls[i]] = time.Duration(10-i) * 10 * time.Millisecond
	}

	orch := NewOrchestrator(stub, Config{MaxConcurrency: 10})
	result, err := orch.Run(context.Background(), Request{URLs: urls})

	require.NoError(t, err)
	require.Len(t, result.Items, len(urls))
	for i, item := range result.Items {
		assert.Equal(t, urls[i], item.URL, "item %d out of order", i)
		assert.True(t, item.Success, "item %d should have succeeded", i)
	}
	assert.NotEmpty(t, result.ID)
}

func TestRun_FailSoftIsolation(t *testing.T) {
	stub := newStubFetcher()
	urls := []string{
		"https://good-1.example",
		"https://broken.example",
		"https://good-2.example",
	}
	stub.outcomes[urls[1]] = fetcher.Failure(fetcher.FailureNetwork, "fetch %q: connection refused", urls[1])

	orch := NewOrchestrator(stub, DefaultConfig())
	result, err := orch.Run(context.Background(), Request{URLs: urls})

	require.NoError(t, err)
	assert.True(t, result.Items[0].Success)
	assert.True(t, result.Items[1].Failed(fetcher.FailureNetwork))
	assert.True(t, result.Items[2].Success)
}

func TestRun_ConcurrencyBound(t *testing.T) {
	stub := newStubFetcher()
	urls := make([]string, 20)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://site-%d.example", i)
		stub.delays[urls[i]] = 30 * time.Millisecond
	}

	orch := NewOrchestrator(stub, Config{MaxConcurrency: 3})
	result, err := orch.Run(context.Background(), Request{URLs: urls})

	require.NoError(t, err)
	require.Len(t, result.Items, len(urls))
	assert.LessOrEqual(t, stub.peakInFlight(), 3, "more than 3 fetches in flight")
	assert.Equal(t, len(urls), stub.callCount())
}

func TestRun_BatchTimeout(t *testing.T) {
	stub := newStubFetcher()
	fast := "https://fast.example"
	slow1 := "https://slow-1.example"
	slow2 := "https://slow-2.example"
	stub.delays[slow1] = 10 * time.Second
	stub.delays[slow2] = 10 * time.Second

	orch := NewOrchestrator(stub, Config{MaxConcurrency: 3})

	start := time.Now()
	result, err := orch.Run(context.Background(), Request{
		URLs:         []string{fast, slow1, slow2},
		BatchTimeout: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 2*time.Second, "run should return at the batch deadline")

	// The fast item keeps its real outcome; the slow ones are reported as
	// batch timeouts, not item timeouts.
	assert.True(t, result.Items[0].Success)
	assert.True(t, result.Items[1].Failed(fetcher.FailureBatchTimeout))
	assert.True(t, result.Items[2].Failed(fetcher.FailureBatchTimeout))
}

func TestRun_BatchTimeoutCoversQueuedItems(t *testing.T) {
	stub := newStubFetcher()

	// One worker, so the second URL never leaves the queue before the
	// deadline.
	running := "https://running.example"
	queued := "https://queued.example"
	stub.delays[running] = 10 * time.Second

	orch := NewOrchestrator(stub, Config{MaxConcurrency: 1})
	result, err := orch.Run(context.Background(), Request{
		URLs:         []string{running, queued},
		BatchTimeout: 100 * time.Millisecond,
	})

	require.NoError(t, err)
	assert.True(t, result.Items[0].Failed(fetcher.FailureBatchTimeout))
	assert.True(t, result.Items[1].Failed(fetcher.FailureBatchTimeout))
}

func TestRun_DuplicateURLsFetchedIndependently(t *testing.T) {
	stub := newStubFetcher()
	url := "https://dup.example"

	orch := NewOrchestrator(stub, DefaultConfig())
	result, err := orch.Run(context.Background(), Request{URLs: []string{url, url}})

	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, url, result.Items[0].URL)
	assert.Equal(t, url, result.Items[1].URL)
	assert.Equal(t, 2, stub.callCount())
}

func TestRun_DeterministicWithFixedFetcher(t *testing.T) {
	stub := newStubFetcher()
	urls := []string{"https://a.example", "https://b.example", "https://c.example"}
	stub.outcomes[urls[1]] = fetcher.Failure(fetcher.FailureNetwork, "fetch %q: no route to host", urls[1])

	orch := NewOrchestrator(stub, DefaultConfig())

	first, err := orch.Run(context.Background(), Request{URLs: urls})
	require.NoError(t, err)
	second, err := orch.Run(context.Background(), Request{URLs: urls})
	require.NoError(t, err)

	// Batch IDs differ per run; the per-URL outcomes must not.
	require.Len(t, second.Items, len(first.Items))
	for i := range first.Items {
		assert.Equal(t, first.Items[i], second.Items[i])
	}
}

func TestRun_PerItemTimeoutPropagated(t *testing.T) {
	stub := newStubFetcher()

	orch := NewOrchestrator(stub, DefaultConfig())
	_, err := orch.Run(context.Background(), Request{
		URLs:           []string{"https://a.example"},
		PerItemTimeout: 7 * time.Second,
	})

	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, stub.lastTimeout)
}

func TestRun_ConfigDefaultsApplied(t *testing.T) {
	stub := newStubFetcher()

	orch := NewOrchestrator(stub, Config{PerItemTimeout: 3 * time.Second})
	_, err := orch.Run(context.Background(), Request{URLs: []string{"https://a.example"}})

	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, stub.lastTimeout)
	assert.Equal(t, DefaultConfig().MaxConcurrency, orch.config.MaxConcurrency)
	assert.Equal(t, DefaultConfig().BatchTimeout, orch.config.BatchTimeout)
}

// TestItem_JSONCarriesFinalURL guards against the embedded outcome's url
// field colliding with the requested URL: a redirected item must serialize
// both where it was asked to go and where it ended up.
func TestItem_JSONCarriesFinalURL(t *testing.T) {
	item := Item{
		URL: "https://shop.example/old",
		Outcome: fetcher.Outcome{
			Success:    true,
			StatusCode: http.StatusOK,
			FinalURL:   "https://shop.example/new",
		},
	}

	data, err := json.Marshal(item)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "https://shop.example/old", fields["requested_url"])
	assert.Equal(t, "https://shop.example/new", fields["url"])
}

// TestRun_MixedOutcomesEndToEnd exercises the orchestrator with the real
// HTTP fetcher against a mock target site: one good page, one page slower
// than the per-item deadline, one malformed URL.
func TestRun_MixedOutcomesEndToEnd(t *testing.T) {
	site := testutil.NewMockSite()
	defer site.Close()

	site.SetResponse("/good", testutil.MockResponse{StatusCode: http.StatusOK, Body: "<html>good</html>"})
	site.SetResponse("/slow", testutil.MockResponse{StatusCode: http.StatusOK, Delay: 2 * time.Second})

	httpFetcher, err := fetcher.New(fetcher.Config{Client: &http.Client{}})
	require.NoError(t, err)

	orch := NewOrchestrator(httpFetcher, DefaultConfig())
	result, err := orch.Run(context.Background(), Request{
		URLs:           []string{site.URL() + "/good", site.URL() + "/slow", "not a url"},
		PerItemTimeout: 300 * time.Millisecond,
	})

	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	assert.True(t, result.Items[0].Success)
	assert.Equal(t, http.StatusOK, result.Items[0].StatusCode)
	assert.True(t, result.Items[1].Failed(fetcher.FailureTimeout))
	assert.True(t, result.Items[2].Failed(fetcher.FailureInvalidURL))
}
