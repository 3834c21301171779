package fetcher

import (
	"fmt"
	"net/http"
)

// FailureKind classifies why a fetch did not produce an HTTP response.
type FailureKind string

const (
	// FailureInvalidURL marks input that never reached the network.
	FailureInvalidURL FailureKind = "invalid_url"

	// FailureTimeout marks a fetch that exceeded its per-item deadline.
	FailureTimeout FailureKind = "timeout"

	// FailureNetwork marks connection-level failures (DNS, refusal, TLS, reset).
	FailureNetwork FailureKind = "network"

	// FailureBatchTimeout marks items abandoned because the whole batch
	// ran out of time before they finished.
	FailureBatchTimeout FailureKind = "batch_timeout"
)

// Outcome is the result of a single fetch. Exactly one of the two shapes is
// populated: a received HTTP response (Success true, any status code) or a
// typed failure. A 404 is a successful fetch of a 404 page.
type Outcome struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code,omitempty"`
	Body       []byte      `json:"content,omitempty"`
	Headers    http.Header `json:"headers,omitempty"`

	// FinalURL is the URL after redirects, which may differ from the request URL.
	FinalURL string `json:"url,omitempty"`

	Kind  FailureKind `json:"error_kind,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Failure builds a failed outcome of the given kind.
func Failure(kind FailureKind, format string, args ...any) Outcome {
	return Outcome{
		Success: false,
		Kind:    kind,
		Error:   fmt.Sprintf(format, args...),
	}
}

// Failed reports whether the outcome is a failure of the given kind.
func (o Outcome) Failed(kind FailureKind) bool {
	return !o.Success && o.Kind == kind
}
