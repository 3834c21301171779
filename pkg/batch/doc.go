// Package batch fans a list of target URLs out over a bounded worker pool
// and assembles one outcome per URL in input order.
//
// The orchestrator enforces two deadlines: each URL gets a per-item timeout,
// and the whole batch gets an overall deadline. Item failures are fail-soft:
// a bad URL is recorded in its own slot and never aborts sibling fetches.
// When the batch deadline expires, items still pending are reported as
// batch_timeout failures and their in-flight fetches are cancelled through
// the context chain; items already finished keep their real outcomes.
//
// Example usage:
//
//	orch := batch.NewOrchestrator(httpFetcher, batch.DefaultConfig())
//	result, err := orch.Run(ctx, batch.Request{
//		URLs: []string{"https://example.com", "https://example.org"},
//	})
//
// Each Run call owns its worker pool; nothing is shared across concurrent
// batches, so one Orchestrator may serve many requests at once.
package batch
