// Package metrics provides interfaces and implementations for recording
// delivery pipeline metrics. Because each invocation is a short-lived
// process, metrics are pushed to a Prometheus Pushgateway on completion
// rather than scraped.
package metrics

import "context"

// Collector defines the interface for recording pipeline metrics.
type Collector interface {
	// MessageProcessed records the final disposition of an invocation.
	MessageProcessed(disposition string)

	// RecipientSend records one per-recipient send outcome.
	// result should be "success", "error", or "skipped".
	RecipientSend(result string)

	// ArchiveError records a failed archive write.
	ArchiveError()

	// Flush publishes the collected metrics. Called once, at the end of
	// the invocation.
	Flush(ctx context.Context) error
}
