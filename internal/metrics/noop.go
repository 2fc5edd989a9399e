package metrics

import "context"

// NoopCollector is a no-op implementation of the Collector interface.
// Used when no Pushgateway is configured.
type NoopCollector struct{}

// MessageProcessed is a no-op.
func (n *NoopCollector) MessageProcessed(disposition string) {}

// RecipientSend is a no-op.
func (n *NoopCollector) RecipientSend(result string) {}

// ArchiveError is a no-op.
func (n *NoopCollector) ArchiveError() {}

// Flush is a no-op.
func (n *NoopCollector) Flush(ctx context.Context) error {
	return nil
}
