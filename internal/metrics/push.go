package metrics

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushCollector implements the Collector interface using Prometheus metrics
// pushed to a Pushgateway when the invocation completes.
type PushCollector struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	messagesTotal       *prometheus.CounterVec
	recipientSendsTotal *prometheus.CounterVec
	archiveErrorsTotal  prometheus.Counter
}

// NewPushCollector creates a PushCollector targeting the given Pushgateway
// URL under the given job name. Metrics are grouped by hostname so
// concurrent invocations on different hosts do not clobber each other.
func NewPushCollector(url, job string) *PushCollector {
	registry := prometheus.NewRegistry()

	c := &PushCollector{
		registry: registry,
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listrelay_messages_total",
			Help: "Total number of messages processed.",
		}, []string{"disposition"}),
		recipientSendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listrelay_recipient_sends_total",
			Help: "Total number of per-recipient send attempts.",
		}, []string{"result"}),
		archiveErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listrelay_archive_errors_total",
			Help: "Total number of failed archive writes.",
		}),
	}

	registry.MustRegister(c.messagesTotal, c.recipientSendsTotal, c.archiveErrorsTotal)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	c.pusher = push.New(url, job).
		Gatherer(registry).
		Grouping("instance", hostname)

	return c
}

// MessageProcessed increments the messages counter for the disposition.
func (c *PushCollector) MessageProcessed(disposition string) {
	c.messagesTotal.WithLabelValues(disposition).Inc()
}

// RecipientSend increments the per-recipient send counter for the result.
func (c *PushCollector) RecipientSend(result string) {
	c.recipientSendsTotal.WithLabelValues(result).Inc()
}

// ArchiveError increments the archive error counter.
func (c *PushCollector) ArchiveError() {
	c.archiveErrorsTotal.Inc()
}

// Flush pushes the collected metrics to the Pushgateway. Add semantics keep
// metrics pushed by other jobs on the same gateway intact.
func (c *PushCollector) Flush(ctx context.Context) error {
	if err := c.pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics: %w", err)
	}
	return nil
}
