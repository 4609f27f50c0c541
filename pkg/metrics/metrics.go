// Package metrics exposes the engine's Prometheus collectors. Failures the
// engine absorbs on purpose (dropped snapshot writes, consolidation slices
// discarded without extraction) are visible here rather than as errors on
// the call hot path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's collectors. A nil *Metrics is valid and all
// methods are no-ops on it, so tests can wire components without a registry.
type Metrics struct {
	registry *prometheus.Registry

	authFailures          *prometheus.CounterVec
	snapshotWritesDropped prometheus.Counter
	consolidationRuns     prometheus.Counter
	consolidationRetries  prometheus.Counter
	consolidationDataLoss prometheus.Counter
	recordsWritten        prometheus.Counter
}

// New creates the engine collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		authFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_auth_failures_total",
			Help: "Requests rejected by the tenant access gateway, by code.",
		}, []string{"code"}),
		snapshotWritesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_snapshot_writes_dropped_total",
			Help: "Thread snapshot writes dropped after exhausting retries.",
		}),
		consolidationRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_consolidation_runs_total",
			Help: "Consolidation jobs started.",
		}),
		consolidationRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_consolidation_retries_total",
			Help: "Extraction attempts retried after a failure.",
		}),
		consolidationDataLoss: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_consolidation_data_loss_total",
			Help: "Buffer slices truncated without extraction after exhausted retries.",
		}),
		recordsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_memory_records_written_total",
			Help: "Memory records upserted into the durable store.",
		}),
	}
}

// Registry returns the underlying Prometheus registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// AuthFailure counts a gateway rejection with the given code ("401"/"403").
func (m *Metrics) AuthFailure(code string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(code).Inc()
}

// SnapshotWriteDropped counts a snapshot write abandoned after retries.
func (m *Metrics) SnapshotWriteDropped() {
	if m == nil {
		return
	}
	m.snapshotWritesDropped.Inc()
}

// ConsolidationRun counts a started consolidation job.
func (m *Metrics) ConsolidationRun() {
	if m == nil {
		return
	}
	m.consolidationRuns.Inc()
}

// ConsolidationRetry counts a retried extraction attempt.
func (m *Metrics) ConsolidationRetry() {
	if m == nil {
		return
	}
	m.consolidationRetries.Inc()
}

// ConsolidationDataLoss counts a slice dropped without extraction.
func (m *Metrics) ConsolidationDataLoss() {
	if m == nil {
		return
	}
	m.consolidationDataLoss.Inc()
}

// RecordWritten counts a durable record upsert.
func (m *Metrics) RecordWritten() {
	if m == nil {
		return
	}
	m.recordsWritten.Inc()
}
