package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// WhitelistMetrics aggregates the registry's operational counters.
type WhitelistMetrics struct {
	entriesMutated     *prometheus.CounterVec
	batchesRejected    *prometheus.CounterVec
	proofVerifications *prometheus.CounterVec
	storedEntries      prometheus.Gauge
	snapshotHeight     prometheus.Gauge
}

var (
	whitelistOnce     sync.Once
	whitelistRegistry *WhitelistMetrics
)

// Whitelist returns the process-wide whitelist metrics, registering the
// collectors on first use.
func Whitelist() *WhitelistMetrics {
	whitelistOnce.Do(func() {
		whitelistRegistry = &WhitelistMetrics{
			entriesMutated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "whitelist_entries_mutated_total",
				Help: "Count of whitelist mutations by operation (add, update, remove).",
			}, []string{"op"}),
			batchesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "whitelist_batches_rejected_total",
				Help: "Count of batch calls rejected all-or-nothing, by operation.",
			}, []string{"op"}),
			proofVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "whitelist_proof_verifications_total",
				Help: "Count of merkle proof verifications by outcome.",
			}, []string{"outcome"}),
			storedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "whitelist_stored_entries",
				Help: "Number of stored whitelist records, including lapsed ones.",
			}),
			snapshotHeight: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "whitelist_snapshot_height",
				Help: "Clock value of the most recent snapshot attestation.",
			}),
		}
		prometheus.MustRegister(
			whitelistRegistry.entriesMutated,
			whitelistRegistry.batchesRejected,
			whitelistRegistry.proofVerifications,
			whitelistRegistry.storedEntries,
			whitelistRegistry.snapshotHeight,
		)
	})
	return whitelistRegistry
}

// EntryMutated records a successful add, update or remove.
func (m *WhitelistMetrics) EntryMutated(op string) {
	if m == nil {
		return
	}
	m.entriesMutated.WithLabelValues(op).Inc()
}

// BatchRejected records a batch call that failed validation.
func (m *WhitelistMetrics) BatchRejected(op string) {
	if m == nil {
		return
	}
	m.batchesRejected.WithLabelValues(op).Inc()
}

// ProofVerified records a proof verification outcome ("valid", "invalid" or
// "error").
func (m *WhitelistMetrics) ProofVerified(outcome string) {
	if m == nil {
		return
	}
	m.proofVerifications.WithLabelValues(outcome).Inc()
}

// SetStoredEntries updates the stored-record gauge.
func (m *WhitelistMetrics) SetStoredEntries(count uint64) {
	if m == nil {
		return
	}
	m.storedEntries.Set(float64(count))
}

// SetSnapshotHeight updates the snapshot height gauge.
func (m *WhitelistMetrics) SetSnapshotHeight(height uint64) {
	if m == nil {
		return
	}
	m.snapshotHeight.Set(float64(height))
}
