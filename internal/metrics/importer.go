package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importerBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "btcgraph",
		Subsystem: "importer",
		Name:      "blocks_total",
		Help:      "Count of processed blocks by outcome.",
	}, []string{"network", "outcome"})

	importerBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "btcgraph",
		Subsystem: "importer",
		Name:      "block_duration_seconds",
		Help:      "Duration of fetching plus writing a single block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "outcome"})

	importerBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "btcgraph",
		Subsystem: "importer",
		Name:      "batches_total",
		Help:      "Count of processed catch-up batches.",
	}, []string{"network", "status"})

	importerBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "btcgraph",
		Subsystem: "importer",
		Name:      "batch_duration_seconds",
		Help:      "Duration of processing one catch-up batch.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"network", "status"})

	importerCheckpoint = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "btcgraph",
		Subsystem: "importer",
		Name:      "checkpoint_height",
		Help:      "Height of the last fully imported block.",
	}, []string{"network"})

	importerChainHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "btcgraph",
		Subsystem: "importer",
		Name:      "chain_height",
		Help:      "Latest chain height reported by the node.",
	}, []string{"network"})
)

// Importer records metrics for the import pipeline.
type Importer struct {
	network string
}

// NewImporter creates importer metrics labeled with the network name.
func NewImporter(network string) *Importer {
	if network == "" {
		network = "unknown"
	}
	return &Importer{network: network}
}

// ObserveBlock records one per-block result.
func (m Importer) ObserveBlock(outcome string, started time.Time) {
	importerBlocksTotal.WithLabelValues(m.network, outcome).Inc()
	importerBlockDuration.WithLabelValues(m.network, outcome).
		Observe(time.Since(started).Seconds())
}

// ObserveBatch records one catch-up batch.
func (m Importer) ObserveBatch(err error, started time.Time) {
	status := statusLabel(err)
	importerBatchesTotal.WithLabelValues(m.network, status).Inc()
	importerBatchDuration.WithLabelValues(m.network, status).
		Observe(time.Since(started).Seconds())
}

// SetCheckpoint publishes the in-memory checkpoint height.
func (m Importer) SetCheckpoint(height uint64) {
	importerCheckpoint.WithLabelValues(m.network).Set(float64(height))
}

// SetChainHeight publishes the node-reported chain height.
func (m Importer) SetChainHeight(height uint64) {
	importerChainHeight.WithLabelValues(m.network).Set(float64(height))
}
