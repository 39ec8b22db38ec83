package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	graphOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "btcgraph",
		Subsystem: "graph_repository",
		Name:      "operations_total",
		Help:      "Count of graph store operations.",
	}, []string{"operation", "status"})
	graphOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "btcgraph",
		Subsystem: "graph_repository",
		Name:      "operation_duration_seconds",
		Help:      "Duration of graph store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})
)

// GraphRepository records metrics for graph store operations.
type GraphRepository struct{}

// NewGraphRepository creates graph repository metrics.
func NewGraphRepository() *GraphRepository {
	return &GraphRepository{}
}

// Observe records one graph operation.
func (GraphRepository) Observe(operation string, err error, started time.Time) {
	status := statusLabel(err)
	graphOperationsTotal.WithLabelValues(operation, status).Inc()
	graphOperationDuration.WithLabelValues(operation, status).
		Observe(time.Since(started).Seconds())
}
