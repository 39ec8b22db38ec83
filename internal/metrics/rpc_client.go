// Package metrics defines prometheus instrumentation for the importer and
// its dependencies.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "btcgraph",
		Subsystem: "rpc_client",
		Name:      "operations_total",
		Help:      "Count of chain node RPC operations.",
	}, []string{"operation", "network", "status"})
	rpcOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "btcgraph",
		Subsystem: "rpc_client",
		Name:      "operation_duration_seconds",
		Help:      "Duration of chain node RPC operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "network", "status"})
)

// RPCClient records metrics for chain RPC calls.
type RPCClient struct {
	network string
}

// NewRPCClient creates RPC metrics labeled with the network name.
func NewRPCClient(network string) *RPCClient {
	if network == "" {
		network = "unknown"
	}
	return &RPCClient{network: network}
}

// Observe records one RPC operation.
func (m RPCClient) Observe(operation string, err error, started time.Time) {
	status := statusLabel(err)
	rpcOperationsTotal.WithLabelValues(operation, m.network, status).Inc()
	rpcOperationDuration.WithLabelValues(operation, m.network, status).
		Observe(time.Since(started).Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
