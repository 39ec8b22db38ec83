package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "btcgraph",
		Subsystem: "block_cache",
		Name:      "lookups_total",
		Help:      "Count of block cache lookups.",
	}, []string{"result"})
	cacheFlushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "btcgraph",
		Subsystem: "block_cache",
		Name:      "flushes_total",
		Help:      "Count of cache write batches.",
	}, []string{"status"})
	cacheFlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "btcgraph",
		Subsystem: "block_cache",
		Name:      "flush_duration_seconds",
		Help:      "Duration of cache write batches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
)

// BlockCache records metrics for the best-effort block cache.
type BlockCache struct{}

// NewBlockCache creates block cache metrics.
func NewBlockCache() *BlockCache {
	return &BlockCache{}
}

// ObserveLookup records a cache lookup result: hit, miss, or error (errors
// are counted separately even though callers treat them as misses).
func (BlockCache) ObserveLookup(hit bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveFlush records one pipelined cache write batch.
func (BlockCache) ObserveFlush(err error, started time.Time) {
	status := statusLabel(err)
	cacheFlushesTotal.WithLabelValues(status).Inc()
	cacheFlushDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}
