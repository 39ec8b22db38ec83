package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopMetrics struct{}

func (nopMetrics) ObserveLookup(bool, error)     {}
func (nopMetrics) ObserveFlush(error, time.Time) {}

func TestBlockKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "block:0", blockKey(0))
	assert.Equal(t, "block:840000", blockKey(840000))
}

func TestNew_UnreachableRedisFails(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "127.0.0.1:1", "", 0, time.Hour, zap.NewNop(), nopMetrics{})
	require.Error(t, err)
}

func TestGet_TransportErrorIsMiss(t *testing.T) {
	t.Parallel()

	// A cache whose backend went away after startup must degrade to misses,
	// never errors.
	c := &BlockCache{
		rdb:     redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
		ttl:     time.Hour,
		logger:  zap.NewNop(),
		metrics: nopMetrics{},
	}
	defer func() {
		_ = c.rdb.Close()
	}()

	block, ok := c.Get(context.Background(), 5)
	assert.False(t, ok)
	assert.Nil(t, block)
}
