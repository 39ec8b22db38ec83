// Package cache provides a best-effort Redis cache for raw block payloads.
// Absence of the cache, or any cache failure, is invisible to correctness:
// every failure is reported as a miss and the caller falls back to the chain
// source.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/model"
	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/pkg/batcher"
)

type (
	// Metrics records cache lookups and write batches.
	Metrics interface {
		ObserveLookup(hit bool, err error)
		ObserveFlush(err error, started time.Time)
	}
)

const (
	putFlushSize     = 32
	putFlushInterval = time.Second
	putFlushRPS      = 10
	opTimeout        = 2 * time.Second
)

// BlockCache caches blocks by height with TTL eviction. Writes are queued
// and flushed in pipelined batches off the import path; queued writes may be
// dropped under pressure.
type BlockCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	metrics Metrics
	puts    *batcher.Batcher[*model.Block]
}

// New connects to Redis and verifies reachability with one PING. A failed
// PING returns an error so the caller can decide to run uncached.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration, logger *zap.Logger, metrics Metrics) (*BlockCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	c := &BlockCache{
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
	c.puts = batcher.New(logger.Named("putBatcher"), c.flush, putFlushSize, putFlushInterval, putFlushRPS)
	c.puts.Start(ctx)
	return c, nil
}

func blockKey(height uint64) string {
	return fmt.Sprintf("block:%d", height)
}

// Get returns the cached block for a height, or false on miss. Expired
// entries, decode failures, and transport errors are all misses.
func (c *BlockCache) Get(ctx context.Context, height uint64) (*model.Block, bool) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := c.rdb.Get(opCtx, blockKey(height)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.ObserveLookup(false, nil)
		return nil, false
	}
	if err != nil {
		c.metrics.ObserveLookup(false, err)
		c.logger.Warn("cache read failed, treating as miss",
			zap.Uint64("height", height), zap.Error(err))
		return nil, false
	}

	var block model.Block
	if err := json.Unmarshal(data, &block); err != nil {
		c.metrics.ObserveLookup(false, err)
		c.logger.Warn("cache entry undecodable, treating as miss",
			zap.Uint64("height", height), zap.Error(err))
		return nil, false
	}

	c.metrics.ObserveLookup(true, nil)
	return &block, true
}

// Put queues a block for caching. It never blocks and never fails the
// caller; a full queue drops the block.
func (c *BlockCache) Put(_ context.Context, block *model.Block) {
	if block == nil {
		return
	}
	if !c.puts.TryAdd(block) {
		c.logger.Debug("cache put dropped", zap.Uint64("height", block.Height))
	}
}

// flush writes one batch of blocks through a single pipeline round-trip.
func (c *BlockCache) flush(ctx context.Context, blocks []*model.Block) error {
	started := time.Now()
	var err error
	defer func() {
		c.metrics.ObserveFlush(err, started)
	}()

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	pipe := c.rdb.Pipeline()
	for _, block := range blocks {
		data, mErr := json.Marshal(block)
		if mErr != nil {
			c.logger.Warn("cache encode failed, skipping block",
				zap.Uint64("height", block.Height), zap.Error(mErr))
			continue
		}
		pipe.Set(opCtx, blockKey(block.Height), data, c.ttl)
	}

	if _, err = pipe.Exec(opCtx); err != nil {
		return fmt.Errorf("cache pipeline exec: %w", err)
	}
	return nil
}

// Close flushes queued writes and releases the client.
func (c *BlockCache) Close() error {
	c.puts.Stop()
	return c.rdb.Close()
}
