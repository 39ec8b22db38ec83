package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/model"
	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/pkg/workerpool"
)

// fetchedBlock pairs a height with its fetch result so failures stay
// attributable after concurrent fan-out.
type fetchedBlock struct {
	height uint64
	block  *model.Block
	err    error
}

// blockFetcher pulls blocks cache-first with bounded concurrency, delivering
// them strictly in ascending height order. The single downstream writer
// relies on that order: checkpoint persistence assumes contiguous progress.
type blockFetcher struct {
	source  ChainSource
	cache   BlockCache
	workers int
	logger  *zap.Logger
}

func newBlockFetcher(source ChainSource, cache BlockCache, workers int, logger *zap.Logger) *blockFetcher {
	if workers < 1 {
		workers = 1
	}
	return &blockFetcher{
		source:  source,
		cache:   cache,
		workers: workers,
		logger:  logger,
	}
}

// FetchRange streams the blocks for the given heights in input order.
func (f *blockFetcher) FetchRange(ctx context.Context, heights []uint64) <-chan fetchedBlock {
	results := workerpool.FetchOrdered(ctx, f.workers, heights,
		func(ctx context.Context, height uint64) (fetchedBlock, error) {
			block, err := f.fetchOne(ctx, height)
			return fetchedBlock{height: height, block: block, err: err}, nil
		})

	out := make(chan fetchedBlock)
	go func() {
		defer close(out)
		for res := range results {
			select {
			case <-ctx.Done():
				return
			case out <- res.Value:
			}
		}
	}()
	return out
}

func (f *blockFetcher) fetchOne(ctx context.Context, height uint64) (*model.Block, error) {
	if f.cache != nil {
		if block, ok := f.cache.Get(ctx, height); ok {
			return block, nil
		}
	}

	block, err := f.source.BlockAt(ctx, height)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		f.cache.Put(ctx, block)
	}
	return block, nil
}
