// Package importer drives the catch-up/tail loop that turns chain blocks
// into graph writes. It assumes a linear, already-final chain supplied by
// height; chain reorganizations are out of scope. Exactly one importer
// instance may run against a given checkpoint/graph store pair — there is no
// coordination primitive for more.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/clock"
	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/model"
)

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	BatchSize        uint64
	CheckpointStride uint64
	PollInterval     time.Duration
	FetchWorkers     int
	Mode             Mode
	WriteMode        WriteMode
	// RetrySkipped retries each height skipped during a catch-up pass once
	// at the end of the pass, instead of leaving the gap for the operator.
	RetrySkipped bool
}

func (o *Options) applyDefaults() error {
	if o.BatchSize == 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.CheckpointStride == 0 {
		o.CheckpointStride = defaultCheckpointStride
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.FetchWorkers < 1 {
		o.FetchWorkers = defaultFetchWorkers
	}
	if o.Mode == "" {
		o.Mode = ModeContinuous
	}
	if o.WriteMode == "" {
		o.WriteMode = WriteSingle
	}
	switch o.Mode {
	case ModeContinuous, ModeOnce:
	default:
		return fmt.Errorf("unknown mode %q", o.Mode)
	}
	switch o.WriteMode {
	case WriteSingle, WriteBatch:
	default:
		return fmt.Errorf("unknown write mode %q", o.WriteMode)
	}
	return nil
}

// Service orchestrates ChainSource, BlockCache, CheckpointStore, and
// GraphStore through the import state machine.
type Service struct {
	opts    Options
	logger  *zap.Logger
	metrics Metrics
	source  ChainSource
	state   CheckpointStore
	graph   GraphStore
	fetcher *blockFetcher
	sleep   func(context.Context, time.Duration) error
	wake    <-chan struct{}

	checkpoint uint64
}

// New builds a Service. cache may be nil to run uncached; wake may be nil.
func New(
	source ChainSource,
	cache BlockCache,
	state CheckpointStore,
	graph GraphStore,
	metrics Metrics,
	opts Options,
	logger *zap.Logger,
) (*Service, error) {
	if source == nil {
		return nil, errors.New("chain source is required")
	}
	if state == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if graph == nil {
		return nil, errors.New("graph store is required")
	}
	if metrics == nil {
		return nil, errors.New("importer metrics is required")
	}
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}

	return &Service{
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		source:  source,
		state:   state,
		graph:   graph,
		fetcher: newBlockFetcher(source, cache, opts.FetchWorkers, logger.Named("fetcher")),
		sleep:   clock.SleepWithContext,
	}, nil
}

// SetWakeSignal installs an optional channel whose messages cut the tail
// poll short (e.g. a node hashblock notification). Must be called before Run.
func (s *Service) SetWakeSignal(wake <-chan struct{}) {
	s.wake = wake
}

// Run executes the import loop until the context is canceled (clean stop,
// nil) or an unrecoverable error occurs. The checkpoint is persisted on
// every exit path.
func (s *Service) Run(ctx context.Context) error {
	if err := s.verifyDependencies(ctx); err != nil {
		return err
	}
	if err := s.graph.SetupSchema(ctx); err != nil {
		return fmt.Errorf("setup schema: %w", err)
	}

	checkpoint, err := s.state.Load()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	s.checkpoint = checkpoint
	s.metrics.SetCheckpoint(checkpoint)
	s.logger.Info("resuming import", zap.Uint64("checkpoint", checkpoint))

	defer s.persistCheckpoint()

	poller := clock.NewPoller(s.opts.PollInterval, s.wake)
	defer poller.Stop()

	for {
		if ctx.Err() != nil {
			s.logger.Info("import interrupted, shutting down",
				zap.Uint64("checkpoint", s.checkpoint))
			return nil
		}

		info, err := s.source.ChainInfo(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("chain height query failed, backing off", zap.Error(err))
			if s.sleep(ctx, failureBackoff) != nil {
				return nil
			}
			continue
		}
		s.metrics.SetChainHeight(info.Blocks)

		if s.checkpoint >= info.Blocks {
			if s.opts.Mode == ModeOnce {
				s.logger.Info("import complete", zap.Uint64("checkpoint", s.checkpoint))
				return nil
			}
			s.logger.Info("caught up with chain, waiting for new blocks",
				zap.Uint64("chain_height", info.Blocks),
				zap.Duration("poll_interval", s.opts.PollInterval))
			if poller.Wait(ctx) == clock.WaitCanceled {
				return nil
			}
			continue
		}

		before := s.checkpoint
		if err := s.runBatch(ctx, info.Blocks); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if s.opts.Mode == ModeOnce && s.checkpoint == before && ctx.Err() == nil {
			return fmt.Errorf("import stalled at height %d", s.checkpoint)
		}
	}
}

// verifyDependencies performs one lightweight round-trip per dependency.
// Any failure here aborts startup.
func (s *Service) verifyDependencies(ctx context.Context) error {
	if err := s.graph.Ping(ctx); err != nil {
		return fmt.Errorf("graph store unreachable: %w", err)
	}

	info, err := s.source.ChainInfo(ctx)
	if err != nil {
		return fmt.Errorf("chain node unreachable: %w", err)
	}
	s.logger.Info("connected to chain node",
		zap.String("chain", info.Chain),
		zap.Uint64("blocks", info.Blocks))
	return nil
}

// runBatch imports the next batch of heights below chainHeight.
func (s *Service) runBatch(ctx context.Context, chainHeight uint64) error {
	start := s.checkpoint
	end := start + s.opts.BatchSize
	if end > chainHeight {
		end = chainHeight
	}

	heights := make([]uint64, 0, end-start)
	for h := start; h < end; h++ {
		heights = append(heights, h)
	}

	s.logger.Info("importing blocks",
		zap.Uint64("from", start), zap.Uint64("to", end),
		zap.Uint64("chain_height", chainHeight))

	batchStarted := time.Now()
	var skipped []uint64
	var err error
	switch s.opts.WriteMode {
	case WriteBatch:
		skipped, err = s.importBatchUnit(ctx, heights)
	default:
		skipped, err = s.importSingleUnits(ctx, heights)
	}
	s.metrics.ObserveBatch(err, batchStarted)
	if err != nil {
		return err
	}

	if len(skipped) > 0 && s.opts.RetrySkipped && ctx.Err() == nil {
		skipped = s.retrySkipped(ctx, skipped)
	}
	if len(skipped) > 0 {
		s.logger.Warn("batch finished with gaps",
			zap.Uint64s("skipped_heights", skipped))
	}

	s.persistCheckpoint()
	return nil
}

// importSingleUnits writes each block in its own transaction, persisting the
// checkpoint every CheckpointStride imported blocks.
func (s *Service) importSingleUnits(ctx context.Context, heights []uint64) ([]uint64, error) {
	var skipped []uint64
	var imported uint64

	for fetched := range s.fetcher.FetchRange(ctx, heights) {
		if ctx.Err() != nil {
			return skipped, nil
		}

		res := s.writeSingle(ctx, fetched)
		switch res.Outcome {
		case model.OutcomeImported:
			s.advance(res.Height + 1)
			imported++
			if imported%s.opts.CheckpointStride == 0 {
				s.persistCheckpoint()
			}

		case model.OutcomeSkippedTransient:
			skipped = append(skipped, res.Height)
			s.logger.Error("block skipped for this pass",
				zap.Uint64("height", res.Height), zap.Error(res.Err))
			if s.sleep(ctx, failureBackoff) != nil {
				return skipped, nil
			}

		case model.OutcomeFatal:
			return skipped, res.Err
		}
	}
	return skipped, nil
}

// writeSingle turns one fetched block into an explicit per-block result.
func (s *Service) writeSingle(ctx context.Context, fetched fetchedBlock) model.BlockResult {
	started := time.Now()
	res := model.BlockResult{Height: fetched.height, Outcome: model.OutcomeImported}

	switch {
	case fetched.err != nil && errors.Is(fetched.err, context.Canceled):
		res.Outcome = model.OutcomeFatal
		res.Err = fetched.err
	case fetched.err != nil:
		res.Outcome = model.OutcomeSkippedTransient
		res.Err = fmt.Errorf("fetch block %d: %w", fetched.height, fetched.err)
	default:
		if err := s.graph.ImportBlock(ctx, fetched.block); err != nil {
			if errors.Is(err, context.Canceled) {
				res.Outcome = model.OutcomeFatal
				res.Err = err
			} else {
				res.Outcome = model.OutcomeSkippedTransient
				res.Err = fmt.Errorf("write block %d: %w", fetched.height, err)
			}
		}
	}

	s.metrics.ObserveBlock(res.Outcome.String(), started)
	return res
}

// importBatchUnit fetches the whole batch, then writes every fetched block
// in a single graph transaction. A failed commit skips the entire batch for
// this pass.
func (s *Service) importBatchUnit(ctx context.Context, heights []uint64) ([]uint64, error) {
	var skipped []uint64
	blocks := make([]*model.Block, 0, len(heights))

	for fetched := range s.fetcher.FetchRange(ctx, heights) {
		if fetched.err != nil {
			if errors.Is(fetched.err, context.Canceled) {
				return skipped, nil
			}
			skipped = append(skipped, fetched.height)
			s.logger.Error("block fetch failed, skipped for this pass",
				zap.Uint64("height", fetched.height), zap.Error(fetched.err))
			continue
		}
		blocks = append(blocks, fetched.block)
	}
	if ctx.Err() != nil || len(blocks) == 0 {
		return skipped, nil
	}

	started := time.Now()
	if err := s.graph.ImportBatch(ctx, blocks); err != nil {
		if errors.Is(err, context.Canceled) {
			return skipped, nil
		}
		for _, b := range blocks {
			skipped = append(skipped, b.Height)
			s.metrics.ObserveBlock(model.OutcomeSkippedTransient.String(), started)
		}
		s.logger.Error("batch write failed, blocks skipped for this pass",
			zap.Int("blocks", len(blocks)), zap.Error(err))
		if s.sleep(ctx, failureBackoff) != nil {
			return skipped, nil
		}
		return skipped, nil
	}

	for range blocks {
		s.metrics.ObserveBlock(model.OutcomeImported.String(), started)
	}
	s.advance(blocks[len(blocks)-1].Height + 1)
	return skipped, nil
}

// retrySkipped gives each skipped height one more attempt and returns the
// heights that still failed.
func (s *Service) retrySkipped(ctx context.Context, heights []uint64) []uint64 {
	var remaining []uint64
	for _, height := range heights {
		if ctx.Err() != nil {
			remaining = append(remaining, height)
			continue
		}

		block, err := s.fetcher.fetchOne(ctx, height)
		if err == nil {
			err = s.graph.ImportBlock(ctx, block)
		}
		if err != nil {
			remaining = append(remaining, height)
			s.logger.Warn("retry failed, gap remains",
				zap.Uint64("height", height), zap.Error(err))
			continue
		}

		s.logger.Info("skipped block recovered on retry", zap.Uint64("height", height))
		s.advance(height + 1)
	}
	return remaining
}

// advance moves the in-memory checkpoint forward, never backward.
func (s *Service) advance(checkpoint uint64) {
	if checkpoint <= s.checkpoint {
		return
	}
	s.checkpoint = checkpoint
	s.metrics.SetCheckpoint(checkpoint)
}

// persistCheckpoint saves the in-memory checkpoint, logging rather than
// failing: a missed save only widens the idempotent replay window.
func (s *Service) persistCheckpoint() {
	if err := s.state.Save(s.checkpoint); err != nil {
		s.logger.Error("persist checkpoint failed",
			zap.Uint64("checkpoint", s.checkpoint), zap.Error(err))
		return
	}
	s.logger.Debug("checkpoint persisted", zap.Uint64("checkpoint", s.checkpoint))
}
