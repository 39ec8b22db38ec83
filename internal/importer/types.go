package importer

import (
	"context"
	"time"

	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// ChainSource resolves chain state and full block contents from the
	// upstream node.
	ChainSource interface {
		ChainInfo(ctx context.Context) (model.ChainInfo, error)
		BlockAt(ctx context.Context, height uint64) (*model.Block, error)
	}

	// BlockCache is a best-effort block cache. Get reports a miss on any
	// failure; Put never blocks the import path.
	BlockCache interface {
		Get(ctx context.Context, height uint64) (*model.Block, bool)
		Put(ctx context.Context, block *model.Block)
	}

	// CheckpointStore persists the last fully imported height.
	CheckpointStore interface {
		Load() (uint64, error)
		Save(height uint64) error
	}

	// GraphStore owns schema setup and idempotent block writes.
	GraphStore interface {
		Ping(ctx context.Context) error
		SetupSchema(ctx context.Context) error
		ImportBlock(ctx context.Context, block *model.Block) error
		ImportBatch(ctx context.Context, blocks []*model.Block) error
	}

	// Metrics records importer progress.
	Metrics interface {
		ObserveBlock(outcome string, started time.Time)
		ObserveBatch(err error, started time.Time)
		SetCheckpoint(height uint64)
		SetChainHeight(height uint64)
	}
)
