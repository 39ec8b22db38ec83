package bitcoin

import (
	"context"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/model"
	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/pkg/safe"
)

// RPCClient is the subset of node RPC operations the source needs.
type RPCClient interface {
	GetBlockChainInfo() (*btcjson.GetBlockChainInfoResult, error)
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
	GetBlockVerboseTx(blockHash *chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error)
}

// Source resolves chain state and full block contents from a Bitcoin node.
type Source struct {
	rpc     RPCClient
	decoder *scriptDecoder
}

// NewSource creates a Source for the given network (mainnet, testnet3,
// regtest, signet).
func NewSource(rpc RPCClient, network string) (*Source, error) {
	decoder, err := newScriptDecoder(network)
	if err != nil {
		return nil, err
	}
	return &Source{rpc: rpc, decoder: decoder}, nil
}

// ChainInfo returns the chain name and current block height.
func (s *Source) ChainInfo(ctx context.Context) (model.ChainInfo, error) {
	if err := ctx.Err(); err != nil {
		return model.ChainInfo{}, err
	}
	info, err := s.rpc.GetBlockChainInfo()
	if err != nil {
		return model.ChainInfo{}, fmt.Errorf("get blockchain info: %w", err)
	}
	blocks, err := safe.Uint64(info.Blocks)
	if err != nil {
		return model.ChainInfo{}, fmt.Errorf("chain height overflow: %w", err)
	}
	return model.ChainInfo{Chain: info.Chain, Blocks: blocks}, nil
}

// BlockAt resolves height to hash and fetches the block with full
// transaction detail.
func (s *Source) BlockAt(ctx context.Context, height uint64) (*model.Block, error) {
	if height > math.MaxInt64 {
		return nil, fmt.Errorf("block height %d exceeds rpc limit", height)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := s.rpc.GetBlockHash(int64(height))
	if err != nil {
		return nil, fmt.Errorf("get block hash at height %d: %w", height, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := s.rpc.GetBlockVerboseTx(hash)
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", hash, err)
	}

	block, err := s.decoder.buildBlockFromVerbose(src)
	if err != nil {
		return nil, err
	}
	return block, nil
}
