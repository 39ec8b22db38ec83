// Package model defines the domain records flowing from the chain node into
// the graph store.
package model

import "time"

// ChainInfo describes the upstream node's view of the chain.
type ChainInfo struct {
	Chain  string
	Blocks uint64
}

// Block is one chain block with full transaction detail, as handed to the
// graph writer.
type Block struct {
	Hash   string
	Height uint64
	Time   time.Time
	Size   uint32
	Txs    []Transaction
}

// TxCount returns the number of transactions in the block.
func (b *Block) TxCount() int {
	return len(b.Txs)
}

// Transaction is a single transaction inside a block.
type Transaction struct {
	TxID    string
	Size    uint32
	Inputs  []TxInput
	Outputs []TxOutput
}

// TxInput is a tagged variant: either a coinbase marker (newly issued value)
// or a spend of a prior transaction's output.
type TxInput struct {
	IsCoinbase bool
	PrevTxID   string
	PrevVout   uint32
}

// TxOutput is one output of a transaction. Addresses may be empty for
// provably unspendable or non-standard scripts; such outputs produce no
// address edge in the graph.
type TxOutput struct {
	Index     uint32
	Value     float64
	Addresses []string
}
