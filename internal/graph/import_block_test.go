package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/model"
)

func TestCollectPayments(t *testing.T) {
	t.Parallel()

	block := &model.Block{
		Hash:   "hash-0",
		Height: 0,
		Time:   time.Unix(1700000000, 0).UTC(),
		Txs: []model.Transaction{
			{
				TxID: "tx-a",
				Outputs: []model.TxOutput{
					{Index: 0, Value: 50.0, Addresses: []string{"addr-1"}},
					// Multi-address output fans out into one tuple per address.
					{Index: 1, Value: 1.5, Addresses: []string{"addr-2", "addr-3"}},
					// Addressless output contributes nothing.
					{Index: 2, Value: 0, Addresses: nil},
				},
			},
			{
				TxID: "tx-b",
				Outputs: []model.TxOutput{
					{Index: 0, Value: 0.1, Addresses: []string{"addr-1"}},
				},
			},
		},
	}

	payments := collectPayments(block, block.Time.Unix())
	require.Len(t, payments, 4)

	first, ok := payments[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tx-a", first["txid"])
	assert.Equal(t, "addr-1", first["address"])
	assert.Equal(t, int64(1700000000), first["time"])
	assert.Equal(t, int64(0), first["n"])
	assert.Equal(t, 50.0, first["value"])

	last, ok := payments[3].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tx-b", last["txid"])
	assert.Equal(t, "addr-1", last["address"])
}

func TestCollectPayments_NoResolvableAddresses(t *testing.T) {
	t.Parallel()

	block := &model.Block{
		Txs: []model.Transaction{
			{TxID: "tx", Outputs: []model.TxOutput{{Index: 0, Value: 1}}},
		},
	}
	assert.Empty(t, collectPayments(block, 0))
}
