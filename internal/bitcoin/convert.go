// Package bitcoin implements the Bitcoin chain source adapter.
package bitcoin

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/model"
	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/pkg/safe"
)

// scriptDecoder extracts human-readable addresses from ScriptPubKey results.
type scriptDecoder struct {
	params *chaincfg.Params
}

func newScriptDecoder(network string) (*scriptDecoder, error) {
	params, err := chainParamsForNetwork(network)
	if err != nil {
		return nil, err
	}
	return &scriptDecoder{params: params}, nil
}

func (d *scriptDecoder) decodeAddresses(vout btcjson.Vout) ([]string, error) {
	if len(vout.ScriptPubKey.Addresses) > 0 {
		return append([]string(nil), vout.ScriptPubKey.Addresses...), nil
	}
	if vout.ScriptPubKey.Address != "" {
		return []string{vout.ScriptPubKey.Address}, nil
	}
	if vout.ScriptPubKey.Hex == "" {
		return nil, nil
	}

	scriptBytes, err := hex.DecodeString(vout.ScriptPubKey.Hex)
	if err != nil {
		return nil, err
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(scriptBytes, d.params)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		result = append(result, addr.EncodeAddress())
	}
	return result, nil
}

func chainParamsForNetwork(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "main", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}

// buildBlockFromVerbose maps a verbose block result into the domain model.
func (d *scriptDecoder) buildBlockFromVerbose(src *btcjson.GetBlockVerboseTxResult) (*model.Block, error) {
	height, err := safe.Uint64(src.Height)
	if err != nil {
		return nil, fmt.Errorf("block height %d: %w", src.Height, err)
	}
	size, err := safe.Uint32(src.Size)
	if err != nil {
		return nil, fmt.Errorf("block %d size: %w", src.Height, err)
	}

	block := &model.Block{
		Hash:   src.Hash,
		Height: height,
		Time:   time.Unix(src.Time, 0).UTC(),
		Size:   size,
		Txs:    make([]model.Transaction, 0, len(src.Tx)),
	}

	for _, tx := range src.Tx {
		converted, err := d.convertTransaction(tx)
		if err != nil {
			return nil, fmt.Errorf("block %d tx %s: %w", src.Height, tx.Txid, err)
		}
		block.Txs = append(block.Txs, converted)
	}

	return block, nil
}

func (d *scriptDecoder) convertTransaction(tx btcjson.TxRawResult) (model.Transaction, error) {
	size, err := safe.Uint32(tx.Size)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("size: %w", err)
	}

	inputs := make([]model.TxInput, 0, len(tx.Vin))
	for _, vin := range tx.Vin {
		if vin.IsCoinBase() {
			inputs = append(inputs, model.TxInput{IsCoinbase: true})
			continue
		}
		if vin.Txid == "" {
			// Neither coinbase nor a resolvable spend; nothing to link.
			continue
		}
		inputs = append(inputs, model.TxInput{
			PrevTxID: vin.Txid,
			PrevVout: vin.Vout,
		})
	}

	outputs := make([]model.TxOutput, 0, len(tx.Vout))
	for _, vout := range tx.Vout {
		addrs, err := d.decodeAddresses(vout)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("vout %d script: %w", vout.N, err)
		}
		outputs = append(outputs, model.TxOutput{
			Index:     vout.N,
			Value:     vout.Value,
			Addresses: addrs,
		})
	}

	return model.Transaction{
		TxID:    tx.Txid,
		Size:    size,
		Inputs:  inputs,
		Outputs: outputs,
	}, nil
}
