// Package tendermint - Transaction broadcasting via Tendermint RPC
//
// This file submits signed transactions to a Tendermint node over its
// JSON-RPC endpoint and answers reads through abci_query.
package tendermint

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	abci "github.com/tendermint/tendermint/abci/types"

	"pricefeed.mini/pfo/internal/types"
)

const DefaultRPCAddress = "http://localhost:26657"

// eventDataKey matches the attribute the application attaches to every
// event with its base64 encoding.
const eventDataKey = "data"

// BroadcastClient talks to a Tendermint RPC endpoint.
type BroadcastClient struct {
	rpcAddr string
	client  *http.Client
}

// NewBroadcastClient creates a client for rpcAddr (e.g. "http://localhost:26657").
func NewBroadcastClient(rpcAddr string) *BroadcastClient {
	if rpcAddr == "" {
		rpcAddr = DefaultRPCAddress
	}
	return &BroadcastClient{
		rpcAddr: rpcAddr,
		client: &http.Client{
			// broadcast_tx_commit waits for a block
			Timeout: 30 * time.Second,
		},
	}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s (%s)", e.Code, e.Message, e.Data)
}

type txResult struct {
	Code      uint32 `json:"code"`
	Log       string `json:"log"`
	Codespace string `json:"codespace"`
	Events    []struct {
		Type       string `json:"type"`
		Attributes []struct {
			Key   []byte `json:"key"`
			Value []byte `json:"value"`
		} `json:"attributes"`
	} `json:"events"`
}

// call performs one JSON-RPC request and decodes its result into out.
func (bc *BroadcastClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	reqBytes, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bc.rpcAddr, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to build RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := bc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send RPC request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read RPC response: %w", err)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse RPC response: %w (body: %s)", err, string(respBytes))
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to parse %s result: %w", method, err)
	}
	return nil
}

// Submit broadcasts raw with broadcast_tx_commit and waits for the block.
// Rejections by CheckTx or DeliverTx come back in the receipt code.
func (bc *BroadcastClient) Submit(ctx context.Context, raw []byte) (*types.Receipt, error) {
	var result struct {
		CheckTx   txResult `json:"check_tx"`
		DeliverTx txResult `json:"deliver_tx"`
		Hash      string   `json:"hash"`
		Height    int64    `json:"height,string"`
	}
	params := map[string]string{"tx": base64.StdEncoding.EncodeToString(raw)}
	if err := bc.call(ctx, "broadcast_tx_commit", params, &result); err != nil {
		return nil, err
	}

	receipt := &types.Receipt{Hash: result.Hash, Height: result.Height}
	var stx types.SignedTransaction
	if json.Unmarshal(raw, &stx) == nil {
		if tx, err := stx.GetTransaction(); err == nil {
			receipt.TxID = tx.ID
		}
	}

	if result.CheckTx.Code != 0 {
		receipt.Code = result.CheckTx.Code
		receipt.Codespace = result.CheckTx.Codespace
		receipt.Log = result.CheckTx.Log
		receipt.Height = 0
		return receipt, nil
	}

	receipt.Code = result.DeliverTx.Code
	receipt.Codespace = result.DeliverTx.Codespace
	receipt.Log = result.DeliverTx.Log
	for _, ev := range result.DeliverTx.Events {
		rec := types.EventRecord{Type: ev.Type, Attributes: map[string]string{}}
		for _, a := range ev.Attributes {
			if string(a.Key) == eventDataKey {
				rec.Data = string(a.Value)
				continue
			}
			rec.Attributes[string(a.Key)] = string(a.Value)
		}
		receipt.Events = append(receipt.Events, rec)
	}
	return receipt, nil
}

// Query runs abci_query against the latest committed state.
func (bc *BroadcastClient) Query(ctx context.Context, path string, data []byte) (*abci.ResponseQuery, error) {
	var result struct {
		Response struct {
			Code      uint32 `json:"code"`
			Log       string `json:"log"`
			Value     []byte `json:"value"`
			Height    int64  `json:"height,string"`
			Codespace string `json:"codespace"`
		} `json:"response"`
	}
	params := map[string]interface{}{
		"path": path,
		"data": hex.EncodeToString(data),
	}
	if err := bc.call(ctx, "abci_query", params, &result); err != nil {
		return nil, err
	}
	r := result.Response
	return &abci.ResponseQuery{
		Code:      r.Code,
		Log:       r.Log,
		Value:     r.Value,
		Height:    r.Height,
		Codespace: r.Codespace,
	}, nil
}

// Status reports the latest block height the node has seen.
func (bc *BroadcastClient) Status(ctx context.Context) (int64, error) {
	var result struct {
		SyncInfo struct {
			LatestBlockHeight int64 `json:"latest_block_height,string"`
		} `json:"sync_info"`
	}
	if err := bc.call(ctx, "status", map[string]string{}, &result); err != nil {
		return 0, err
	}
	return result.SyncInfo.LatestBlockHeight, nil
}
