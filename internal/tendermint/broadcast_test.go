package tendermint

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

// fakeRPC answers each method with the given result JSON.
func fakeRPC(t *testing.T, results map[string]string, seen *[]rpcRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if seen != nil {
			*seen = append(*seen, req)
		}
		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found","data":""}}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestSubmitDelivered(t *testing.T) {
	result := `{
		"check_tx": {"code": 0},
		"deliver_tx": {
			"code": 0,
			"log": "Price Updated!",
			"events": [{"type": "PriceChanged", "attributes": [
				{"key": "` + b64("price") + `", "value": "` + b64("2500") + `", "index": true},
				{"key": "` + b64("data") + `", "value": "` + b64("AAEC") + `", "index": false}
			]}]
		},
		"hash": "ABCDEF",
		"height": "17"
	}`
	var seen []rpcRequest
	srv := fakeRPC(t, map[string]string{"broadcast_tx_commit": result}, &seen)

	bc := NewBroadcastClient(srv.URL)
	receipt, err := bc.Submit(context.Background(), []byte("raw-tx"))
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("raw-tx")), seen[0].Params["tx"])

	assert.True(t, receipt.OK())
	assert.Equal(t, int64(17), receipt.Height)
	assert.Equal(t, "ABCDEF", receipt.Hash)
	assert.Equal(t, "Price Updated!", receipt.Log)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, "PriceChanged", receipt.Events[0].Type)
	assert.Equal(t, "2500", receipt.Events[0].Attributes["price"])
	assert.Equal(t, "AAEC", receipt.Events[0].Data)
	assert.NotContains(t, receipt.Events[0].Attributes, "data")
}

func TestSubmitRejectedByCheckTx(t *testing.T) {
	result := `{
		"check_tx": {"code": 6000, "codespace": "oracle", "log": "InvalidAuthority (6000)"},
		"deliver_tx": {"code": 0},
		"hash": "ABCDEF",
		"height": "0"
	}`
	srv := fakeRPC(t, map[string]string{"broadcast_tx_commit": result}, nil)

	receipt, err := NewBroadcastClient(srv.URL).Submit(context.Background(), []byte("raw-tx"))
	require.NoError(t, err)
	assert.False(t, receipt.OK())
	assert.Equal(t, uint32(6000), receipt.Code)
	assert.Equal(t, "oracle", receipt.Codespace)
	assert.Zero(t, receipt.Height)
}

func TestRPCError(t *testing.T) {
	srv := fakeRPC(t, map[string]string{}, nil)
	_, err := NewBroadcastClient(srv.URL).Submit(context.Background(), []byte("raw-tx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Method not found")
}

func TestQuery(t *testing.T) {
	result := `{"response": {"code": 0, "value": "` + b64(`{"price":2197}`) + `", "height": "9"}}`
	var seen []rpcRequest
	srv := fakeRPC(t, map[string]string{"abci_query": result}, &seen)

	resp, err := NewBroadcastClient(srv.URL).Query(context.Background(), "/price", []byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, `{"price":2197}`, string(resp.Value))
	assert.Equal(t, int64(9), resp.Height)
	require.Len(t, seen, 1)
	assert.Equal(t, "/price", seen[0].Params["path"])
	assert.Equal(t, "6162", seen[0].Params["data"])
}

func TestStatus(t *testing.T) {
	srv := fakeRPC(t, map[string]string{"status": `{"sync_info": {"latest_block_height": "42"}}`}, nil)
	height, err := NewBroadcastClient(srv.URL).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), height)
}
