package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	abciapp "pricefeed.mini/pfo/internal/abci"
	"pricefeed.mini/pfo/internal/address"
	"pricefeed.mini/pfo/internal/api"
	"pricefeed.mini/pfo/internal/ledger"
	"pricefeed.mini/pfo/internal/logger"
	"pricefeed.mini/pfo/internal/notify"
	"pricefeed.mini/pfo/internal/oracle"
	"pricefeed.mini/pfo/internal/types"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func startNode(t *testing.T) string {
	t.Helper()
	program, err := oracle.New(oracle.DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	app := abciapp.NewABCIApplication(ledger.NewState(), program, zaptest.NewLogger(t))
	svc := api.NewService(abciapp.NewLocalSubmitter(app), notify.NewBroker(4), logger.New(50))
	srv := httptest.NewServer(svc.Routes())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestKeygen(t *testing.T) {
	key := filepath.Join(t.TempDir(), "a.pem")

	out, err := run(t, "keygen", "--key", key, "--json")
	require.NoError(t, err)
	var res map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	_, err = types.ParsePubkey(res["pubkey"])
	assert.NoError(t, err)

	_, err = run(t, "keygen", "--key", key)
	assert.Error(t, err, "existing key must not be overwritten")

	_, err = run(t, "keygen", "--key", key, "--force")
	assert.NoError(t, err)
}

func TestAddressLocal(t *testing.T) {
	out, err := run(t, "address", "--json")
	require.NoError(t, err)

	var info types.AddressInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))

	cfg := oracle.DefaultConfig()
	want, bump, err := address.FindProgramAddress([][]byte{cfg.Seed}, cfg.ProgramID)
	require.NoError(t, err)
	assert.Equal(t, want, info.Address)
	assert.Equal(t, bump, info.Bump)
	assert.Equal(t, oracle.DefaultSeed, info.Seed)
}

func TestAddressRemoteMatchesLocal(t *testing.T) {
	node := startNode(t)

	local, err := run(t, "address", "--json")
	require.NoError(t, err)
	remote, err := run(t, "address", "--json", "--remote", "--node", node)
	require.NoError(t, err)
	assert.JSONEq(t, local, remote)
}

func TestPriceLifecycle(t *testing.T) {
	node := startNode(t)
	dir := t.TempDir()
	owner := filepath.Join(dir, "owner.pem")
	other := filepath.Join(dir, "other.pem")
	_, err := run(t, "keygen", "--key", owner)
	require.NoError(t, err)
	_, err = run(t, "keygen", "--key", other)
	require.NoError(t, err)

	out, err := run(t, "status", "--node", node)
	require.NoError(t, err)
	assert.Contains(t, out, "initialized: false")

	out, err = run(t, "initialize", "--node", node, "--key", owner, "--price", "2197", "--decimals", "2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "event:  OracleInitialized")

	out, err = run(t, "status", "--node", node, "--json")
	require.NoError(t, err)
	var status api.HealthStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Initialized)
	assert.Equal(t, int64(1), status.Height)

	out, err = run(t, "show", "--node", node, "--json")
	require.NoError(t, err)
	var view types.PriceView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, uint64(2197), view.Price)
	assert.Equal(t, "21.97", view.Value)

	_, err = run(t, "update", "--node", node, "--key", other, "--price", "1")
	assert.Error(t, err, "non-authority update must fail")

	out, err = run(t, "update", "--node", node, "--key", owner, "--price", "2500")
	require.NoError(t, err, out)

	out, err = run(t, "get", "--node", node, "--key", other, "--json")
	require.NoError(t, err)
	var receipt types.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, "PriceInfo", receipt.Events[0].Type)
	assert.Equal(t, "2500", receipt.Events[0].Attributes["price"])
}

func TestUnsignedGet(t *testing.T) {
	node := startNode(t)
	owner := filepath.Join(t.TempDir(), "owner.pem")
	_, err := run(t, "keygen", "--key", owner)
	require.NoError(t, err)
	out, err := run(t, "initialize", "--node", node, "--key", owner, "--price", "2197", "--decimals", "2")
	require.NoError(t, err, out)

	missing := filepath.Join(t.TempDir(), "none.pem")
	_, err = run(t, "get", "--node", node, "--key", missing)
	assert.Error(t, err, "signed get needs a key")

	out, err = run(t, "get", "--node", node, "--key", missing, "--unsigned", "--json")
	require.NoError(t, err, out)
	var receipt types.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, "PriceInfo", receipt.Events[0].Type)
	assert.Equal(t, "2197", receipt.Events[0].Attributes["price"])
}

func TestMissingKey(t *testing.T) {
	node := startNode(t)
	_, err := run(t, "update", "--node", node, "--key", filepath.Join(t.TempDir(), "none.pem"), "--price", "1")
	assert.Error(t, err)
}

func TestFeedOnce(t *testing.T) {
	node := startNode(t)
	key := filepath.Join(t.TempDir(), "owner.pem")
	_, err := run(t, "keygen", "--key", key)
	require.NoError(t, err)
	_, err = run(t, "initialize", "--node", node, "--key", key, "--price", "2197", "--decimals", "2")
	require.NoError(t, err)

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"usd":"23.455"}}`)
	}))
	t.Cleanup(source.Close)

	out, err := run(t, "feed", "--once", "--node", node, "--key", key, "--source", source.URL, "--field", "data.usd")
	require.NoError(t, err, out)
	assert.Contains(t, out, "event:  PriceChanged")

	out, err = run(t, "feed", "--once", "--node", node, "--key", key, "--source", source.URL, "--field", "data.usd")
	require.NoError(t, err, out)
	assert.Contains(t, out, "price unchanged")

	out, err = run(t, "show", "--node", node, "--json")
	require.NoError(t, err)
	var view types.PriceView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, uint64(2346), view.Price)
}
