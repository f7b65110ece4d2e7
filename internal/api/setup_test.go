package api

import (
	"crypto/ed25519"
	"encoding/json"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	abciapp "pricefeed.mini/pfo/internal/abci"
	"pricefeed.mini/pfo/internal/docs"
	"pricefeed.mini/pfo/internal/identity"
	"pricefeed.mini/pfo/internal/ledger"
	"pricefeed.mini/pfo/internal/logger"
	"pricefeed.mini/pfo/internal/notify"
	"pricefeed.mini/pfo/internal/oracle"
	"pricefeed.mini/pfo/internal/store"
	"pricefeed.mini/pfo/internal/types"
)

// testNode is a local-mode node wired the way main wires it.
type testNode struct {
	app    *abciapp.ABCIApplication
	store  *store.Store
	broker *notify.Broker
}

// setupTest creates a temporary store and service for testing
func setupTest(t *testing.T) (*Service, *testNode) {
	t.Helper()

	st, err := store.NewStore(filepath.Join(t.TempDir(), "pfo.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	program, err := oracle.New(oracle.DefaultConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create program: %v", err)
	}

	l := logger.New(100)
	broker := notify.NewBroker(8)
	app := abciapp.NewABCIApplication(ledger.NewState(), program, zaptest.NewLogger(t))
	app.Persister = st
	app.ProgramLog = l
	app.EventHandler = func(notes []notify.Notification) { broker.Publish(notes...) }

	svc := NewService(abciapp.NewLocalSubmitter(app), broker, l)
	svc.Docs = docs.NewService()
	svc.Backups = st
	svc.MaxBackups = 3
	svc.Mode = "local"

	return svc, &testNode{app: app, store: st, broker: broker}
}

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return identity.NewIdentity(priv)
}

func signTx(t *testing.T, id *identity.Identity, txType types.TransactionType, payload interface{}) *types.SignedTransaction {
	t.Helper()
	tx, err := types.NewTransaction(txType, payload)
	if err != nil {
		t.Fatalf("new tx: %v", err)
	}
	stx, err := tx.Sign(id)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	return stx
}

func marshalTx(t *testing.T, stx *types.SignedTransaction) []byte {
	t.Helper()
	raw, err := json.Marshal(stx)
	if err != nil {
		t.Fatalf("marshal tx: %v", err)
	}
	return raw
}

func (n *testNode) priceAccount() types.Pubkey {
	addr, _ := n.app.Program().Address()
	return addr
}
