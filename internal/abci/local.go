package abci

import (
	"context"
	"fmt"
	"sync"

	abci "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/crypto/tmhash"

	"pricefeed.mini/pfo/internal/notify"
	"pricefeed.mini/pfo/internal/types"
)

// LocalSubmitter runs each submitted transaction through CheckTx, DeliverTx
// and Commit in-process, one block per transaction. It stands in for a
// consensus engine on single-node deployments.
type LocalSubmitter struct {
	mu  sync.Mutex
	app *ABCIApplication
}

func NewLocalSubmitter(app *ABCIApplication) *LocalSubmitter {
	return &LocalSubmitter{app: app}
}

// Submit executes raw and reports its outcome. A rejected transaction is
// reported through the receipt code, not the error.
func (s *LocalSubmitter) Submit(ctx context.Context, raw []byte) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	receipt := &types.Receipt{Hash: fmt.Sprintf("%X", tmhash.Sum(raw))}
	if d, f := decode(raw); f == nil {
		receipt.TxID = d.tx.ID
	}

	check := s.app.CheckTx(abci.RequestCheckTx{Tx: raw})
	if check.Code != CodeTypeOK {
		receipt.Code, receipt.Codespace, receipt.Log = check.Code, check.Codespace, check.Log
		return receipt, nil
	}

	deliver, res := s.app.deliver(raw)
	s.app.Commit()
	receipt.Height, _ = s.app.LastCommit()
	receipt.Code, receipt.Codespace, receipt.Log = deliver.Code, deliver.Codespace, deliver.Log
	if res != nil {
		for _, e := range res.Events {
			receipt.Events = append(receipt.Events, notify.Record(e))
		}
	}
	return receipt, nil
}

// Query answers a read path against the last committed state.
func (s *LocalSubmitter) Query(ctx context.Context, path string, data []byte) (*abci.ResponseQuery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp := s.app.Query(abci.RequestQuery{Path: path, Data: data})
	return &resp, nil
}
