// Package abci contains the ABCI application that connects the price feed
// program to the Tendermint consensus engine. CheckTx validates envelopes
// and signatures, DeliverTx executes oracle operations against the ledger
// and Commit hashes and persists the resulting state.
package abci

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	abci "github.com/tendermint/tendermint/abci/types"
	"go.uber.org/zap"

	"pricefeed.mini/pfo/internal/ledger"
	"pricefeed.mini/pfo/internal/logger"
	"pricefeed.mini/pfo/internal/notify"
	"pricefeed.mini/pfo/internal/oracle"
	"pricefeed.mini/pfo/internal/store"
	"pricefeed.mini/pfo/internal/types"
)

const (
	CodeTypeOK            uint32 = 0
	CodeTypeEncodingError uint32 = 1
	CodeTypeAuthError     uint32 = 2
	CodeTypeInvalidTx     uint32 = 3
)

const (
	QueryPrice   = "/price"
	QueryAccount = "/account"
	QueryAddress = "/address"
)

// Persister stores committed state. delivered holds the transactions
// delivered since the last successful save.
type Persister interface {
	SaveCommit(info store.CommitInfo, accounts []ledger.Account, delivered []ledger.DeliveredTx) error
}

// ABCIApplication implements the ABCI interface.
type ABCIApplication struct {
	abci.BaseApplication

	state   *ledger.State
	program *oracle.Program
	log     *zap.Logger

	mu      sync.RWMutex
	height  int64
	appHash []byte
	pending []ledger.DeliveredTx // delivered but not yet persisted

	// Persister, when set, receives every commit.
	Persister Persister
	// ProgramLog, when set, records program log lines per transaction.
	ProgramLog *logger.Logger
	// EventHandler is invoked with the notifications of each delivered
	// transaction.
	EventHandler func([]notify.Notification)
}

// NewABCIApplication creates an application over state.
func NewABCIApplication(state *ledger.State, program *oracle.Program, log *zap.Logger) *ABCIApplication {
	if state == nil {
		state = ledger.NewState()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ABCIApplication{
		state:   state,
		program: program,
		log:     log,
		appHash: state.Hash(),
	}
}

// Restore resumes from a previously persisted commit.
func (app *ABCIApplication) Restore(info store.CommitInfo) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.height = info.Height
	if len(info.AppHash) > 0 {
		app.appHash = append([]byte(nil), info.AppHash...)
	}
}

// State returns the ledger the application executes against.
func (app *ABCIApplication) State() *ledger.State {
	return app.state
}

// Program returns the oracle program.
func (app *ABCIApplication) Program() *oracle.Program {
	return app.program
}

// LastCommit returns the last committed height and app hash.
func (app *ABCIApplication) LastCommit() (int64, []byte) {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.height, append([]byte(nil), app.appHash...)
}

func (app *ABCIApplication) Info(req abci.RequestInfo) abci.ResponseInfo {
	height, hash := app.LastCommit()
	return abci.ResponseInfo{
		Data:             "pfo",
		Version:          types.Version,
		AppVersion:       1,
		LastBlockHeight:  height,
		LastBlockAppHash: hash,
	}
}

// failure is a rejected transaction with its response code.
type failure struct {
	code      uint32
	codespace string
	log       string
}

func fail(code uint32, format string, args ...interface{}) *failure {
	return &failure{code: code, log: fmt.Sprintf(format, args...)}
}

// programFailure maps an oracle error onto its code in the oracle codespace.
func programFailure(err error) *failure {
	if code, ok := oracle.ErrorCode(err); ok {
		return &failure{code: code, codespace: oracle.Codespace, log: err.Error()}
	}
	return fail(CodeTypeInvalidTx, "%v", err)
}

// decoded is a verified transaction with its typed payload. signer is zero
// for an unsigned get_price.
type decoded struct {
	tx      *types.Transaction
	digest  types.TxDigest
	signer  types.Pubkey
	payload interface{}
}

func decode(raw []byte) (*decoded, *failure) {
	var stx types.SignedTransaction
	if err := json.Unmarshal(raw, &stx); err != nil {
		return nil, fail(CodeTypeEncodingError, "failed to decode signed tx")
	}

	var signer types.Pubkey
	if !stx.IsUnsigned() {
		if !stx.Verify() {
			return nil, fail(CodeTypeAuthError, "invalid signature")
		}
		var err error
		if signer, err = stx.Signer(); err != nil {
			return nil, fail(CodeTypeAuthError, "invalid signer key")
		}
	}

	tx, err := stx.GetTransaction()
	if err != nil {
		return nil, fail(CodeTypeEncodingError, "failed to decode inner tx")
	}
	if stx.IsUnsigned() && tx.Type != types.TxGetPrice {
		return nil, fail(CodeTypeAuthError, "%s requires a signature", tx.Type)
	}
	payload, err := tx.DecodePayload()
	if errors.Is(err, types.ErrUnknownTxType) {
		return nil, fail(CodeTypeInvalidTx, "unknown transaction type %q", tx.Type)
	}
	if err != nil {
		return nil, fail(CodeTypeEncodingError, "failed to decode %s payload", tx.Type)
	}
	return &decoded{tx: tx, digest: stx.Digest(), signer: signer, payload: payload}, nil
}

func (app *ABCIApplication) CheckTx(req abci.RequestCheckTx) abci.ResponseCheckTx {
	if f := app.check(req.Tx); f != nil {
		return abci.ResponseCheckTx{Code: f.code, Codespace: f.codespace, Log: f.log}
	}
	return abci.ResponseCheckTx{Code: CodeTypeOK}
}

func (app *ABCIApplication) check(raw []byte) *failure {
	d, f := decode(raw)
	if f != nil {
		return f
	}
	if h, ok := app.state.Delivered(d.digest); ok {
		return fail(CodeTypeInvalidTx, "transaction %s already delivered at height %d", d.tx.ID, h)
	}

	// Only the stored authority may update; reject others before they reach
	// the mempool.
	if p, ok := d.payload.(types.UpdatePricePayload); ok {
		record, err := app.program.Fetch(app.state, p.PriceAccount)
		if err != nil {
			return programFailure(err)
		}
		if record.Authority != d.signer {
			return programFailure(fmt.Errorf("%w: signer %s", oracle.ErrInvalidAuthority, d.signer))
		}
	}
	return nil
}

func (app *ABCIApplication) DeliverTx(req abci.RequestDeliverTx) abci.ResponseDeliverTx {
	resp, _ := app.deliver(req.Tx)
	return resp
}

// deliver executes raw and also returns the program result on success.
func (app *ABCIApplication) deliver(raw []byte) (abci.ResponseDeliverTx, *oracle.Result) {
	d, f := decode(raw)
	if f != nil {
		return abci.ResponseDeliverTx{Code: f.code, Log: f.log}, nil
	}

	// A body is consumed once it reaches a block, whatever the outcome.
	height, _ := app.LastCommit()
	if err := app.state.MarkDelivered(d.digest, height+1); err != nil {
		app.log.Warn("replayed transaction rejected", zap.String("tx_id", d.tx.ID), zap.Stringer("digest", d.digest))
		return abci.ResponseDeliverTx{Code: CodeTypeInvalidTx, Log: fmt.Sprintf("transaction %s: %v", d.tx.ID, err)}, nil
	}
	app.mu.Lock()
	app.pending = append(app.pending, ledger.DeliveredTx{Digest: d.digest, Height: height + 1})
	app.mu.Unlock()

	res, err := app.execute(d)
	if err != nil {
		f := programFailure(err)
		app.log.Warn("transaction rejected",
			zap.String("tx_id", d.tx.ID),
			zap.String("type", string(d.tx.Type)),
			zap.Uint32("code", f.code),
			zap.Error(err))
		if app.ProgramLog != nil {
			app.ProgramLog.Error(d.tx.ID, f.log)
		}
		return abci.ResponseDeliverTx{Code: f.code, Codespace: f.codespace, Log: f.log}, nil
	}

	if app.ProgramLog != nil {
		app.ProgramLog.Program(d.tx.ID, res.Logs)
	}
	if app.EventHandler != nil && len(res.Events) > 0 {
		app.EventHandler(notify.FromEvents(d.tx.ID, height+1, res.Events))
	}

	return abci.ResponseDeliverTx{
		Code:   CodeTypeOK,
		Log:    strings.Join(res.Logs, "\n"),
		Events: toABCIEvents(res.Events),
	}, res
}

func (app *ABCIApplication) execute(d *decoded) (*oracle.Result, error) {
	switch p := d.payload.(type) {
	case types.InitializePayload:
		return app.program.Initialize(app.state, oracle.InitializeAccounts{
			PriceAccount: p.PriceAccount,
			Authority:    d.signer,
		}, p.InitialPrice, p.Decimals)
	case types.UpdatePricePayload:
		return app.program.UpdatePrice(app.state, oracle.UpdateAccounts{
			PriceAccount: p.PriceAccount,
			Authority:    d.signer,
		}, p.NewPrice)
	case types.GetPricePayload:
		return app.program.GetPrice(app.state, oracle.GetAccounts{PriceAccount: p.PriceAccount})
	default:
		return nil, types.ErrUnknownTxType
	}
}

// EventDataKey is the attribute carrying the base64 encoded event.
const EventDataKey = "data"

func toABCIEvents(events []oracle.Event) []abci.Event {
	out := make([]abci.Event, 0, len(events))
	for _, e := range events {
		attrs := make([]abci.EventAttribute, 0, 4)
		for _, kv := range e.Attributes() {
			attrs = append(attrs, abci.EventAttribute{Key: []byte(kv[0]), Value: []byte(kv[1]), Index: true})
		}
		attrs = append(attrs, abci.EventAttribute{
			Key:   []byte(EventDataKey),
			Value: []byte(base64.StdEncoding.EncodeToString(e.Encode())),
		})
		out = append(out, abci.Event{Type: e.EventName(), Attributes: attrs})
	}
	return out
}

func (app *ABCIApplication) Commit() abci.ResponseCommit {
	hash := app.state.Hash()

	app.mu.Lock()
	app.height++
	app.appHash = hash
	height := app.height
	pending := app.pending
	app.mu.Unlock()

	if app.Persister != nil {
		if err := app.Persister.SaveCommit(store.CommitInfo{Height: height, AppHash: hash}, app.state.Accounts(), pending); err != nil {
			// pending is retried with the next commit
			app.log.Error("failed to persist commit", zap.Int64("height", height), zap.Error(err))
		} else {
			app.mu.Lock()
			app.pending = app.pending[len(pending):]
			app.mu.Unlock()
		}
	} else {
		app.mu.Lock()
		app.pending = nil
		app.mu.Unlock()
	}
	app.log.Debug("committed", zap.Int64("height", height), zap.Binary("app_hash", hash))
	return abci.ResponseCommit{Data: hash}
}

func (app *ABCIApplication) Query(req abci.RequestQuery) abci.ResponseQuery {
	height, _ := app.LastCommit()
	value, err := app.query(req.Path, req.Data)
	if err != nil {
		f := programFailure(err)
		return abci.ResponseQuery{Code: f.code, Codespace: f.codespace, Log: f.log, Height: height}
	}
	return abci.ResponseQuery{Code: CodeTypeOK, Value: value, Height: height}
}

// query resolves a read path. For /price and /account, data optionally
// names the account by its base58 address; the derived price account is
// used otherwise.
func (app *ABCIApplication) query(path string, data []byte) ([]byte, error) {
	canonical, bump := app.program.Address()
	addr := canonical
	if len(data) > 0 {
		parsed, err := types.ParsePubkey(string(data))
		if err != nil {
			return nil, err
		}
		addr = parsed
	}

	switch path {
	case QueryPrice:
		record, err := app.program.Fetch(app.state, addr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(types.PriceView{
			Address:   addr,
			Authority: record.Authority,
			Price:     record.Price,
			Decimals:  record.Decimals,
			Bump:      record.Bump,
			Value:     record.Value().String(),
		})
	case QueryAccount:
		acct, ok := app.state.Get(addr)
		if !ok {
			return nil, fmt.Errorf("%w: %s", oracle.ErrAccountNotInitialized, addr)
		}
		return json.Marshal(acct)
	case QueryAddress:
		cfg := app.program.Config()
		return json.Marshal(types.AddressInfo{
			Address:   canonical,
			Bump:      bump,
			ProgramID: cfg.ProgramID,
			Seed:      string(cfg.Seed),
		})
	default:
		return nil, fmt.Errorf("unknown query path %q", path)
	}
}
