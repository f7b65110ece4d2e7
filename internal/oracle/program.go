// Package oracle implements the price feed program: a single price record
// at a program-derived address that one authority may update and anyone
// may read. Operations take the account store and the accounts they touch
// explicitly and return the notifications and log lines they produced.
package oracle

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pricefeed.mini/pfo/internal/account"
	"pricefeed.mini/pfo/internal/address"
	"pricefeed.mini/pfo/internal/ledger"
	"pricefeed.mini/pfo/internal/types"
)

// Result is what a successful operation emitted.
type Result struct {
	Events []Event
	Logs   []string
}

func (r *Result) log(format string, args ...interface{}) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

func (r *Result) emit(e Event) {
	r.Events = append(r.Events, e)
	r.Logs = append(r.Logs, EventLogLine(e))
}

// InitializeAccounts are the accounts initialize touches. Authority must
// already have been authenticated as the transaction signer.
type InitializeAccounts struct {
	PriceAccount types.Pubkey
	Authority    types.Pubkey
}

// UpdateAccounts are the accounts update_price touches. Authority must
// already have been authenticated as the transaction signer.
type UpdateAccounts struct {
	PriceAccount types.Pubkey
	Authority    types.Pubkey
}

// GetAccounts are the accounts get_price touches.
type GetAccounts struct {
	PriceAccount types.Pubkey
}

// Program executes oracle operations under a fixed configuration.
type Program struct {
	cfg       Config
	canonical types.Pubkey
	bump      uint8
	log       *zap.Logger
}

// New validates cfg and derives the canonical price account address.
func New(cfg Config, log *zap.Logger) (*Program, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oracle config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	addr, bump, err := address.FindProgramAddress(cfg.seeds(), cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive price account: %w", err)
	}
	return &Program{cfg: cfg, canonical: addr, bump: bump, log: log}, nil
}

// Config returns the program configuration.
func (p *Program) Config() Config {
	return p.cfg
}

// Address returns the canonical price account address and its bump.
func (p *Program) Address() (types.Pubkey, uint8) {
	return p.canonical, p.bump
}

// Initialize creates the price record at its derived address with the
// caller as authority.
func (p *Program) Initialize(accts ledger.Accounts, in InitializeAccounts, initialPrice uint64, decimals uint8) (*Result, error) {
	if in.PriceAccount != p.canonical {
		return nil, fmt.Errorf("%w: got %s, derived %s", ErrAddressMismatch, in.PriceAccount, p.canonical)
	}
	if decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: decimals %d exceeds %d", ErrInvalidInput, decimals, MaxDecimals)
	}
	if _, ok := accts.Get(in.PriceAccount); ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, in.PriceAccount)
	}

	record := &account.PriceData{
		Authority: in.Authority,
		Price:     initialPrice,
		Decimals:  decimals,
		Bump:      p.bump,
	}
	data, err := record.MarshalBinary()
	if err != nil {
		return nil, err
	}

	err = accts.Create(ledger.Account{
		Address:  in.PriceAccount,
		Owner:    p.cfg.ProgramID,
		Lamports: ledger.RentExemptMinimum(account.PriceDataSpace),
		Data:     data,
	})
	if errors.Is(err, ledger.ErrAccountInUse) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, in.PriceAccount)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.log("Price Oracle Initialized!")
	res.log("Authority: %s", record.Authority)
	res.log("Initial Price: %d", record.Price)
	res.log("Decimals: %d", record.Decimals)
	res.log("Bump: %d", record.Bump)
	res.emit(OracleInitialized{
		Authority: record.Authority,
		Price:     record.Price,
		Decimals:  record.Decimals,
	})

	p.log.Info("price oracle initialized",
		zap.Stringer("account", in.PriceAccount),
		zap.Stringer("authority", record.Authority),
		zap.Uint64("price", record.Price),
		zap.Uint8("decimals", record.Decimals),
		zap.Uint8("bump", record.Bump))
	return res, nil
}

// UpdatePrice replaces the stored price. Every account check and the
// authority check run before the record is written.
func (p *Program) UpdatePrice(accts ledger.Accounts, in UpdateAccounts, newPrice uint64) (*Result, error) {
	acct, record, err := p.load(accts, in.PriceAccount)
	if err != nil {
		return nil, err
	}
	if record.Authority != in.Authority {
		return nil, fmt.Errorf("%w: signer %s", ErrInvalidAuthority, in.Authority)
	}

	record.Price = newPrice
	data, err := record.MarshalBinary()
	if err != nil {
		return nil, err
	}
	acct.Data = data
	if err := accts.Put(acct); err != nil {
		return nil, err
	}

	res := &Result{}
	res.log("Price Updated!")
	res.log("New Price: %d", record.Price)
	res.emit(PriceChanged{
		Price:    record.Price,
		Decimals: record.Decimals,
		Updater:  record.Authority,
	})

	p.log.Info("price updated",
		zap.Stringer("account", in.PriceAccount),
		zap.Uint64("price", record.Price))
	return res, nil
}

// GetPrice emits the current record as a PriceInfo notification.
func (p *Program) GetPrice(accts ledger.Accounts, in GetAccounts) (*Result, error) {
	_, record, err := p.load(accts, in.PriceAccount)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.log("Current Price Information:")
	res.log("Price: %d", record.Price)
	res.log("Decimals: %d", record.Decimals)
	res.log("Authority: %s", record.Authority)
	res.emit(PriceInfo{
		Price:     record.Price,
		Decimals:  record.Decimals,
		Authority: record.Authority,
	})
	return res, nil
}

// Fetch reads and verifies the record without emitting anything. It is the
// direct-inspection path used by queries.
func (p *Program) Fetch(accts ledger.Accounts, addr types.Pubkey) (*account.PriceData, error) {
	_, record, err := p.load(accts, addr)
	return record, err
}

// load runs the account checks shared by update and get: existence,
// ownership, type tag, decoding and address re-derivation from the stored
// bump.
func (p *Program) load(accts ledger.Accounts, addr types.Pubkey) (ledger.Account, *account.PriceData, error) {
	acct, ok := accts.Get(addr)
	if !ok {
		return ledger.Account{}, nil, fmt.Errorf("%w: %s", ErrAccountNotInitialized, addr)
	}
	if acct.Owner != p.cfg.ProgramID {
		return ledger.Account{}, nil, fmt.Errorf("%w: owner %s", ErrAccountOwnedByWrongProgram, acct.Owner)
	}

	record := &account.PriceData{}
	if err := record.UnmarshalBinary(acct.Data); err != nil {
		if errors.Is(err, account.ErrDiscriminatorMismatch) {
			return ledger.Account{}, nil, fmt.Errorf("%w: %s", ErrAccountDiscriminatorMismatch, addr)
		}
		return ledger.Account{}, nil, fmt.Errorf("%w: %v", ErrAccountDidNotDeserialize, err)
	}

	if !address.Verify(addr, p.cfg.seeds(), record.Bump, p.cfg.ProgramID) {
		return ledger.Account{}, nil, fmt.Errorf("%w: %s with bump %d", ErrAddressMismatch, addr, record.Bump)
	}
	return acct, record, nil
}
