// Package ledger provides the in-memory account store that stands in for
// the host ledger. It holds every account by address, sizes new accounts
// for rent exemption and hashes the full state for consensus. The ABCI
// application mutates it in response to delivered transactions and the
// store package persists it on commit.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zeebo/blake3"

	"pricefeed.mini/pfo/internal/types"
)

const (
	// lamports per byte-year and the two-year exemption threshold
	lamportsPerByteYear    = 3480
	exemptionYears         = 2
	accountStorageOverhead = 128
)

var (
	ErrAccountInUse    = errors.New("account already in use")
	ErrAccountNotFound = errors.New("account not found")
	ErrDuplicateTx     = errors.New("transaction already delivered")
)

// DeliveredTx records the block height at which a transaction body was
// delivered.
type DeliveredTx struct {
	Digest types.TxDigest
	Height int64
}

// Account is a single ledger account.
type Account struct {
	Address  types.Pubkey `json:"address"`
	Owner    types.Pubkey `json:"owner"`
	Lamports uint64       `json:"lamports"`
	Data     []byte       `json:"data"`
}

func (a Account) clone() Account {
	a.Data = append([]byte(nil), a.Data...)
	return a
}

// Accounts is the view of the ledger an operation works against.
type Accounts interface {
	// Get returns a copy of the account at addr.
	Get(addr types.Pubkey) (Account, bool)
	// Create allocates a new account; ErrAccountInUse if addr is occupied.
	Create(acct Account) error
	// Put overwrites an existing account; ErrAccountNotFound if absent.
	Put(acct Account) error
}

// RentExemptMinimum is the balance an account of the given data size needs
// to be exempt from rent collection.
func RentExemptMinimum(space int) uint64 {
	return uint64(accountStorageOverhead+space) * lamportsPerByteYear * exemptionYears
}

// State represents the full collection of accounts plus the set of
// transaction bodies already delivered.
type State struct {
	mu        sync.RWMutex
	accounts  map[types.Pubkey]Account
	delivered map[types.TxDigest]int64
}

var _ Accounts = (*State)(nil)

func NewState() *State {
	return &State{
		accounts:  make(map[types.Pubkey]Account),
		delivered: make(map[types.TxDigest]int64),
	}
}

// Load replaces the state with accounts, typically restored from disk.
func (s *State) Load(accounts []Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[types.Pubkey]Account, len(accounts))
	for _, a := range accounts {
		s.accounts[a.Address] = a.clone()
	}
}

func (s *State) Get(addr types.Pubkey) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[addr]
	if !ok {
		return Account{}, false
	}
	return a.clone(), true
}

func (s *State) Create(acct Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.Address]; ok {
		return fmt.Errorf("%w: %s", ErrAccountInUse, acct.Address)
	}
	s.accounts[acct.Address] = acct.clone()
	return nil
}

func (s *State) Put(acct Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.Address]; !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, acct.Address)
	}
	s.accounts[acct.Address] = acct.clone()
	return nil
}

// LoadDelivered replaces the delivered set, typically restored from disk.
func (s *State) LoadDelivered(txs []DeliveredTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = make(map[types.TxDigest]int64, len(txs))
	for _, tx := range txs {
		s.delivered[tx.Digest] = tx.Height
	}
}

// Delivered reports whether digest was already delivered and at which height.
func (s *State) Delivered(digest types.TxDigest) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.delivered[digest]
	return h, ok
}

// MarkDelivered records digest at height; ErrDuplicateTx if already seen.
func (s *State) MarkDelivered(digest types.TxDigest, height int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.delivered[digest]; ok {
		return fmt.Errorf("%w at height %d", ErrDuplicateTx, h)
	}
	s.delivered[digest] = height
	return nil
}

// DeliveredCount returns the size of the delivered set.
func (s *State) DeliveredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.delivered)
}

// Accounts returns a copy of every account ordered by address.
func (s *State) Accounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Address[:]) < string(out[j].Address[:])
	})
	return out
}

// Len returns the number of accounts.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Hash is a BLAKE3 digest over all accounts in address order. An empty
// state hashes to the digest of no input. The delivered set is left out;
// it follows from the block history.
func (s *State) Hash() []byte {
	h := blake3.New()
	var lenBuf [8]byte
	for _, a := range s.Accounts() {
		h.Write(a.Address[:])
		h.Write(a.Owner[:])
		binary.LittleEndian.PutUint64(lenBuf[:], a.Lamports)
		h.Write(lenBuf[:])
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(a.Data)))
		h.Write(lenBuf[:])
		h.Write(a.Data)
	}
	return h.Sum(nil)
}
