// Package types defines the core domain models for the pfo price feed node.
// It contains the Pubkey identity, the signed transaction envelope that
// carries oracle operations to the ledger, the per-operation payloads and the
// receipt returned to submitting clients.
package types

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Version is the current version of pfo
const Version = "0.1.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// TransactionType names the oracle operation carried by a transaction.
type TransactionType string

const (
	TxInitialize  TransactionType = "initialize"
	TxUpdatePrice TransactionType = "update_price"
	TxGetPrice    TransactionType = "get_price"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnknownTxType    = errors.New("unknown transaction type")
)

// Signer is anything that can sign a transaction body, typically an
// identity.Identity.
type Signer interface {
	Sign(message []byte) []byte
	PublicKey() ed25519.PublicKey
}

// Transaction is the unsigned body of an operation. ID keeps otherwise
// identical submissions distinct; the ledger accepts each body only once.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// SignedTransaction is the wire envelope: the JSON-encoded Transaction plus
// the signer's ed25519 public key and signature over exactly those bytes.
// A get_price envelope may omit both key and signature.
type SignedTransaction struct {
	Tx        []byte `json:"tx"`
	PublicKey []byte `json:"public_key,omitempty"`
	Signature []byte `json:"signature,omitempty"`
}

// TxDigest identifies a transaction body for replay protection.
type TxDigest [sha256.Size]byte

func (d TxDigest) String() string { return hex.EncodeToString(d[:]) }

// ParseTxDigest decodes the hex form produced by String.
func ParseTxDigest(s string) (TxDigest, error) {
	var d TxDigest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, err
	}
	if len(b) != len(d) {
		return d, errors.New("tx digest must be 32 bytes")
	}
	copy(d[:], b)
	return d, nil
}

// InitializePayload creates the price record at PriceAccount.
type InitializePayload struct {
	PriceAccount Pubkey `json:"price_account"`
	InitialPrice uint64 `json:"initial_price"`
	Decimals     uint8  `json:"decimals"`
}

// UpdatePricePayload replaces the price stored at PriceAccount.
type UpdatePricePayload struct {
	PriceAccount Pubkey `json:"price_account"`
	NewPrice     uint64 `json:"new_price"`
}

// GetPricePayload asks the program to emit the current record.
type GetPricePayload struct {
	PriceAccount Pubkey `json:"price_account"`
}

// NewTransaction builds a transaction with a fresh ID and the JSON encoding
// of payload.
func NewTransaction(txType TransactionType, payload interface{}) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		ID:        uuid.NewString(),
		Type:      txType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// Sign encodes the transaction and signs it with s.
func (tx *Transaction) Sign(s Signer) (*SignedTransaction, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		Tx:        body,
		PublicKey: []byte(s.PublicKey()),
		Signature: s.Sign(body),
	}, nil
}

// Unsigned wraps the transaction without a signature. Only get_price is
// accepted in this form.
func (tx *Transaction) Unsigned() (*SignedTransaction, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{Tx: body}, nil
}

// IsUnsigned reports whether the envelope carries neither key nor signature.
func (stx *SignedTransaction) IsUnsigned() bool {
	return len(stx.PublicKey) == 0 && len(stx.Signature) == 0
}

// Digest hashes the transaction body. The signature is excluded so that
// re-encoding an envelope does not produce a new identity.
func (stx *SignedTransaction) Digest() TxDigest {
	return sha256.Sum256(stx.Tx)
}

// Verify reports whether the signature matches the body and key.
func (stx *SignedTransaction) Verify() bool {
	if len(stx.PublicKey) != ed25519.PublicKeySize || len(stx.Signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(stx.PublicKey, stx.Tx, stx.Signature)
}

// Signer returns the envelope's public key as a Pubkey.
func (stx *SignedTransaction) Signer() (Pubkey, error) {
	return PubkeyFromBytes(stx.PublicKey)
}

// GetTransaction decodes the inner transaction body.
func (stx *SignedTransaction) GetTransaction() (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(stx.Tx, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// DecodePayload unmarshals the payload into the struct matching tx.Type.
func (tx *Transaction) DecodePayload() (interface{}, error) {
	switch tx.Type {
	case TxInitialize:
		var p InitializePayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TxUpdatePrice:
		var p UpdatePricePayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TxGetPrice:
		var p GetPricePayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, ErrUnknownTxType
	}
}

// EventRecord is one notification as reported back to clients.
type EventRecord struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Data       string            `json:"data,omitempty"` // base64 of the encoded event
}

// Receipt summarises the outcome of a submitted transaction.
type Receipt struct {
	TxID      string        `json:"tx_id,omitempty"`
	Hash      string        `json:"hash,omitempty"`
	Height    int64         `json:"height,omitempty"`
	Code      uint32        `json:"code"`
	Codespace string        `json:"codespace,omitempty"`
	Log       string        `json:"log,omitempty"`
	Events    []EventRecord `json:"events,omitempty"`
}

// OK reports whether the transaction was applied.
func (r *Receipt) OK() bool {
	return r.Code == 0
}

// PriceView is the decoded price record as served to readers.
type PriceView struct {
	Address   Pubkey `json:"address"`
	Authority Pubkey `json:"authority"`
	Price     uint64 `json:"price"`
	Decimals  uint8  `json:"decimals"`
	Bump      uint8  `json:"bump"`
	Value     string `json:"value"`
}

// AddressInfo describes the derived price account location.
type AddressInfo struct {
	Address   Pubkey `json:"address"`
	Bump      uint8  `json:"bump"`
	ProgramID Pubkey `json:"program_id"`
	Seed      string `json:"seed"`
}
