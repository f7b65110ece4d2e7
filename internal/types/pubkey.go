package types

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeyLength is the size of an account address or authority key.
const PubkeyLength = 32

var ErrInvalidPubkey = errors.New("invalid public key")

// Pubkey is a 32-byte ledger identity. It is either an ed25519 public key
// (a signable wallet) or a program-derived address that no key can sign for.
// Its text form is base58.
type Pubkey [PubkeyLength]byte

// ParsePubkey decodes a base58 address.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	b, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	if len(b) != PubkeyLength {
		return pk, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPubkey, len(b), PubkeyLength)
	}
	copy(pk[:], b)
	return pk, nil
}

// MustParsePubkey is ParsePubkey for compile-time constants.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copies a raw 32-byte key.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeyLength {
		return pk, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPubkey, len(b), PubkeyLength)
	}
	copy(pk[:], b)
	return pk, nil
}

// PubkeyFromEd25519 converts a wallet key.
func PubkeyFromEd25519(k ed25519.PublicKey) Pubkey {
	var pk Pubkey
	copy(pk[:], k)
	return pk
}

func (pk Pubkey) String() string {
	return base58.Encode(pk[:])
}

func (pk Pubkey) Bytes() []byte {
	return pk[:]
}

func (pk Pubkey) IsZero() bool {
	return pk == Pubkey{}
}

func (pk Pubkey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pk.String())
}

func (pk *Pubkey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePubkey(s)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

func (pk Pubkey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}
