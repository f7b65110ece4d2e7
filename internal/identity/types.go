// Package identity manages authority keypairs and signing utilities. The
// price record's authority is an ed25519 public key; whoever holds the
// matching private key may update the price. This package exposes an
// Identity abstraction for signing and verifying messages and for retrieving
// the Pubkey recorded on the ledger.
package identity

import (
	"crypto/ed25519"

	"pricefeed.mini/pfo/internal/types"
)

// Identity represents an authority or client signing key
type Identity struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	pubkey     types.Pubkey
}

// NewIdentity creates a new Identity from a private key
func NewIdentity(privKey ed25519.PrivateKey) *Identity {
	pubKey := privKey.Public().(ed25519.PublicKey)
	return &Identity{
		privateKey: privKey,
		publicKey:  pubKey,
		pubkey:     types.PubkeyFromEd25519(pubKey),
	}
}

// Sign signs the provided message with the identity's private key
func (i *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(i.privateKey, message)
}

// Verify verifies a signature against a message using the identity's public key
func (i *Identity) Verify(message, signature []byte) bool {
	return ed25519.Verify(i.publicKey, message, signature)
}

// PublicKey returns the raw public key
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.publicKey
}

// PrivateKey returns the raw private key
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.privateKey
}

// Pubkey returns the ledger identity for this key.
func (i *Identity) Pubkey() types.Pubkey {
	return i.pubkey
}

// String returns the base58 address, the canonical text form of an authority.
func (i *Identity) String() string {
	return i.pubkey.String()
}
