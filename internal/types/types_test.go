// Package types tests exercise the transaction envelope and Pubkey encoding
// defined in the `internal/types` package. They ensure signatures cover the
// exact body bytes and that payloads decode into the struct matching the
// transaction type.
package types

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"testing"
)

type testSigner struct {
	priv ed25519.PrivateKey
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testSigner{priv: priv}
}

func (s *testSigner) Sign(message []byte) []byte { return ed25519.Sign(s.priv, message) }

func (s *testSigner) PublicKey() ed25519.PublicKey { return s.priv.Public().(ed25519.PublicKey) }

func TestTransactionSigning(t *testing.T) {
	signer := newTestSigner(t)

	tx, err := NewTransaction(TxUpdatePrice, UpdatePricePayload{NewPrice: 2500})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if tx.ID == "" {
		t.Fatal("expected transaction ID to be set")
	}

	signedTx, err := tx.Sign(signer)
	if err != nil {
		t.Fatalf("Failed to sign transaction: %v", err)
	}
	if !signedTx.Verify() {
		t.Error("Failed to verify transaction signature")
	}

	extractedTx, err := signedTx.GetTransaction()
	if err != nil {
		t.Fatalf("Failed to extract transaction: %v", err)
	}
	if extractedTx.Type != tx.Type {
		t.Errorf("Transaction type mismatch. Got %s, want %s", extractedTx.Type, tx.Type)
	}
	if extractedTx.ID != tx.ID {
		t.Errorf("Transaction ID mismatch. Got %s, want %s", extractedTx.ID, tx.ID)
	}

	signerKey, err := signedTx.Signer()
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if signerKey != PubkeyFromEd25519(signer.PublicKey()) {
		t.Errorf("signer key mismatch")
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	signer := newTestSigner(t)
	tx, _ := NewTransaction(TxGetPrice, GetPricePayload{})
	stx, err := tx.Sign(signer)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	stx.Tx = append([]byte{}, stx.Tx...)
	stx.Tx[len(stx.Tx)-2] ^= 0x01
	if stx.Verify() {
		t.Fatal("tampered body should not verify")
	}

	stx.PublicKey = stx.PublicKey[:10]
	if stx.Verify() {
		t.Fatal("short public key should not verify")
	}
}

func TestDecodePayload(t *testing.T) {
	account := PubkeyFromEd25519(newTestSigner(t).PublicKey())

	testCases := []struct {
		name    string
		txType  TransactionType
		payload interface{}
	}{
		{
			name:    "Initialize",
			txType:  TxInitialize,
			payload: InitializePayload{PriceAccount: account, InitialPrice: 2197, Decimals: 2},
		},
		{
			name:    "UpdatePrice",
			txType:  TxUpdatePrice,
			payload: UpdatePricePayload{PriceAccount: account, NewPrice: 3050},
		},
		{
			name:    "GetPrice",
			txType:  TxGetPrice,
			payload: GetPricePayload{PriceAccount: account},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := NewTransaction(tc.txType, tc.payload)
			if err != nil {
				t.Fatalf("NewTransaction: %v", err)
			}
			got, err := tx.DecodePayload()
			if err != nil {
				t.Fatalf("DecodePayload: %v", err)
			}
			if got != tc.payload {
				t.Errorf("payload mismatch. Got %+v, want %+v", got, tc.payload)
			}
		})
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	tx := &Transaction{Type: "close_account", Payload: json.RawMessage(`{}`)}
	if _, err := tx.DecodePayload(); !errors.Is(err, ErrUnknownTxType) {
		t.Fatalf("expected ErrUnknownTxType, got %v", err)
	}
}

func TestPubkeyText(t *testing.T) {
	const programID = "EUeWpzuAwmY13VNbVumpTJVZwmoUkrf1cujqKVGr7rRE"

	pk, err := ParsePubkey(programID)
	if err != nil {
		t.Fatalf("ParsePubkey: %v", err)
	}
	if pk.String() != programID {
		t.Errorf("String() = %s, want %s", pk.String(), programID)
	}

	data, err := json.Marshal(pk)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"`+programID+`"` {
		t.Errorf("json = %s", data)
	}

	if _, err := ParsePubkey("abc"); !errors.Is(err, ErrInvalidPubkey) {
		t.Errorf("expected ErrInvalidPubkey for short key, got %v", err)
	}
	if _, err := ParsePubkey("0OIl"); !errors.Is(err, ErrInvalidPubkey) {
		t.Errorf("expected ErrInvalidPubkey for non-base58 input, got %v", err)
	}
	if !(Pubkey{}).IsZero() {
		t.Error("zero Pubkey should report IsZero")
	}
}

func TestDigestIgnoresEnvelopeEncoding(t *testing.T) {
	tx, err := NewTransaction(TxUpdatePrice, UpdatePricePayload{NewPrice: 2500})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	signedTx, err := tx.Sign(newTestSigner(t))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	compact, _ := json.Marshal(signedTx)
	indented, _ := json.MarshalIndent(signedTx, "", "  ")
	var a, b SignedTransaction
	if err := json.Unmarshal(compact, &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(indented, &b); err != nil {
		t.Fatal(err)
	}
	if a.Digest() != b.Digest() {
		t.Error("re-encoded envelope changed the digest")
	}

	other, _ := NewTransaction(TxUpdatePrice, UpdatePricePayload{NewPrice: 2500})
	otherSigned, _ := other.Sign(newTestSigner(t))
	if otherSigned.Digest() == signedTx.Digest() {
		t.Error("distinct transactions share a digest")
	}

	parsed, err := ParseTxDigest(signedTx.Digest().String())
	if err != nil || parsed != signedTx.Digest() {
		t.Errorf("ParseTxDigest round trip: %v", err)
	}
	if _, err := ParseTxDigest("abcd"); err == nil {
		t.Error("expected error for short digest")
	}
}

func TestUnsignedEnvelope(t *testing.T) {
	tx, err := NewTransaction(TxGetPrice, GetPricePayload{})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	stx, err := tx.Unsigned()
	if err != nil {
		t.Fatalf("Unsigned: %v", err)
	}
	if !stx.IsUnsigned() || stx.Verify() {
		t.Error("unsigned envelope must not verify")
	}

	raw, _ := json.Marshal(stx)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	if _, ok := fields["signature"]; ok {
		t.Errorf("unsigned envelope encodes a signature: %s", raw)
	}
}
