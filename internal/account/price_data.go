// Package account defines the on-ledger layout of the price record.
//
// Layout (little endian):
//
//	[0:8]   type tag, sha256("account:PriceData")[:8]
//	[8:40]  authority
//	[40:48] price
//	[48]    decimals
//	[49]    bump
package account

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"pricefeed.mini/pfo/internal/types"
)

const (
	// DiscriminatorLength is the size of the type tag prefix.
	DiscriminatorLength = 8
	// PriceDataLen is the payload size: authority, price, decimals, bump.
	PriceDataLen = types.PubkeyLength + 8 + 1 + 1
	// PriceDataSpace is the full account size.
	PriceDataSpace = DiscriminatorLength + PriceDataLen
)

var (
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
	ErrDidNotDeserialize     = errors.New("account data too short")
)

// PriceDataDiscriminator tags accounts holding a PriceData record.
var PriceDataDiscriminator = Discriminator("account", "PriceData")

// Discriminator returns the first eight bytes of sha256("<namespace>:<name>").
func Discriminator(namespace, name string) [DiscriminatorLength]byte {
	var d [DiscriminatorLength]byte
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// PriceData is the price record.
type PriceData struct {
	Authority types.Pubkey `json:"authority"`
	Price     uint64       `json:"price"`
	Decimals  uint8        `json:"decimals"`
	Bump      uint8        `json:"bump"`
}

// MarshalBinary encodes the record with its type tag.
func (d *PriceData) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PriceDataSpace)
	copy(buf[0:DiscriminatorLength], PriceDataDiscriminator[:])
	off := DiscriminatorLength
	copy(buf[off:off+types.PubkeyLength], d.Authority[:])
	off += types.PubkeyLength
	binary.LittleEndian.PutUint64(buf[off:off+8], d.Price)
	off += 8
	buf[off] = d.Decimals
	buf[off+1] = d.Bump
	return buf, nil
}

// UnmarshalBinary decodes a tagged record. Trailing bytes are ignored, as
// accounts may be allocated larger than the record.
func (d *PriceData) UnmarshalBinary(data []byte) error {
	if len(data) < DiscriminatorLength {
		return fmt.Errorf("%w: %d bytes", ErrDidNotDeserialize, len(data))
	}
	var tag [DiscriminatorLength]byte
	copy(tag[:], data[:DiscriminatorLength])
	if tag != PriceDataDiscriminator {
		return ErrDiscriminatorMismatch
	}
	if len(data) < PriceDataSpace {
		return fmt.Errorf("%w: %d bytes, want %d", ErrDidNotDeserialize, len(data), PriceDataSpace)
	}

	off := DiscriminatorLength
	copy(d.Authority[:], data[off:off+types.PubkeyLength])
	off += types.PubkeyLength
	d.Price = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	d.Decimals = data[off]
	d.Bump = data[off+1]
	return nil
}

// Value returns price / 10^decimals.
func (d *PriceData) Value() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(d.Price), -int32(d.Decimals))
}
