// Package address derives program-owned account addresses. A derived
// address is the SHA-256 of the seeds, the program id and a fixed marker,
// accepted only when the digest is not a valid ed25519 point: no private key
// can ever sign for it, so only the owning program controls the account.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"pricefeed.mini/pfo/internal/types"
)

const (
	// MaxSeeds bounds the number of seeds, bump included.
	MaxSeeds = 16
	// MaxSeedLength bounds a single seed.
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeeds      = errors.New("too many seeds")
	ErrMaxSeedLength = errors.New("seed exceeds maximum length")
	ErrInvalidSeeds  = errors.New("derived address lies on the ed25519 curve")
	ErrNoViableBump  = errors.New("unable to find a viable bump seed")
)

// CreateProgramAddress hashes seeds under programID. Callers that persisted
// a bump pass it as the final one-byte seed.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	var out types.Pubkey
	if len(seeds) > MaxSeeds {
		return out, fmt.Errorf("%w: %d > %d", ErrMaxSeeds, len(seeds), MaxSeeds)
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return out, fmt.Errorf("%w: %d > %d", ErrMaxSeedLength, len(seed), MaxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	copy(out[:], h.Sum(nil))

	if IsOnCurve(out[:]) {
		return types.Pubkey{}, ErrInvalidSeeds
	}
	return out, nil
}

// FindProgramAddress returns the first off-curve address searching the bump
// from 255 down to 0, together with that bump.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return types.Pubkey{}, 0, err
		}
	}
	return types.Pubkey{}, 0, ErrNoViableBump
}

// Verify re-derives the address from seeds and the stored bump and reports
// whether it equals want.
func Verify(want types.Pubkey, seeds [][]byte, bump uint8, programID types.Pubkey) bool {
	withBump := make([][]byte, 0, len(seeds)+1)
	withBump = append(withBump, seeds...)
	withBump = append(withBump, []byte{bump})

	got, err := CreateProgramAddress(withBump, programID)
	if err != nil {
		return false
	}
	return got == want
}

// IsOnCurve reports whether b decodes to an ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
