package oracle

import (
	"errors"
	"fmt"

	"pricefeed.mini/pfo/internal/address"
	"pricefeed.mini/pfo/internal/types"
)

const (
	// DefaultProgramID is the deployed program identity.
	DefaultProgramID = "EUeWpzuAwmY13VNbVumpTJVZwmoUkrf1cujqKVGr7rRE"
	// DefaultSeed is the fixed label of the single price record.
	DefaultSeed = "price_feed_v1"
	// MaxDecimals keeps 10^decimals within a u64.
	MaxDecimals = 19
)

// Config carries the process-wide constants every operation derives
// addresses from.
type Config struct {
	ProgramID types.Pubkey
	Seed      []byte
}

// DefaultConfig returns the deployed program id and seed.
func DefaultConfig() Config {
	return Config{
		ProgramID: types.MustParsePubkey(DefaultProgramID),
		Seed:      []byte(DefaultSeed),
	}
}

// Validate checks that the configuration can derive an address.
func (c Config) Validate() error {
	if c.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if len(c.Seed) == 0 {
		return errors.New("seed is required")
	}
	if len(c.Seed) > address.MaxSeedLength {
		return fmt.Errorf("seed is %d bytes, maximum is %d", len(c.Seed), address.MaxSeedLength)
	}
	return nil
}

func (c Config) seeds() [][]byte {
	return [][]byte{c.Seed}
}
