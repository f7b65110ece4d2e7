package oracle

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"pricefeed.mini/pfo/internal/account"
	"pricefeed.mini/pfo/internal/types"
)

// ProgramDataPrefix marks the program log line that carries an encoded event.
const ProgramDataPrefix = "Program data: "

var ErrUnknownEvent = errors.New("unknown event discriminator")

// Event is a notification emitted by an operation.
type Event interface {
	EventName() string
	// Encode returns the type tag followed by the little-endian fields.
	Encode() []byte
	// Attributes lists the fields as strings, in declaration order.
	Attributes() [][2]string
}

var (
	oracleInitializedTag = account.Discriminator("event", "OracleInitialized")
	priceChangedTag      = account.Discriminator("event", "PriceChanged")
	priceInfoTag         = account.Discriminator("event", "PriceInfo")
)

// OracleInitialized is emitted once, when the record is created.
type OracleInitialized struct {
	Authority types.Pubkey `json:"authority"`
	Price     uint64       `json:"price"`
	Decimals  uint8        `json:"decimals"`
}

func (OracleInitialized) EventName() string { return "OracleInitialized" }

func (e OracleInitialized) Encode() []byte {
	buf := make([]byte, 0, account.DiscriminatorLength+types.PubkeyLength+9)
	buf = append(buf, oracleInitializedTag[:]...)
	buf = append(buf, e.Authority[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, e.Price)
	return append(buf, e.Decimals)
}

func (e OracleInitialized) Attributes() [][2]string {
	return [][2]string{
		{"authority", e.Authority.String()},
		{"price", strconv.FormatUint(e.Price, 10)},
		{"decimals", strconv.Itoa(int(e.Decimals))},
	}
}

// PriceChanged is emitted by every successful update.
type PriceChanged struct {
	Price    uint64       `json:"price"`
	Decimals uint8        `json:"decimals"`
	Updater  types.Pubkey `json:"updater"`
}

func (PriceChanged) EventName() string { return "PriceChanged" }

func (e PriceChanged) Encode() []byte {
	buf := make([]byte, 0, account.DiscriminatorLength+9+types.PubkeyLength)
	buf = append(buf, priceChangedTag[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, e.Price)
	buf = append(buf, e.Decimals)
	return append(buf, e.Updater[:]...)
}

func (e PriceChanged) Attributes() [][2]string {
	return [][2]string{
		{"price", strconv.FormatUint(e.Price, 10)},
		{"decimals", strconv.Itoa(int(e.Decimals))},
		{"updater", e.Updater.String()},
	}
}

// PriceInfo is emitted by get_price.
type PriceInfo struct {
	Price     uint64       `json:"price"`
	Decimals  uint8        `json:"decimals"`
	Authority types.Pubkey `json:"authority"`
}

func (PriceInfo) EventName() string { return "PriceInfo" }

func (e PriceInfo) Encode() []byte {
	buf := make([]byte, 0, account.DiscriminatorLength+9+types.PubkeyLength)
	buf = append(buf, priceInfoTag[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, e.Price)
	buf = append(buf, e.Decimals)
	return append(buf, e.Authority[:]...)
}

func (e PriceInfo) Attributes() [][2]string {
	return [][2]string{
		{"price", strconv.FormatUint(e.Price, 10)},
		{"decimals", strconv.Itoa(int(e.Decimals))},
		{"authority", e.Authority.String()},
	}
}

// eventBodyLen is the same for all three events: a key, a u64 and a u8.
const eventBodyLen = types.PubkeyLength + 8 + 1

// DecodeEvent parses an encoded event.
func DecodeEvent(data []byte) (Event, error) {
	if len(data) < account.DiscriminatorLength+eventBodyLen {
		return nil, fmt.Errorf("event data too short: %d bytes", len(data))
	}
	var tag [account.DiscriminatorLength]byte
	copy(tag[:], data)
	body := data[account.DiscriminatorLength:]

	switch tag {
	case oracleInitializedTag:
		var e OracleInitialized
		copy(e.Authority[:], body[:32])
		e.Price = binary.LittleEndian.Uint64(body[32:40])
		e.Decimals = body[40]
		return e, nil
	case priceChangedTag:
		var e PriceChanged
		e.Price = binary.LittleEndian.Uint64(body[:8])
		e.Decimals = body[8]
		copy(e.Updater[:], body[9:41])
		return e, nil
	case priceInfoTag:
		var e PriceInfo
		e.Price = binary.LittleEndian.Uint64(body[:8])
		e.Decimals = body[8]
		copy(e.Authority[:], body[9:41])
		return e, nil
	default:
		return nil, ErrUnknownEvent
	}
}

// EventLogLine renders an event as a "Program data:" log line.
func EventLogLine(e Event) string {
	return ProgramDataPrefix + base64.StdEncoding.EncodeToString(e.Encode())
}

// ParseEventLogLine is the inverse of EventLogLine.
func ParseEventLogLine(line string) (Event, error) {
	if len(line) <= len(ProgramDataPrefix) || line[:len(ProgramDataPrefix)] != ProgramDataPrefix {
		return nil, fmt.Errorf("not a program data line: %q", line)
	}
	data, err := base64.StdEncoding.DecodeString(line[len(ProgramDataPrefix):])
	if err != nil {
		return nil, fmt.Errorf("decode program data: %w", err)
	}
	return DecodeEvent(data)
}
