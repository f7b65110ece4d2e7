// Package feeder polls an external price source and submits update_price
// transactions when the observed price differs from the stored one.
package feeder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativePrice = errors.New("price is negative")
	ErrPriceOverflow = errors.New("price does not fit in 64 bits")
)

// Source returns the current human-readable price, e.g. 21.97.
type Source interface {
	Fetch(ctx context.Context) (decimal.Decimal, error)
}

// HTTPSource reads a price from a JSON document. Field is a dot-separated
// path to a number or numeric string, e.g. "data.price".
type HTTPSource struct {
	URL    string
	Field  string
	client *http.Client
}

func NewHTTPSource(url, field string) *HTTPSource {
	if field == "" {
		field = "price"
	}
	return &HTTPSource{
		URL:    url,
		Field:  field,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("fetch %s: status %d", s.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, fmt.Errorf("read %s: %w", s.URL, err)
	}
	return extract(body, s.Field)
}

// extract walks field through a JSON document. Numbers are decoded as
// json.Number so no precision is lost on the way to decimal.
func extract(body []byte, field string) (decimal.Decimal, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return decimal.Zero, fmt.Errorf("decode price document: %w", err)
	}

	cur := doc
	for _, key := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return decimal.Zero, fmt.Errorf("field %q: %q is not an object", field, key)
		}
		if cur, ok = obj[key]; !ok {
			return decimal.Zero, fmt.Errorf("field %q: %q not found", field, key)
		}
	}

	switch v := cur.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	default:
		return decimal.Zero, fmt.Errorf("field %q is %T, want number or string", field, cur)
	}
}

// ToMagnitude converts a human price to the stored integer for the given
// number of decimals, rounding half away from zero.
func ToMagnitude(value decimal.Decimal, decimals uint8) (uint64, error) {
	if value.IsNegative() {
		return 0, ErrNegativePrice
	}
	scaled := value.Shift(int32(decimals)).Round(0).BigInt()
	if !scaled.IsUint64() {
		return 0, ErrPriceOverflow
	}
	return scaled.Uint64(), nil
}
