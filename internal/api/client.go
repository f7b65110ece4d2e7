package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pricefeed.mini/pfo/internal/ledger"
	"pricefeed.mini/pfo/internal/logger"
	"pricefeed.mini/pfo/internal/oracle"
	"pricefeed.mini/pfo/internal/types"
)

// Client calls a pfo node's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL, e.g. "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a non-2xx response that did not carry a receipt.
type Error struct {
	Status    int
	Message   string
	Code      uint32
	Codespace string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		// Rejected transactions come back as receipts.
		if r, ok := out.(*types.Receipt); ok && json.Unmarshal(data, r) == nil && r.Code != 0 {
			return nil
		}
		var apiErr struct {
			Error     string `json:"error"`
			Code      uint32 `json:"code"`
			Codespace string `json:"codespace"`
		}
		json.Unmarshal(data, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: apiErr.Error, Code: apiErr.Code, Codespace: apiErr.Codespace}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Submit sends a signed transaction and returns its receipt. Rejections by
// the program are reported in the receipt code, not as an error.
func (c *Client) Submit(ctx context.Context, stx *types.SignedTransaction) (*types.Receipt, error) {
	body, err := json.Marshal(stx)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}
	var receipt types.Receipt
	if err := c.do(ctx, http.MethodPost, "/api/tx", body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) Address(ctx context.Context) (*types.AddressInfo, error) {
	var info types.AddressInfo
	if err := c.do(ctx, http.MethodGet, "/api/address", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Price reads the record at account, or at the derived address when
// account is zero.
func (c *Client) Price(ctx context.Context, account types.Pubkey) (*types.PriceView, error) {
	path := "/api/price"
	if !account.IsZero() {
		path += "?account=" + url.QueryEscape(account.String())
	}
	var view types.PriceView
	if err := c.do(ctx, http.MethodGet, path, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) Account(ctx context.Context, addr types.Pubkey) (*ledger.Account, error) {
	path := "/api/account"
	if !addr.IsZero() {
		path += "?address=" + url.QueryEscape(addr.String())
	}
	var acct ledger.Account
	if err := c.do(ctx, http.MethodGet, path, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *Client) Logs(ctx context.Context, limit int) ([]logger.Message, error) {
	var msgs []logger.Message
	if err := c.do(ctx, http.MethodGet, "/api/logs?limit="+strconv.Itoa(limit), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// StreamMessage is one notification received from /api/events.
type StreamMessage struct {
	TxID      string          `json:"tx_id"`
	Height    int64           `json:"height"`
	Name      string          `json:"name"`
	Event     json.RawMessage `json:"event"`
	Data      string          `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode returns the typed event carried in Data.
func (m StreamMessage) Decode() (oracle.Event, error) {
	raw, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("decode event data: %w", err)
	}
	return oracle.DecodeEvent(raw)
}

// Watch streams notifications to fn until ctx ends, the connection drops
// or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(StreamMessage) error) error {
	u, err := url.Parse(c.baseURL + "/api/events")
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}
