package feeder

import (
	"context"
	"crypto/ed25519"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pricefeed.mini/pfo/internal/identity"
	"pricefeed.mini/pfo/internal/types"
)

func TestToMagnitude(t *testing.T) {
	tests := []struct {
		value    string
		decimals uint8
		want     uint64
		wantErr  error
	}{
		{value: "21.97", decimals: 2, want: 2197},
		{value: "25", decimals: 2, want: 2500},
		{value: "21.975", decimals: 2, want: 2198},
		{value: "0.000001", decimals: 6, want: 1},
		{value: "18446744073709551615", decimals: 0, want: 18446744073709551615},
		{value: "18446744073709551616", decimals: 0, wantErr: ErrPriceOverflow},
		{value: "-1", decimals: 0, wantErr: ErrNegativePrice},
	}
	for _, tt := range tests {
		got, err := ToMagnitude(decimal.RequireFromString(tt.value), tt.decimals)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, tt.value)
			continue
		}
		require.NoError(t, err, tt.value)
		assert.Equal(t, tt.want, got, tt.value)
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/number":
			w.Write([]byte(`{"data": {"price": 21.97}}`))
		case "/string":
			w.Write([]byte(`{"price": "3050.125"}`))
		case "/bool":
			w.Write([]byte(`{"price": true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	v, err := NewHTTPSource(srv.URL+"/number", "data.price").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "21.97", v.String())

	v, err = NewHTTPSource(srv.URL+"/string", "").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3050.125", v.String())

	_, err = NewHTTPSource(srv.URL+"/bool", "price").Fetch(ctx)
	assert.Error(t, err)

	_, err = NewHTTPSource(srv.URL+"/number", "data.missing").Fetch(ctx)
	assert.Error(t, err)

	_, err = NewHTTPSource(srv.URL+"/gone", "price").Fetch(ctx)
	assert.Error(t, err)
}

type fixedSource struct {
	value decimal.Decimal
	err   error
}

func (s fixedSource) Fetch(context.Context) (decimal.Decimal, error) { return s.value, s.err }

type fakeNode struct {
	view      types.PriceView
	submitted []*types.SignedTransaction
	code      uint32
}

func (n *fakeNode) Price(context.Context, types.Pubkey) (*types.PriceView, error) {
	v := n.view
	return &v, nil
}

func (n *fakeNode) Submit(_ context.Context, stx *types.SignedTransaction) (*types.Receipt, error) {
	n.submitted = append(n.submitted, stx)
	return &types.Receipt{Code: n.code, Height: 7}, nil
}

func newSigner(t *testing.T) *identity.Identity {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return identity.NewIdentity(priv)
}

func TestPollOnceSubmitsOnChange(t *testing.T) {
	signer := newSigner(t)
	node := &fakeNode{view: types.PriceView{Address: types.Pubkey{9}, Price: 2197, Decimals: 2}}
	p := NewPoller(0, fixedSource{value: decimal.RequireFromString("25")}, node, signer, zaptest.NewLogger(t))

	receipt, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Len(t, node.submitted, 1)

	stx := node.submitted[0]
	assert.True(t, stx.Verify())
	signerKey, err := stx.Signer()
	require.NoError(t, err)
	assert.Equal(t, signer.Pubkey(), signerKey)

	tx, err := stx.GetTransaction()
	require.NoError(t, err)
	payload, err := tx.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, types.UpdatePricePayload{PriceAccount: types.Pubkey{9}, NewPrice: 2500}, payload)
}

func TestPollOnceSkipsUnchanged(t *testing.T) {
	node := &fakeNode{view: types.PriceView{Price: 2197, Decimals: 2}}
	p := NewPoller(0, fixedSource{value: decimal.RequireFromString("21.97")}, node, newSigner(t), nil)

	receipt, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, receipt)
	assert.Empty(t, node.submitted)
}

func TestPollOnceErrors(t *testing.T) {
	boom := errors.New("source down")
	node := &fakeNode{view: types.PriceView{Price: 1, Decimals: 0}}
	p := NewPoller(0, fixedSource{err: boom}, node, newSigner(t), nil)
	_, err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, boom)

	node.code = 6000
	p = NewPoller(0, fixedSource{value: decimal.NewFromInt(2)}, node, newSigner(t), nil)
	receipt, err := p.PollOnce(context.Background())
	assert.Error(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, uint32(6000), receipt.Code)
}
