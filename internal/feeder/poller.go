package feeder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pricefeed.mini/pfo/internal/types"
)

// Node is the part of the API client the poller needs.
type Node interface {
	Price(ctx context.Context, account types.Pubkey) (*types.PriceView, error)
	Submit(ctx context.Context, stx *types.SignedTransaction) (*types.Receipt, error)
}

// Poller periodically reads the source and submits update_price, signed by
// the authority key, whenever the stored price differs.
type Poller struct {
	interval time.Duration
	source   Source
	node     Node
	signer   types.Signer
	log      *zap.Logger
}

func NewPoller(interval time.Duration, source Source, node Node, signer types.Signer, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		interval: interval,
		source:   source,
		node:     node,
		signer:   signer,
		log:      log,
	}
}

// Run polls until ctx is done. Poll failures are logged and retried on the
// next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// initial tick immediately
	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	receipt, err := p.PollOnce(ctx)
	switch {
	case err != nil:
		p.log.Warn("price poll failed", zap.Error(err))
	case receipt != nil:
		p.log.Info("price submitted", zap.String("tx_id", receipt.TxID), zap.Int64("height", receipt.Height))
	}
}

// PollOnce compares the source with the stored record and submits an update
// if they differ. It returns a nil receipt when nothing was submitted.
func (p *Poller) PollOnce(ctx context.Context) (*types.Receipt, error) {
	value, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	view, err := p.node.Price(ctx, types.Pubkey{})
	if err != nil {
		return nil, fmt.Errorf("read stored price: %w", err)
	}

	magnitude, err := ToMagnitude(value, view.Decimals)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", value, err)
	}
	if magnitude == view.Price {
		p.log.Debug("price unchanged", zap.Uint64("price", magnitude))
		return nil, nil
	}

	tx, err := types.NewTransaction(types.TxUpdatePrice, types.UpdatePricePayload{
		PriceAccount: view.Address,
		NewPrice:     magnitude,
	})
	if err != nil {
		return nil, err
	}
	stx, err := tx.Sign(p.signer)
	if err != nil {
		return nil, err
	}
	receipt, err := p.node.Submit(ctx, stx)
	if err != nil {
		return nil, err
	}
	if !receipt.OK() {
		return receipt, fmt.Errorf("update_price rejected with code %d: %s", receipt.Code, receipt.Log)
	}
	return receipt, nil
}
