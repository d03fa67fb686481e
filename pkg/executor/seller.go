package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/amount"
	"stoic-trader/pkg/announce"
	"stoic-trader/pkg/exitrule"
)

// Seller liquidates positions into SOL for the exit rule engine.
type Seller struct {
	swaps    Swapper
	decimals amount.DecimalsSource
	notify   Notifier
	timeout  time.Duration
}

// NewSeller wires a Seller. notify may be nil. A positive tradeTimeout bounds
// the quote and broadcast of each sale.
func NewSeller(swaps Swapper, decimals amount.DecimalsSource, notify Notifier, tradeTimeout time.Duration) (*Seller, error) {
	if swaps == nil || decimals == nil {
		return nil, errors.New("executor: seller needs a swapper and a decimals source")
	}
	return &Seller{swaps: swaps, decimals: decimals, notify: notify, timeout: tradeTimeout}, nil
}

// Sell swaps req.Quantity of the position's token into SOL. The quantity is
// floored to whole base units and the receipt carries what was actually sold.
func (s *Seller) Sell(ctx context.Context, req exitrule.SaleRequest) (*exitrule.SaleReceipt, error) {
	mint := req.Position.TokenAddress
	dec, err := amount.NewNormalizer(s.decimals).Decimals(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("executor: normalize sale: %w", err)
	}
	base := amount.ToBase(req.Quantity, dec).Floor()
	if !base.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s", ErrNonPositiveAmount, req.Quantity, req.Position.Ticker)
	}
	sold := amount.FromBase(base, dec)

	tradeCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		tradeCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	quote, err := s.swaps.Quote(tradeCtx, mint, amount.SOLMint, base)
	if err != nil {
		return nil, fmt.Errorf("executor: quote sale: %w", err)
	}
	res, err := s.swaps.Execute(tradeCtx, quote)
	if err != nil {
		return nil, err
	}

	solOut := amount.FromBase(quote.OutAmountBase(), amount.SOLDecimals)
	profit := req.Price.Sub(req.Position.CostBasis).Mul(sold)
	logx.WithContext(ctx).Infof("executor: sold %s %s (%s) for ~%s SOL, pnl ~%s SOL, sig=%s",
		sold, req.Position.Ticker, req.Reason, solOut.StringFixed(6), profit.StringFixed(6), res.Signature)

	if s.notify != nil {
		s.notify.AnnounceSell(ctx, announce.SellEvent{
			Ticker:      req.Position.Ticker,
			Address:     mint,
			TokensSold:  sold,
			SOLReceived: solOut,
			ProfitSOL:   profit,
			Reason:      string(req.Reason),
			ExplorerURL: res.ExplorerURL,
		})
	}
	return &exitrule.SaleReceipt{
		Signature:   res.Signature,
		Quantity:    sold,
		SOLOut:      solOut,
		ExplorerURL: res.ExplorerURL,
	}, nil
}
