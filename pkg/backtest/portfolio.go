package backtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"stoic-trader/pkg/exitrule"
)

// paperBook is both the price source and the seller for a replay. Sales fill
// at the current price less slippage.
type paperBook struct {
	mu       sync.Mutex
	price    decimal.Decimal
	slippage decimal.Decimal
	cash     decimal.Decimal
	seq      int
}

func newPaperBook(slippageBps int) *paperBook {
	return &paperBook{slippage: decimal.NewFromInt(int64(slippageBps)).Div(decimal.NewFromInt(10_000))}
}

func (b *paperBook) setPrice(px decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.price = px
}

func (b *paperBook) PriceInSOL(_ context.Context, _ string) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.price, nil
}

func (b *paperBook) Sell(_ context.Context, req exitrule.SaleRequest) (*exitrule.SaleReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := req.Quantity.Mul(b.price).Mul(decimal.NewFromInt(1).Sub(b.slippage))
	b.cash = b.cash.Add(out)
	b.seq++
	return &exitrule.SaleReceipt{Signature: fmt.Sprintf("replay-%d", b.seq), SOLOut: out}, nil
}

func (b *paperBook) proceeds() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash
}
