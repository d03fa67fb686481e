// Package pricing values tokens in SOL by asking the quote service what one
// whole token would swap for.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"stoic-trader/pkg/amount"
	"stoic-trader/pkg/jupiter"
)

// ErrNoPrice is returned when the quote yields no output.
var ErrNoPrice = errors.New("pricing: quote returned no output")

// Quoter is the subset of the quote client used for pricing.
type Quoter interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
}

// Source implements exitrule.PriceSource on top of a Quoter.
type Source struct {
	quotes      Quoter
	decimals    amount.DecimalsSource
	slippageBps int
}

// NewSource builds a Source. decimals resolves mint precision; slippageBps is
// passed through to the quote.
func NewSource(quotes Quoter, decimals amount.DecimalsSource, slippageBps int) *Source {
	return &Source{quotes: quotes, decimals: decimals, slippageBps: slippageBps}
}

// PriceInSOL returns the SOL value of one whole token of mint.
func (s *Source) PriceInSOL(ctx context.Context, mint string) (decimal.Decimal, error) {
	if amount.IsSOL(mint) {
		return decimal.NewFromInt(1), nil
	}
	norm := amount.NewNormalizer(s.decimals)
	one, err := norm.ToBaseUnits(ctx, mint, decimal.NewFromInt(1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: %w", err)
	}
	quote, err := s.quotes.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   mint,
		OutputMint:  amount.SOLMint,
		Amount:      one,
		SlippageBps: s.slippageBps,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: %s: %w", mint, err)
	}
	out := quote.OutAmountBase()
	if !out.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w for %s", ErrNoPrice, mint)
	}
	return amount.FromBase(out, amount.SOLDecimals), nil
}
