// Package amount converts between human token amounts and on-chain base units.
package amount

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	// SOLMint is the wrapped SOL mint used as the base currency on both swap sides.
	SOLMint = "So11111111111111111111111111111111111111112"
	// SOLDecimals is the lamport precision of SOL.
	SOLDecimals = 9
)

// DecimalsSource reports the decimal precision of a token mint.
type DecimalsSource interface {
	TokenDecimals(ctx context.Context, mint string) (uint8, error)
}

// IsSOL reports whether mint is the base currency.
func IsSOL(mint string) bool {
	return strings.TrimSpace(mint) == SOLMint
}

// ToBase converts a human amount to base units, rounding toward zero.
func ToBase(human decimal.Decimal, decimals int32) decimal.Decimal {
	return human.Shift(decimals).Truncate(0)
}

// FromBase converts base units to a human amount.
func FromBase(base decimal.Decimal, decimals int32) decimal.Decimal {
	return base.Shift(-decimals)
}

// Lamports converts a SOL amount into lamports.
func Lamports(sol decimal.Decimal) decimal.Decimal {
	return ToBase(sol, SOLDecimals)
}

// SOL converts lamports into SOL.
func SOL(lamports uint64) decimal.Decimal {
	return FromBase(decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0), SOLDecimals)
}

// Normalizer resolves decimals through a DecimalsSource and caches them for
// its own lifetime. Build one per trading cycle.
type Normalizer struct {
	src DecimalsSource

	mu    sync.Mutex
	cache map[string]int32
}

// NewNormalizer constructs a Normalizer backed by src.
func NewNormalizer(src DecimalsSource) *Normalizer {
	return &Normalizer{src: src, cache: map[string]int32{SOLMint: SOLDecimals}}
}

// Decimals returns the decimal count for mint.
func (n *Normalizer) Decimals(ctx context.Context, mint string) (int32, error) {
	mint = strings.TrimSpace(mint)
	if mint == "" {
		return 0, fmt.Errorf("amount: mint is required")
	}

	n.mu.Lock()
	if dec, ok := n.cache[mint]; ok {
		n.mu.Unlock()
		return dec, nil
	}
	n.mu.Unlock()

	if n.src == nil {
		return 0, fmt.Errorf("amount: no decimals source for %s", mint)
	}
	raw, err := n.src.TokenDecimals(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("amount: decimals for %s: %w", mint, err)
	}

	n.mu.Lock()
	n.cache[mint] = int32(raw)
	n.mu.Unlock()
	return int32(raw), nil
}

// ToBaseUnits converts human units of mint to base units.
func (n *Normalizer) ToBaseUnits(ctx context.Context, mint string, human decimal.Decimal) (decimal.Decimal, error) {
	dec, err := n.Decimals(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	return ToBase(human, dec), nil
}

// FromBaseUnits converts base units of mint to human units.
func (n *Normalizer) FromBaseUnits(ctx context.Context, mint string, base decimal.Decimal) (decimal.Decimal, error) {
	dec, err := n.Decimals(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	return FromBase(base, dec), nil
}
