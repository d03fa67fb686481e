package backtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Feeder yields sequential token prices in SOL.
type Feeder interface {
	Next(ctx context.Context) (decimal.Decimal, bool, error)
}

// PriceFeeder replays a static price series.
type PriceFeeder struct {
	prices []decimal.Decimal
	idx    int
}

func NewPriceFeeder(prices ...decimal.Decimal) *PriceFeeder {
	return &PriceFeeder{prices: prices}
}

func (f *PriceFeeder) Next(ctx context.Context) (decimal.Decimal, bool, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, false, err
	}
	if f.idx >= len(f.prices) {
		return decimal.Zero, false, nil
	}
	px := f.prices[f.idx]
	f.idx++
	return px, true, nil
}

// NewCSVFeederFromFile reads a CSV price file. See NewCSVFeeder.
func NewCSVFeederFromFile(path string) (*PriceFeeder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewCSVFeeder(f)
}

// NewCSVFeeder reads rows whose last column is a price in SOL. A
// non-numeric first row is treated as a header.
func NewCSVFeeder(r io.Reader) (*PriceFeeder, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("backtest: read csv: %w", err)
	}
	var prices []decimal.Decimal
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		px, err := decimal.NewFromString(strings.TrimSpace(rec[len(rec)-1]))
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("backtest: row %d: invalid price %q", i+1, rec[len(rec)-1])
		}
		prices = append(prices, px)
	}
	return NewPriceFeeder(prices...), nil
}
