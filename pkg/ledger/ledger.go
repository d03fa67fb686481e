// Package ledger keeps the in-memory book of positions opened by the trader.
package ledger

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// MaxPartialSales bounds Position.PartialSalesCount.
const MaxPartialSales = 4

// Epsilon is the smallest acquired quantity RecordBuy accepts.
var Epsilon = decimal.New(1, -12)

// Position is one token ever bought by this process. A position with zero
// quantity is closed but stays in the ledger.
type Position struct {
	Ticker            string          `json:"ticker"`
	TokenAddress      string          `json:"token_address"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	Quantity          decimal.Decimal `json:"quantity"`
	PartialSalesCount int             `json:"partial_sales_count"`
}

// Open reports whether the position still holds tokens.
func (p Position) Open() bool {
	return p.Quantity.IsPositive()
}

// Options tunes cost basis bookkeeping.
type Options struct {
	// WeightedCostBasis averages the cost basis across buys instead of
	// overwriting it with the latest buy price.
	WeightedCostBasis bool
}

// Store is a concurrency-safe position book keyed by token address.
type Store struct {
	mu        sync.RWMutex
	opts      Options
	positions map[string]*Position
}

// New constructs an empty ledger.
func New(opts Options) *Store {
	return &Store{
		opts:      opts,
		positions: make(map[string]*Position),
	}
}

func key(address string) string {
	return strings.TrimSpace(address)
}

// RecordBuy books acquired tokens bought for spent base currency. It returns
// false and leaves the ledger untouched when acquired is not above Epsilon.
// The ticker of an existing position is never changed.
func (s *Store) RecordBuy(address, ticker string, spent, acquired decimal.Decimal) (Position, bool) {
	k := key(address)
	if k == "" || acquired.LessThanOrEqual(Epsilon) {
		return Position{}, false
	}
	basis := spent.Div(acquired)

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[k]
	if !ok {
		pos = &Position{
			Ticker:       ticker,
			TokenAddress: k,
			CostBasis:    basis,
			Quantity:     acquired,
		}
		s.positions[k] = pos
		return *pos, true
	}

	if s.opts.WeightedCostBasis && pos.Quantity.IsPositive() {
		held := pos.CostBasis.Mul(pos.Quantity)
		pos.CostBasis = held.Add(spent).Div(pos.Quantity.Add(acquired))
	} else {
		pos.CostBasis = basis
	}
	pos.Quantity = pos.Quantity.Add(acquired)
	return *pos, true
}

// RecordSell removes sold tokens from a position, flooring the quantity at zero.
func (s *Store) RecordSell(address string, sold decimal.Decimal) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[key(address)]
	if !ok {
		return Position{}, false
	}
	if sold.IsPositive() {
		pos.Quantity = pos.Quantity.Sub(sold)
		if pos.Quantity.IsNegative() {
			pos.Quantity = decimal.Zero
		}
	}
	return *pos, true
}

// AdvanceTier raises PartialSalesCount to count. Lower values are ignored.
func (s *Store) AdvanceTier(address string, count int) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[key(address)]
	if !ok {
		return Position{}, false
	}
	if count > MaxPartialSales {
		count = MaxPartialSales
	}
	if count > pos.PartialSalesCount {
		pos.PartialSalesCount = count
	}
	return *pos, true
}

// Get returns a copy of the position for address.
func (s *Store) Get(address string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[key(address)]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// ListOpen returns copies of every position with a positive quantity, ordered by address.
func (s *Store) ListOpen() []Position {
	return s.list(true)
}

// All returns copies of every position including closed ones.
func (s *Store) All() []Position {
	return s.list(false)
}

func (s *Store) list(openOnly bool) []Position {
	s.mu.RLock()
	out := make([]Position, 0, len(s.positions))
	for _, pos := range s.positions {
		if openOnly && !pos.Open() {
			continue
		}
		out = append(out, *pos)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TokenAddress < out[j].TokenAddress })
	return out
}
