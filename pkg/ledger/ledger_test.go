package ledger

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecordBuyCreatesPosition(t *testing.T) {
	s := New(Options{})
	pos, ok := s.RecordBuy("MintA", "AAA", d("2"), d("100"))
	require.True(t, ok)
	assert.Equal(t, "AAA", pos.Ticker)
	assert.Equal(t, "MintA", pos.TokenAddress)
	assert.True(t, pos.CostBasis.Equal(d("0.02")))
	assert.True(t, pos.Quantity.Equal(d("100")))
	assert.Zero(t, pos.PartialSalesCount)
}

func TestRecordBuyIgnoresDustQuantity(t *testing.T) {
	s := New(Options{})

	_, ok := s.RecordBuy("MintA", "AAA", d("1"), d("0.000000000001"))
	assert.False(t, ok)
	_, ok = s.RecordBuy("MintA", "AAA", d("1"), decimal.Zero)
	assert.False(t, ok)
	_, exists := s.Get("MintA")
	assert.False(t, exists, "dust buy must not create a position")

	_, ok = s.RecordBuy("MintA", "AAA", d("1"), d("10"))
	require.True(t, ok)
	_, ok = s.RecordBuy("MintA", "AAA", d("1"), d("-5"))
	assert.False(t, ok)
	pos, _ := s.Get("MintA")
	assert.True(t, pos.Quantity.Equal(d("10")), "dust buy must not change an existing position")
	assert.True(t, pos.CostBasis.Equal(d("0.1")))
}

// Rebuying overwrites the cost basis with the latest buy price rather than
// averaging. Exit ratios for a rebought token are therefore measured against
// the most recent entry.
func TestRecordBuyOverwritesCostBasis(t *testing.T) {
	s := New(Options{})
	s.RecordBuy("MintA", "AAA", d("1"), d("100"))
	pos, ok := s.RecordBuy("MintA", "ignored", d("3"), d("100"))
	require.True(t, ok)

	assert.Equal(t, "AAA", pos.Ticker, "ticker is fixed at first purchase")
	assert.True(t, pos.Quantity.Equal(d("200")))
	assert.True(t, pos.CostBasis.Equal(d("0.03")), "cost basis = latest spent/acquired, got %s", pos.CostBasis)
}

func TestRecordBuyWeightedCostBasis(t *testing.T) {
	s := New(Options{WeightedCostBasis: true})
	s.RecordBuy("MintA", "AAA", d("1"), d("100"))
	pos, _ := s.RecordBuy("MintA", "AAA", d("3"), d("100"))
	assert.True(t, pos.CostBasis.Equal(d("0.02")), "got %s", pos.CostBasis)
}

func TestClosedPositionResumesStaleState(t *testing.T) {
	s := New(Options{})
	s.RecordBuy("MintA", "AAA", d("1"), d("10"))
	s.AdvanceTier("MintA", 2)
	s.RecordSell("MintA", d("10"))

	pos, ok := s.Get("MintA")
	require.True(t, ok, "closed positions stay in the ledger")
	assert.False(t, pos.Open())
	assert.Empty(t, s.ListOpen())
	assert.Len(t, s.All(), 1)

	pos, _ = s.RecordBuy("MintA", "AAA", d("1"), d("5"))
	assert.Equal(t, 2, pos.PartialSalesCount)
	assert.True(t, pos.Quantity.Equal(d("5")))
}

func TestRecordSellFloorsAtZero(t *testing.T) {
	s := New(Options{})
	s.RecordBuy("MintA", "AAA", d("1"), d("10"))

	pos, ok := s.RecordSell("MintA", d("4"))
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(d("6")))
	assert.True(t, pos.CostBasis.Equal(d("0.1")), "sell must not alter cost basis")

	pos, _ = s.RecordSell("MintA", d("100"))
	assert.True(t, pos.Quantity.IsZero())

	_, ok = s.RecordSell("Unknown", d("1"))
	assert.False(t, ok)
}

func TestQuantityNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := New(Options{})
	for i := 0; i < 500; i++ {
		amt := decimal.NewFromFloat(rng.Float64() * 50)
		if rng.Intn(2) == 0 {
			s.RecordBuy("MintA", "AAA", d("1"), amt)
		} else {
			s.RecordSell("MintA", amt)
		}
		if pos, ok := s.Get("MintA"); ok {
			require.False(t, pos.Quantity.IsNegative(), "iteration %d", i)
		}
	}
}

func TestAdvanceTierIsMonotonicAndBounded(t *testing.T) {
	s := New(Options{})
	s.RecordBuy("MintA", "AAA", d("1"), d("10"))

	pos, _ := s.AdvanceTier("MintA", 2)
	assert.Equal(t, 2, pos.PartialSalesCount)
	pos, _ = s.AdvanceTier("MintA", 1)
	assert.Equal(t, 2, pos.PartialSalesCount)
	pos, _ = s.AdvanceTier("MintA", 9)
	assert.Equal(t, MaxPartialSales, pos.PartialSalesCount)
}

func TestListOpenOrderedByAddress(t *testing.T) {
	s := New(Options{})
	s.RecordBuy("MintC", "CCC", d("1"), d("1"))
	s.RecordBuy("MintA", "AAA", d("1"), d("1"))
	s.RecordBuy("MintB", "BBB", d("1"), d("1"))
	s.RecordSell("MintB", d("1"))

	open := s.ListOpen()
	require.Len(t, open, 2)
	assert.Equal(t, "MintA", open[0].TokenAddress)
	assert.Equal(t, "MintC", open[1].TokenAddress)
}

func TestGetReturnsCopy(t *testing.T) {
	s := New(Options{})
	s.RecordBuy("MintA", "AAA", d("1"), d("10"))
	pos, _ := s.Get("MintA")
	pos.Quantity = d("999")

	again, _ := s.Get("MintA")
	assert.True(t, again.Quantity.Equal(d("10")))
}
