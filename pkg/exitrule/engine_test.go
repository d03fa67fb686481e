package exitrule

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoic-trader/pkg/ledger"
)

type fakePrices map[string]decimal.Decimal

func (f fakePrices) PriceInSOL(_ context.Context, mint string) (decimal.Decimal, error) {
	p, ok := f[mint]
	if !ok {
		return decimal.Zero, errors.New("no route")
	}
	return p, nil
}

type fakeSeller struct {
	requests []SaleRequest
	failAt   int
	// sold overrides the quantity reported on the receipt.
	sold decimal.Decimal
}

func (f *fakeSeller) Sell(_ context.Context, req SaleRequest) (*SaleReceipt, error) {
	f.requests = append(f.requests, req)
	if f.failAt > 0 && len(f.requests) == f.failAt {
		return nil, errors.New("broadcast rejected")
	}
	return &SaleReceipt{Signature: "sig", Quantity: f.sold}, nil
}

func newBook(t *testing.T) *ledger.Store {
	t.Helper()
	book := ledger.New(ledger.Options{})
	_, ok := book.RecordBuy("MintA", "AAA", d("100"), d("100"))
	require.True(t, ok)
	return book
}

func TestSweepCumulativeUpdatesLedger(t *testing.T) {
	book := newBook(t)
	seller := &fakeSeller{}
	engine, err := NewEngine(DefaultRules(), book, fakePrices{"MintA": d("9")}, seller)
	require.NoError(t, err)

	report := engine.Sweep(context.Background())
	assert.Equal(t, 1, report.Evaluated)
	require.Len(t, report.Sales, 3)
	require.Len(t, seller.requests, 3)
	assert.True(t, seller.requests[1].Quantity.Equal(d("12.5")))

	pos, _ := book.Get("MintA")
	assert.True(t, pos.Quantity.Equal(d("31.875")), "got %s", pos.Quantity)
	assert.Equal(t, 3, pos.PartialSalesCount)

	// The same price on the next sweep sells nothing more.
	report = engine.Sweep(context.Background())
	assert.Empty(t, report.Sales)
}

func TestSweepStopLossClosesPosition(t *testing.T) {
	book := newBook(t)
	book.AdvanceTier("MintA", 3)
	engine, err := NewEngine(DefaultRules(), book, fakePrices{"MintA": d("0.4")}, &fakeSeller{})
	require.NoError(t, err)

	report := engine.Sweep(context.Background())
	require.Len(t, report.Sales, 1)
	assert.Equal(t, ReasonStopLoss, report.Sales[0].Reason)
	assert.True(t, report.Sales[0].Quantity.Equal(d("100")))

	pos, ok := book.Get("MintA")
	require.True(t, ok)
	assert.True(t, pos.Quantity.IsZero())
	assert.Empty(t, book.ListOpen())
}

func TestSweepRecordsQuantityActuallySold(t *testing.T) {
	book := newBook(t)
	book.AdvanceTier("MintA", 3)
	engine, err := NewEngine(DefaultRules(), book, fakePrices{"MintA": d("0.4")}, &fakeSeller{sold: d("99.999")})
	require.NoError(t, err)

	report := engine.Sweep(context.Background())
	require.Len(t, report.Sales, 1)
	assert.True(t, report.Sales[0].Quantity.Equal(d("99.999")))

	pos, ok := book.Get("MintA")
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(d("0.001")), "ledger keeps what the wallet still holds, got %s", pos.Quantity)
}

func TestSweepSkipsUnpricedPosition(t *testing.T) {
	book := newBook(t)
	seller := &fakeSeller{}
	engine, err := NewEngine(DefaultRules(), book, fakePrices{}, seller)
	require.NoError(t, err)

	report := engine.Sweep(context.Background())
	assert.Equal(t, []string{"MintA"}, report.Skipped)
	assert.Empty(t, seller.requests)
	pos, _ := book.Get("MintA")
	assert.True(t, pos.Quantity.Equal(d("100")))
}

func TestSweepFailedSaleLeavesStateForNextSweep(t *testing.T) {
	book := newBook(t)
	seller := &fakeSeller{failAt: 2}
	engine, err := NewEngine(DefaultRules(), book, fakePrices{"MintA": d("9")}, seller)
	require.NoError(t, err)

	report := engine.Sweep(context.Background())
	require.Len(t, report.Sales, 1)
	require.Len(t, report.Failures, 1)
	assert.Len(t, seller.requests, 2, "later tiers are not attempted after a failure")

	pos, _ := book.Get("MintA")
	assert.True(t, pos.Quantity.Equal(d("50")))
	assert.Equal(t, 1, pos.PartialSalesCount)
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	_, err := NewEngine(DefaultRules(), nil, fakePrices{}, &fakeSeller{})
	assert.Error(t, err)
	_, err = NewEngine(DefaultRules(), ledger.New(ledger.Options{}), nil, &fakeSeller{})
	assert.Error(t, err)
	_, err = NewEngine(DefaultRules(), ledger.New(ledger.Options{}), fakePrices{}, nil)
	assert.Error(t, err)
}
