package exitrule

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/ledger"
)

// PriceSource quotes the current price of a token in the base currency.
type PriceSource interface {
	PriceInSOL(ctx context.Context, mint string) (decimal.Decimal, error)
}

// Seller liquidates qty tokens of pos. Implementations broadcast the swap and
// return once the transaction was accepted by the network.
type Seller interface {
	Sell(ctx context.Context, req SaleRequest) (*SaleReceipt, error)
}

// SaleRequest describes one liquidation.
type SaleRequest struct {
	Position ledger.Position
	Quantity decimal.Decimal
	Reason   Reason
	Price    decimal.Decimal
	Ratio    decimal.Decimal
}

// SaleReceipt is returned by a Seller after a successful broadcast. Quantity
// is the amount actually sold; zero means the requested amount.
type SaleReceipt struct {
	Signature   string
	Quantity    decimal.Decimal
	SOLOut      decimal.Decimal
	ExplorerURL string
}

// Sale records one executed liquidation.
type Sale struct {
	TokenAddress string
	Ticker       string
	Reason       Reason
	Ratio        decimal.Decimal
	Quantity     decimal.Decimal
	Remaining    decimal.Decimal
	TierCount    int
	Receipt      SaleReceipt
}

// SweepReport summarises one pass over the ledger.
type SweepReport struct {
	Evaluated int
	Skipped   []string
	Sales     []Sale
	Failures  []error
}

// Engine runs the exit schedule over a ledger.
type Engine struct {
	rules  Rules
	book   *ledger.Store
	prices PriceSource
	seller Seller
}

// NewEngine wires an Engine. rules must already be validated.
func NewEngine(rules Rules, book *ledger.Store, prices PriceSource, seller Seller) (*Engine, error) {
	if book == nil {
		return nil, fmt.Errorf("exitrule: ledger is required")
	}
	if prices == nil {
		return nil, fmt.Errorf("exitrule: price source is required")
	}
	if seller == nil {
		return nil, fmt.Errorf("exitrule: seller is required")
	}
	return &Engine{rules: rules, book: book, prices: prices, seller: seller}, nil
}

// Rules returns the schedule in use.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Sweep evaluates every open position once. Failures are per position and
// never abort the sweep. Ledger state only changes after a successful sale.
func (e *Engine) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	for _, pos := range e.book.ListOpen() {
		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures, err)
			return report
		}
		report.Evaluated++

		price, err := e.prices.PriceInSOL(ctx, pos.TokenAddress)
		if err != nil || !price.IsPositive() {
			logx.WithContext(ctx).Infof("exit sweep: no price for %s (%s), skipping: %v", pos.Ticker, pos.TokenAddress, err)
			report.Skipped = append(report.Skipped, pos.TokenAddress)
			continue
		}
		ratio, ok := Ratio(pos, price)
		if !ok {
			logx.WithContext(ctx).Infof("exit sweep: %s has no usable cost basis, skipping", pos.Ticker)
			report.Skipped = append(report.Skipped, pos.TokenAddress)
			continue
		}
		logx.WithContext(ctx).Infof("exit sweep: %s ratio=%s partial_sales=%d", pos.Ticker, ratio.StringFixed(2), pos.PartialSalesCount)

		for _, step := range e.rules.Evaluate(pos, ratio) {
			sale, err := e.apply(ctx, pos.TokenAddress, step, price, ratio)
			if err != nil {
				logx.WithContext(ctx).Errorf("exit sweep: %s %s failed: %v", pos.Ticker, step.Reason, err)
				report.Failures = append(report.Failures, err)
				break
			}
			if sale == nil {
				break
			}
			report.Sales = append(report.Sales, *sale)
		}
	}
	return report
}

func (e *Engine) apply(ctx context.Context, address string, step Step, price, ratio decimal.Decimal) (*Sale, error) {
	current, ok := e.book.Get(address)
	if !ok || !current.Open() {
		return nil, nil
	}
	qty := current.Quantity.Mul(step.Fraction)
	if !qty.IsPositive() {
		return nil, nil
	}

	receipt, err := e.seller.Sell(ctx, SaleRequest{
		Position: current,
		Quantity: qty,
		Reason:   step.Reason,
		Price:    price,
		Ratio:    ratio,
	})
	if err != nil {
		return nil, fmt.Errorf("sell %s of %s: %w", qty, current.Ticker, err)
	}
	if receipt != nil && receipt.Quantity.IsPositive() {
		qty = receipt.Quantity
	}

	updated, _ := e.book.RecordSell(address, qty)
	if step.Reason == ReasonTakeProfit {
		updated, _ = e.book.AdvanceTier(address, step.TierCount)
	}
	logx.WithContext(ctx).Infof("exit sweep: sold %s %s (%s), remaining %s", qty, current.Ticker, step.Reason, updated.Quantity)

	sale := &Sale{
		TokenAddress: address,
		Ticker:       current.Ticker,
		Reason:       step.Reason,
		Ratio:        ratio,
		Quantity:     qty,
		Remaining:    updated.Quantity,
		TierCount:    updated.PartialSalesCount,
	}
	if receipt != nil {
		sale.Receipt = *receipt
	}
	return sale, nil
}
