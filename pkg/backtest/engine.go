// Package backtest replays a token price path through the exit schedule to
// show what the sweeps would have sold.
package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"stoic-trader/pkg/exitrule"
	"stoic-trader/pkg/ledger"
)

const replayMint = "replay"

// Engine buys SpendSOL of a token at the first price and sweeps the position
// once per following price.
type Engine struct {
	Feeder Feeder
	Rules  exitrule.Rules
	// SpendSOL defaults to 1.
	SpendSOL    decimal.Decimal
	SlippageBps int

	// Optional: write JSON report to this path
	OutputPath string
}

// Result summarizes a replay.
type Result struct {
	Steps       int               `json:"steps"`
	EntryPrice  decimal.Decimal   `json:"entry_price"`
	Acquired    decimal.Decimal   `json:"acquired"`
	Remaining   decimal.Decimal   `json:"remaining"`
	ProceedsSOL decimal.Decimal   `json:"proceeds_sol"`
	FinalValue  decimal.Decimal   `json:"final_value_sol"`
	PNLSOL      decimal.Decimal   `json:"pnl_sol"`
	MaxDDPct    float64           `json:"max_drawdown_pct"`
	EquityCurve []decimal.Decimal `json:"equity_curve"`
	Sales       []SaleDetail      `json:"sales"`
}

// SaleDetail records one simulated liquidation.
type SaleDetail struct {
	Step      int             `json:"step"`
	Reason    exitrule.Reason `json:"reason"`
	Price     decimal.Decimal `json:"price"`
	Ratio     decimal.Decimal `json:"ratio"`
	Quantity  decimal.Decimal `json:"quantity"`
	SOLOut    decimal.Decimal `json:"sol_out"`
	TierCount int             `json:"tier_count"`
}

func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.Feeder == nil {
		return nil, fmt.Errorf("backtest: feeder is required")
	}
	if err := e.Rules.Validate(); err != nil {
		return nil, err
	}
	spend := e.SpendSOL
	if !spend.IsPositive() {
		spend = decimal.NewFromInt(1)
	}

	entry, ok, err := e.Feeder.Next(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || !entry.IsPositive() {
		return nil, fmt.Errorf("backtest: price series needs a positive entry price")
	}

	book := ledger.New(ledger.Options{})
	paper := newPaperBook(e.SlippageBps)
	engine, err := exitrule.NewEngine(e.Rules, book, paper, paper)
	if err != nil {
		return nil, err
	}
	acquired := spend.Div(entry)
	book.RecordBuy(replayMint, "REPLAY", spend, acquired)

	res := &Result{EntryPrice: entry, Acquired: acquired, EquityCurve: []decimal.Decimal{spend}}
	last := entry
	for {
		px, ok, err := e.Feeder.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		res.Steps++
		last = px
		paper.setPrice(px)

		report := engine.Sweep(ctx)
		if len(report.Failures) > 0 {
			return nil, report.Failures[0]
		}
		for _, s := range report.Sales {
			res.Sales = append(res.Sales, SaleDetail{
				Step:      res.Steps,
				Reason:    s.Reason,
				Price:     px,
				Ratio:     s.Ratio,
				Quantity:  s.Quantity,
				SOLOut:    s.Receipt.SOLOut,
				TierCount: s.TierCount,
			})
		}
		res.EquityCurve = append(res.EquityCurve, equity(book, paper, px))
	}

	pos, _ := book.Get(replayMint)
	res.Remaining = pos.Quantity
	res.ProceedsSOL = paper.proceeds()
	res.FinalValue = equity(book, paper, last)
	res.PNLSOL = res.FinalValue.Sub(spend)
	res.MaxDDPct = maxDrawdownPct(res.EquityCurve)

	if e.OutputPath != "" {
		if err := writeReport(e.OutputPath, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func equity(book *ledger.Store, paper *paperBook, px decimal.Decimal) decimal.Decimal {
	pos, _ := book.Get(replayMint)
	return paper.proceeds().Add(pos.Quantity.Mul(px))
}

func maxDrawdownPct(series []decimal.Decimal) float64 {
	if len(series) == 0 {
		return 0
	}
	peak := series[0]
	mdd := decimal.Zero
	for _, v := range series {
		if v.GreaterThan(peak) {
			peak = v
		}
		if !peak.IsPositive() {
			continue
		}
		if dd := peak.Sub(v).Div(peak); dd.GreaterThan(mdd) {
			mdd = dd
		}
	}
	return mdd.Mul(decimal.NewFromInt(100)).InexactFloat64()
}

func writeReport(path string, r *Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
