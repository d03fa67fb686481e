// Package exitrule applies the fixed stop-loss and partial take-profit schedule
// to open ledger positions.
package exitrule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"stoic-trader/pkg/ledger"
)

// Mode selects how many profit tiers may fire for one position in one sweep.
type Mode string

const (
	// ModeCumulative evaluates every tier independently, so a position that
	// jumped past several multiples sells at each of them in the same sweep.
	ModeCumulative Mode = "cumulative"
	// ModeExclusive fires at most one tier per position per sweep.
	ModeExclusive Mode = "exclusive"
)

// Reason labels why a sale was planned.
type Reason string

const (
	ReasonStopLoss   Reason = "stop_loss"
	ReasonTakeProfit Reason = "take_profit"
)

// Tier is one partial take-profit step.
type Tier struct {
	Ratio    decimal.Decimal
	Fraction decimal.Decimal
	// Count is the PartialSalesCount reached once the tier fires. The tier is
	// eligible while the position count is below it.
	Count int
}

// DefaultStopLossRatio liquidates a position that lost half its value.
var DefaultStopLossRatio = decimal.RequireFromString("0.5")

// DefaultTiers is the 2x/4x/8x/16x partial exit schedule.
func DefaultTiers() []Tier {
	return []Tier{
		{Ratio: decimal.NewFromInt(2), Fraction: decimal.RequireFromString("0.5"), Count: 1},
		{Ratio: decimal.NewFromInt(4), Fraction: decimal.RequireFromString("0.25"), Count: 2},
		{Ratio: decimal.NewFromInt(8), Fraction: decimal.RequireFromString("0.15"), Count: 3},
		{Ratio: decimal.NewFromInt(16), Fraction: decimal.RequireFromString("0.1"), Count: 4},
	}
}

// Rules is the complete exit schedule.
type Rules struct {
	Mode          Mode
	StopLossRatio decimal.Decimal
	Tiers         []Tier
}

// DefaultRules returns the cumulative default schedule.
func DefaultRules() Rules {
	return Rules{
		Mode:          ModeCumulative,
		StopLossRatio: DefaultStopLossRatio,
		Tiers:         DefaultTiers(),
	}
}

// Validate checks the schedule is well formed.
func (r Rules) Validate() error {
	switch r.Mode {
	case ModeCumulative, ModeExclusive:
	default:
		return fmt.Errorf("exitrule: unsupported mode %q", r.Mode)
	}
	if !r.StopLossRatio.IsPositive() || r.StopLossRatio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("exitrule: stop loss ratio must be in (0,1), got %s", r.StopLossRatio)
	}
	prev := 0
	for i, tier := range r.Tiers {
		if !tier.Ratio.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("exitrule: tier[%d] ratio must be above 1, got %s", i, tier.Ratio)
		}
		if !tier.Fraction.IsPositive() || tier.Fraction.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("exitrule: tier[%d] fraction must be in (0,1], got %s", i, tier.Fraction)
		}
		if tier.Count <= prev || tier.Count > ledger.MaxPartialSales {
			return fmt.Errorf("exitrule: tier[%d] count must increase and stay <= %d", i, ledger.MaxPartialSales)
		}
		prev = tier.Count
	}
	return nil
}

// ParseMode normalises a configured mode name. Empty means cumulative.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeCumulative:
		return ModeCumulative, nil
	case ModeExclusive:
		return ModeExclusive, nil
	default:
		return "", fmt.Errorf("exitrule: unsupported mode %q", raw)
	}
}

// Step is a single planned sale. Fraction applies to the quantity remaining
// when the step executes.
type Step struct {
	Reason   Reason
	Fraction decimal.Decimal
	// TierCount is the PartialSalesCount to record after a take-profit sale.
	TierCount int
}

// Ratio returns price/costBasis, or false when the cost basis is unusable.
func Ratio(pos ledger.Position, price decimal.Decimal) (decimal.Decimal, bool) {
	if !pos.CostBasis.IsPositive() || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price.Div(pos.CostBasis), true
}

// Evaluate returns the ordered steps the schedule prescribes for pos at ratio.
// A stop loss is terminal and ignores the tier counter.
func (r Rules) Evaluate(pos ledger.Position, ratio decimal.Decimal) []Step {
	if ratio.LessThanOrEqual(r.StopLossRatio) {
		return []Step{{Reason: ReasonStopLoss, Fraction: decimal.NewFromInt(1)}}
	}

	tiers := append([]Tier(nil), r.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Count < tiers[j].Count })

	var steps []Step
	count := pos.PartialSalesCount
	for _, tier := range tiers {
		if ratio.LessThan(tier.Ratio) || count >= tier.Count {
			continue
		}
		steps = append(steps, Step{Reason: ReasonTakeProfit, Fraction: tier.Fraction, TierCount: tier.Count})
		count = tier.Count
		if r.Mode == ModeExclusive {
			break
		}
	}
	return steps
}

// PlannedSale is a Step resolved to a concrete quantity.
type PlannedSale struct {
	Step
	Quantity  decimal.Decimal
	Remaining decimal.Decimal
}

// Plan resolves the steps for pos at price into quantities, assuming every
// sale succeeds.
func (r Rules) Plan(pos ledger.Position, price decimal.Decimal) []PlannedSale {
	ratio, ok := Ratio(pos, price)
	if !ok || !pos.Open() {
		return nil
	}
	remaining := pos.Quantity
	var out []PlannedSale
	for _, step := range r.Evaluate(pos, ratio) {
		qty := remaining.Mul(step.Fraction)
		remaining = remaining.Sub(qty)
		out = append(out, PlannedSale{Step: step, Quantity: qty, Remaining: remaining})
	}
	return out
}
