package backtest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoic-trader/pkg/exitrule"
)

func prices(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestReplayTakesProfitThenStopsOut(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.json")
	e := &Engine{
		Feeder:     NewPriceFeeder(prices("1", "2", "4", "0.4")...),
		Rules:      exitrule.DefaultRules(),
		OutputPath: out,
	}
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Steps)
	require.Len(t, res.Sales, 3)
	assert.Equal(t, exitrule.ReasonTakeProfit, res.Sales[0].Reason)
	assert.True(t, res.Sales[0].Quantity.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, 2, res.Sales[1].TierCount)
	assert.True(t, res.Sales[1].Quantity.Equal(decimal.RequireFromString("0.125")))
	assert.Equal(t, exitrule.ReasonStopLoss, res.Sales[2].Reason)

	assert.True(t, res.Remaining.IsZero())
	assert.True(t, res.ProceedsSOL.Equal(decimal.RequireFromString("1.65")), res.ProceedsSOL.String())
	assert.True(t, res.PNLSOL.Equal(decimal.RequireFromString("0.65")), res.PNLSOL.String())
	assert.Len(t, res.EquityCurve, 4)
	assert.Greater(t, res.MaxDDPct, 0.0)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "sales")
}

func TestReplayExclusiveFiresOneTierPerSweep(t *testing.T) {
	rules := exitrule.DefaultRules()
	rules.Mode = exitrule.ModeExclusive
	e := &Engine{Feeder: NewPriceFeeder(prices("1", "9")...), Rules: rules}

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Sales, 1)
	assert.Equal(t, 1, res.Sales[0].TierCount)
}

func TestReplayAppliesSlippage(t *testing.T) {
	e := &Engine{
		Feeder:      NewPriceFeeder(prices("1", "0.5")...),
		Rules:       exitrule.DefaultRules(),
		SpendSOL:    decimal.NewFromInt(2),
		SlippageBps: 100,
	}
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	// 2 tokens at 0.5 less 1%.
	assert.True(t, res.ProceedsSOL.Equal(decimal.RequireFromString("0.99")), res.ProceedsSOL.String())
}

func TestReplayNeedsEntryPrice(t *testing.T) {
	_, err := (&Engine{Feeder: NewPriceFeeder(), Rules: exitrule.DefaultRules()}).Run(context.Background())
	require.Error(t, err)

	_, err = (&Engine{Rules: exitrule.DefaultRules()}).Run(context.Background())
	require.Error(t, err)
}

func TestCSVFeeder(t *testing.T) {
	f, err := NewCSVFeeder(strings.NewReader("ts,price\n1,0.001\n2,0.002\n"))
	require.NoError(t, err)

	px, ok, err := f.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0.001", px.String())

	_, ok, _ = f.Next(context.Background())
	assert.True(t, ok)
	_, ok, _ = f.Next(context.Background())
	assert.False(t, ok)

	_, err = NewCSVFeeder(strings.NewReader("1,0.1\n2,abc\n"))
	require.Error(t, err)
}
