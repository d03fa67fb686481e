package advisor

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"stoic-trader/pkg/amount"
	"stoic-trader/pkg/llm"
)

// PromptInputs is the data the recommendation template renders.
type PromptInputs struct {
	SOLMint        string
	BalanceSOL     string
	RiskPercent    string
	MaxPerTradeSOL string
	TokensJSON     string
}

// PromptRenderer renders the recommendation prompt from a template file.
type PromptRenderer struct {
	tpl *llm.PromptTemplate
}

// NewPromptRenderer loads the template at path.
func NewPromptRenderer(path string) (*PromptRenderer, error) {
	tpl, err := llm.NewPromptTemplate(path, nil)
	if err != nil {
		return nil, err
	}
	return &PromptRenderer{tpl: tpl}, nil
}

// Render builds the prompt for snap with the given risk fraction.
func (r *PromptRenderer) Render(snap Snapshot, riskFraction float64) (string, error) {
	if r == nil || r.tpl == nil {
		return "", fmt.Errorf("advisor prompt renderer not initialised")
	}
	inputs, err := buildPromptInputs(snap, riskFraction)
	if err != nil {
		return "", err
	}
	return r.tpl.Render(inputs)
}

// Digest returns the template digest.
func (r *PromptRenderer) Digest() string {
	if r == nil || r.tpl == nil {
		return ""
	}
	return r.tpl.Digest()
}

type candidate struct {
	Address string `json:"address"`
}

func buildPromptInputs(snap Snapshot, riskFraction float64) (PromptInputs, error) {
	fraction := decimal.NewFromFloat(riskFraction)
	maxPerTrade := snap.BalanceSOL.Mul(fraction)

	// encoding/json sorts map keys, which keeps the prompt stable.
	tokens := make(map[string]candidate, len(snap.Candidates))
	for sym, addr := range snap.Candidates {
		if amount.IsSOL(addr) {
			continue
		}
		tokens[sym] = candidate{Address: addr}
	}
	encoded, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return PromptInputs{}, fmt.Errorf("advisor: encode candidates: %w", err)
	}

	return PromptInputs{
		SOLMint:        amount.SOLMint,
		BalanceSOL:     snap.BalanceSOL.StringFixed(4),
		RiskPercent:    fraction.Mul(decimal.NewFromInt(100)).StringFixed(0),
		MaxPerTradeSOL: maxPerTrade.StringFixed(4),
		TokensJSON:     string(encoded),
	}, nil
}
