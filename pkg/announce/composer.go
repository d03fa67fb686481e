package announce

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/llm"
	"stoic-trader/pkg/market"
)

// BuyEvent describes a completed purchase.
type BuyEvent struct {
	Ticker      string
	Address     string
	AmountSOL   decimal.Decimal
	Meta        market.TokenMeta
	ExplorerURL string
}

// SellEvent describes a completed (partial) liquidation.
type SellEvent struct {
	Ticker      string
	Address     string
	TokensSold  decimal.Decimal
	SOLReceived decimal.Decimal
	// ProfitSOL is (price - cost basis) * sold.
	ProfitSOL   decimal.Decimal
	Reason      string
	ExplorerURL string
}

const (
	fallbackBuy  = `Bought {{ .AmountSOL }} SOL of {{ .Symbol }} ({{ .Address }}). "The impediment to action advances action." {{ .ExplorerURL }}`
	fallbackSell = `Sold {{ .TokensSold }} {{ .Ticker }} for ~{{ .SOLReceived }} SOL (PnL ~{{ .ProfitSOL }} SOL). "Loss is nothing else but change." {{ .ExplorerURL }}`
)

// ComposerConfig tunes the LLM used to write announcements.
type ComposerConfig struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	MaxLength    int
	Timeout      time.Duration
}

// Composer writes announcement text, falling back to fixed templates when the
// LLM is unavailable or fails.
type Composer struct {
	cfg    ComposerConfig
	llm    llm.ChatClient
	buy    *llm.PromptTemplate
	sell   *llm.PromptTemplate
	fbBuy  *llm.PromptTemplate
	fbSell *llm.PromptTemplate
}

// NewComposer builds a Composer. client, buy and sell may be nil, in which
// case only the fallback templates are used.
func NewComposer(cfg ComposerConfig, client llm.ChatClient, buy, sell *llm.PromptTemplate) (*Composer, error) {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 280
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	fbBuy, err := llm.ParsePromptTemplate("fallback_buy", fallbackBuy, nil)
	if err != nil {
		return nil, err
	}
	fbSell, err := llm.ParsePromptTemplate("fallback_sell", fallbackSell, nil)
	if err != nil {
		return nil, err
	}
	return &Composer{cfg: cfg, llm: client, buy: buy, sell: sell, fbBuy: fbBuy, fbSell: fbSell}, nil
}

// ComposeBuy returns the announcement for ev.
func (c *Composer) ComposeBuy(ctx context.Context, ev BuyEvent) string {
	name := firstNonEmpty(ev.Meta.Name, ev.Ticker)
	symbol := firstNonEmpty(ev.Meta.Symbol, ev.Ticker)
	data := map[string]any{
		"Ticker":      ev.Ticker,
		"Name":        name,
		"Symbol":      symbol,
		"Address":     ev.Address,
		"Description": ev.Meta.Description,
		"AmountSOL":   ev.AmountSOL.String(),
		"ExplorerURL": ev.ExplorerURL,
		"MaxLength":   c.cfg.MaxLength,
	}
	return c.compose(ctx, "buy", c.buy, c.fbBuy, data)
}

// ComposeSell returns the announcement for ev.
func (c *Composer) ComposeSell(ctx context.Context, ev SellEvent) string {
	data := map[string]any{
		"Ticker":      ev.Ticker,
		"Address":     ev.Address,
		"TokensSold":  ev.TokensSold.StringFixed(2),
		"SOLReceived": ev.SOLReceived.StringFixed(3),
		"ProfitSOL":   ev.ProfitSOL.StringFixed(3),
		"Reason":      ev.Reason,
		"ExplorerURL": ev.ExplorerURL,
		"MaxLength":   c.cfg.MaxLength,
	}
	return c.compose(ctx, "sell", c.sell, c.fbSell, data)
}

func (c *Composer) compose(ctx context.Context, kind string, prompt, fallback *llm.PromptTemplate, data map[string]any) string {
	if c.llm != nil && prompt != nil {
		text, err := c.generate(ctx, prompt, data)
		if err == nil {
			return c.clip(text)
		}
		logx.WithContext(ctx).Errorf("announce: compose %s via llm failed, using template: %v", kind, err)
	}
	text, err := fallback.Render(data)
	if err != nil {
		// Fallback templates only reference keys set above.
		logx.WithContext(ctx).Errorf("announce: render %s fallback: %v", kind, err)
		return ""
	}
	return c.clip(text)
}

func (c *Composer) generate(ctx context.Context, prompt *llm.PromptTemplate, data map[string]any) (string, error) {
	userPrompt, err := prompt.Render(data)
	if err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req := &llm.ChatRequest{
		Model:       c.cfg.Model,
		Messages:    []llm.Message{{Role: "user", Content: userPrompt}},
		Temperature: llm.Float(c.cfg.Temperature),
	}
	if c.cfg.SystemPrompt != "" {
		req.Messages = append([]llm.Message{{Role: "system", Content: c.cfg.SystemPrompt}}, req.Messages...)
	}
	if c.cfg.MaxTokens > 0 {
		req.MaxCompletionTokens = llm.Int(c.cfg.MaxTokens)
	}
	resp, err := c.llm.Chat(callCtx, req)
	if err != nil {
		return "", err
	}
	text := strings.Trim(resp.Text(), "\"")
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}

// clip enforces the post length, cutting at the last space when possible.
func (c *Composer) clip(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= c.cfg.MaxLength {
		return text
	}
	runes := []rune(text)[:c.cfg.MaxLength]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > c.cfg.MaxLength/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
