package announce

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoic-trader/pkg/llm"
	"stoic-trader/pkg/market"
)

type fakeChat struct {
	reply string
	err   error
	last  *llm.ChatRequest
}

func (f *fakeChat) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Choices: []llm.Choice{{Message: llm.Message{Role: "assistant", Content: f.reply}}}}, nil
}

func testPrompts(t *testing.T) (*llm.PromptTemplate, *llm.PromptTemplate) {
	t.Helper()
	buy, err := llm.ParsePromptTemplate("buy", "buy {{ .Symbol }} {{ .AmountSOL }} {{ .ExplorerURL }}", nil)
	require.NoError(t, err)
	sell, err := llm.ParsePromptTemplate("sell", "sell {{ .Ticker }} {{ .TokensSold }} {{ .SOLReceived }} {{ .ProfitSOL }}", nil)
	require.NoError(t, err)
	return buy, sell
}

func buyEvent() BuyEvent {
	return BuyEvent{
		Ticker:      "BONK",
		Address:     "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		AmountSOL:   decimal.RequireFromString("0.05"),
		Meta:        market.TokenMeta{Name: "Bonk", Symbol: "BONK", Description: "dog"},
		ExplorerURL: "https://solscan.io/tx/abc?cluster=mainnet",
	}
}

func TestComposeBuyUsesLLM(t *testing.T) {
	chat := &fakeChat{reply: `"Bought BONK. Calm mind."`}
	buy, sell := testPrompts(t)
	c, err := NewComposer(ComposerConfig{Model: "announcer", SystemPrompt: "sys", Temperature: 0.6, MaxTokens: 280}, chat, buy, sell)
	require.NoError(t, err)

	text := c.ComposeBuy(context.Background(), buyEvent())
	assert.Equal(t, "Bought BONK. Calm mind.", text)

	require.NotNil(t, chat.last)
	assert.Equal(t, "announcer", chat.last.Model)
	require.Len(t, chat.last.Messages, 2)
	assert.Equal(t, "sys", chat.last.Messages[0].Content)
	assert.Equal(t, "buy BONK 0.05 https://solscan.io/tx/abc?cluster=mainnet", chat.last.Messages[1].Content)
	assert.InDelta(t, 0.6, *chat.last.Temperature, 1e-9)
	assert.Equal(t, 280, *chat.last.MaxCompletionTokens)
}

func TestComposeSellFormatsAmounts(t *testing.T) {
	chat := &fakeChat{reply: "ok"}
	buy, sell := testPrompts(t)
	c, err := NewComposer(ComposerConfig{}, chat, buy, sell)
	require.NoError(t, err)

	c.ComposeSell(context.Background(), SellEvent{
		Ticker:      "BONK",
		TokensSold:  decimal.RequireFromString("1234.5678"),
		SOLReceived: decimal.RequireFromString("0.12345"),
		ProfitSOL:   decimal.RequireFromString("-0.0126"),
	})
	assert.Equal(t, "sell BONK 1234.57 0.123 -0.013", chat.last.Messages[0].Content)
}

func TestComposeFallsBackOnLLMError(t *testing.T) {
	chat := &fakeChat{err: errors.New("upstream down")}
	buy, sell := testPrompts(t)
	c, err := NewComposer(ComposerConfig{}, chat, buy, sell)
	require.NoError(t, err)

	text := c.ComposeBuy(context.Background(), buyEvent())
	assert.True(t, strings.HasPrefix(text, "Bought 0.05 SOL of BONK"), text)
	assert.Contains(t, text, "https://solscan.io/tx/abc?cluster=mainnet")
}

func TestComposeWithoutLLM(t *testing.T) {
	c, err := NewComposer(ComposerConfig{}, nil, nil, nil)
	require.NoError(t, err)
	text := c.ComposeSell(context.Background(), SellEvent{
		Ticker:      "WIF",
		TokensSold:  decimal.NewFromInt(10),
		SOLReceived: decimal.RequireFromString("0.5"),
		ProfitSOL:   decimal.RequireFromString("0.1"),
		ExplorerURL: "https://solscan.io/tx/x?cluster=mainnet",
	})
	assert.Contains(t, text, "Sold 10.00 WIF for ~0.500 SOL (PnL ~0.100 SOL)")
}

func TestComposeClipsLongText(t *testing.T) {
	chat := &fakeChat{reply: strings.Repeat("stoic ", 100)}
	buy, sell := testPrompts(t)
	c, err := NewComposer(ComposerConfig{MaxLength: 50}, chat, buy, sell)
	require.NoError(t, err)

	text := c.ComposeBuy(context.Background(), buyEvent())
	assert.LessOrEqual(t, utf8.RuneCountInString(text), 50)
	assert.False(t, strings.HasSuffix(text, " "))
}
