// Package market defines the market-data view the trader works from:
// trending tokens, the wallet portfolio and token metadata.
package market

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Provider exposes market data for the configured chain.
type Provider interface {
	// Trending fetches one trending list, choosing the endpoint by strategy.
	Trending(ctx context.Context) (*Snapshot, error)
	// Portfolio returns the holdings of wallet valued in USD.
	Portfolio(ctx context.Context, wallet string) (*Portfolio, error)
	// TokenMetadata returns metadata keyed by token address. Unknown
	// addresses are simply absent.
	TokenMetadata(ctx context.Context, addresses []string) (map[string]TokenMeta, error)
}

// Token is one entry of a trending list.
type Token struct {
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Decimals     int     `json:"decimals"`
	Rank         int     `json:"rank,omitempty"`
	PriceUSD     float64 `json:"price,omitempty"`
	Volume24hUSD float64 `json:"volume24hUSD,omitempty"`
	LiquidityUSD float64 `json:"liquidity,omitempty"`
}

// Snapshot is a trending list as seen at FetchedAt.
type Snapshot struct {
	Endpoint  string
	Tokens    []Token
	FetchedAt time.Time
}

// Candidates maps lowercase symbols to token addresses. On symbol clashes
// the first listed token wins.
func (s *Snapshot) Candidates() map[string]string {
	out := make(map[string]string)
	if s == nil {
		return out
	}
	for _, tok := range s.Tokens {
		sym := strings.ToLower(strings.TrimSpace(tok.Symbol))
		addr := strings.TrimSpace(tok.Address)
		if sym == "" || addr == "" {
			continue
		}
		if _, ok := out[sym]; !ok {
			out[sym] = addr
		}
	}
	return out
}

// Symbols returns the candidate symbols in sorted order.
func (s *Snapshot) Symbols() []string {
	c := s.Candidates()
	out := make([]string, 0, len(c))
	for sym := range c {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Holding is one wallet balance.
type Holding struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Decimals int     `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
	PriceUSD float64 `json:"priceUsd"`
	ValueUSD float64 `json:"valueUsd"`
}

// Portfolio is the valued content of a wallet.
type Portfolio struct {
	Wallet   string
	TotalUSD float64
	Items    []Holding
}

// TokenMeta is descriptive token data used in announcements.
type TokenMeta struct {
	Address     string
	Name        string
	Symbol      string
	Description string
}
