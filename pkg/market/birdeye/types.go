package birdeye

import (
	"bytes"
	"encoding/json"
)

// envelope is the common {"success":..,"data":..} wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// trendingData covers both the token_trending ("tokens") and the
// new_listing ("items") payloads.
type trendingData struct {
	Tokens []trendingToken `json:"tokens"`
	Items  []trendingToken `json:"items"`
}

type trendingToken struct {
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Decimals     int     `json:"decimals"`
	Rank         int     `json:"rank"`
	Price        float64 `json:"price"`
	Volume24hUSD float64 `json:"volume24hUSD"`
	Liquidity    float64 `json:"liquidity"`
}

type walletData struct {
	Wallet   string        `json:"wallet"`
	TotalUSD float64       `json:"totalUsd"`
	Items    []walletEntry `json:"items"`
}

type walletEntry struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Decimals int     `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
	PriceUSD float64 `json:"priceUsd"`
	ValueUSD float64 `json:"valueUsd"`
}

type metaEntry struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Extensions  struct {
		Description string `json:"description"`
	} `json:"extensions"`
}

func (m metaEntry) description() string {
	if m.Description != "" {
		return m.Description
	}
	return m.Extensions.Description
}

// decodeMetaList accepts either an array of entries or an object keyed by
// address; the API has shipped both.
func decodeMetaList(raw json.RawMessage) ([]metaEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []metaEntry
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var byAddr map[string]metaEntry
	if err := json.Unmarshal(raw, &byAddr); err != nil {
		return nil, err
	}
	list := make([]metaEntry, 0, len(byAddr))
	for addr, entry := range byAddr {
		if entry.Address == "" {
			entry.Address = addr
		}
		list = append(list, entry)
	}
	return list, nil
}
