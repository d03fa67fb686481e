package market

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCandidates(t *testing.T) {
	snap := &Snapshot{Tokens: []Token{
		{Symbol: "BONK", Address: "bonk-1"},
		{Symbol: "bonk", Address: "bonk-2"},
		{Symbol: "WIF", Address: "wif"},
		{Symbol: "", Address: "anon"},
		{Symbol: "NOADDR"},
	}}
	assert.Equal(t, map[string]string{"bonk": "bonk-1", "wif": "wif"}, snap.Candidates())
	assert.Equal(t, []string{"bonk", "wif"}, snap.Symbols())

	var nilSnap *Snapshot
	assert.Empty(t, nilSnap.Candidates())
}

func TestDefaultEndpoints(t *testing.T) {
	eps := DefaultEndpoints(0)
	require.Len(t, eps, 4)
	assert.Equal(t,
		"https://public-api.birdeye.so/defi/token_trending?limit=20&offset=0&sort_by=rank&sort_type=asc",
		eps[0].URL("https://public-api.birdeye.so/"))
	assert.Equal(t, "volume24hUSD", eps[1].Query.Get("sort_by"))
	assert.Equal(t, "liquidity", eps[2].Query.Get("sort_by"))
	assert.True(t, strings.HasSuffix(eps[3].URL("http://x"), "defi/v2/tokens/new_listing?limit=20&meme_platform_enabled=true"))
}

func TestSelectorStrategies(t *testing.T) {
	eps := DefaultEndpoints(20)

	rr, err := NewSelector(eps, StrategyRoundRobin, nil)
	require.NoError(t, err)
	var names []string
	for i := 0; i < 5; i++ {
		names = append(names, rr.Next().Name)
	}
	assert.Equal(t, []string{"trending_rank", "trending_volume", "trending_liquidity", "new_listing", "trending_rank"}, names)

	fixed, err := NewSelector(eps, "NEW_LISTING", nil)
	require.NoError(t, err)
	assert.Equal(t, "new_listing", fixed.Next().Name)
	assert.Equal(t, "new_listing", fixed.Next().Name)

	random, err := NewSelector(eps, "", rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[random.Next().Name] = true
	}
	assert.Len(t, seen, 4)

	_, err = NewSelector(eps, "bogus", nil)
	require.ErrorContains(t, err, "unknown endpoint strategy")
	_, err = NewSelector(nil, "", nil)
	require.Error(t, err)
}

func TestLoadConfigFromReader(t *testing.T) {
	t.Setenv("BIRDEYE_API_KEY", "be-key")
	t.Setenv("MARKET_DELAY", "5s")

	cfg, err := LoadConfigFromReader(strings.NewReader(`
strategy: round_robin
timeout: 7s
rate_limit:
  requests_per_second: 1
  delay: ${MARKET_DELAY}
`))
	require.NoError(t, err)
	assert.Equal(t, "be-key", cfg.APIKey)
	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "solana", cfg.Chain)
	assert.Equal(t, StrategyRoundRobin, cfg.Strategy)
	assert.Equal(t, 20, cfg.Limit)
	assert.Equal(t, 7*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.Delay)
	assert.Equal(t, 100, cfg.DescriptionLimit)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("BIRDEYE_API_KEY", "")
	_, err := LoadConfigFromReader(strings.NewReader("{}"))
	require.ErrorContains(t, err, "api_key is required")

	t.Setenv("BIRDEYE_API_KEY", "k")
	_, err = LoadConfigFromReader(strings.NewReader("strategy: sideways"))
	require.ErrorContains(t, err, "unknown endpoint strategy")

	_, err = LoadConfigFromReader(strings.NewReader("timeout: -1s"))
	require.ErrorContains(t, err, "must be positive")
}
