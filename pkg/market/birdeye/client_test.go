package birdeye

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoic-trader/pkg/market"
)

func newTestClient(t *testing.T, srv *httptest.Server, strategy string) *Client {
	t.Helper()
	sel, err := market.NewSelector(market.DefaultEndpoints(20), strategy, nil)
	require.NoError(t, err)
	return NewClient("test-key",
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithSelector(sel),
		WithMaxRetries(0),
	)
}

func TestTrendingParsesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/defi/token_trending", r.URL.Path)
		assert.Equal(t, "rank", r.URL.Query().Get("sort_by"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "solana", r.Header.Get("x-chain"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"updateUnixTime":1,"tokens":[
			{"address":"Bonk111","symbol":"BONK","name":"Bonk","decimals":5,"rank":1,"price":0.00002,"volume24hUSD":1e6,"liquidity":5e5},
			{"address":"Wif111","symbol":"WIF","name":"dogwifhat","decimals":6,"rank":2}
		]}}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(t, srv, "trending_rank").Trending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trending_rank", snap.Endpoint)
	require.Len(t, snap.Tokens, 2)
	assert.Equal(t, "Bonk111", snap.Tokens[0].Address)
	assert.Equal(t, 5, snap.Tokens[0].Decimals)
	assert.InDelta(t, 5e5, snap.Tokens[0].LiquidityUSD, 1e-9)
	assert.Equal(t, map[string]string{"bonk": "Bonk111", "wif": "Wif111"}, snap.Candidates())
}

func TestTrendingNewListingUsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/defi/v2/tokens/new_listing", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("meme_platform_enabled"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"items":[{"address":"New111","symbol":"NEW","name":"Newcoin","decimals":9}]}}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(t, srv, "new_listing").Trending(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Tokens, 1)
	assert.Equal(t, "New111", snap.Tokens[0].Address)
}

func TestPortfolio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/wallet/token_list", r.URL.Path)
		assert.Equal(t, "Wallet111", r.URL.Query().Get("wallet"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"wallet":"Wallet111","totalUsd":42.5,"items":[
			{"address":"So11111111111111111111111111111111111111112","symbol":"SOL","decimals":9,"uiAmount":0.2,"priceUsd":150,"valueUsd":30}
		]}}`))
	}))
	defer srv.Close()

	p, err := newTestClient(t, srv, "").Portfolio(context.Background(), "Wallet111")
	require.NoError(t, err)
	assert.InDelta(t, 42.5, p.TotalUSD, 1e-9)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "SOL", p.Items[0].Symbol)

	_, err = newTestClient(t, srv, "").Portfolio(context.Background(), " ")
	require.Error(t, err)
}

func TestTokenMetadataAcceptsObjectAndArray(t *testing.T) {
	longDesc := strings.Repeat("a", 150)
	bodies := map[string]string{
		"object": `{"success":true,"data":{"Bonk111":{"name":"Bonk","symbol":"BONK","extensions":{"description":"` + longDesc + `"}}}}`,
		"array":  `{"success":true,"data":[{"address":"Bonk111","name":"Bonk","symbol":"BONK","description":"` + longDesc + `"},{"name":"orphan"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/defi/v3/token/meta-data/multiple", r.URL.Path)
				assert.Equal(t, "Bonk111,Wif111", r.URL.Query().Get("list_address"))
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			meta, err := newTestClient(t, srv, "").TokenMetadata(context.Background(), []string{"Bonk111", " ", "Wif111"})
			require.NoError(t, err)
			require.Len(t, meta, 1)
			got := meta["Bonk111"]
			assert.Equal(t, "BONK", got.Symbol)
			assert.Len(t, got.Description, 100)
		})
	}
}

func TestTokenMetadataEmptyInputSkipsRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	meta, err := newTestClient(t, srv, "").TokenMetadata(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, meta)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRetriesOnTooManyRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"totalUsd":1,"items":[]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	WithMaxRetries(2)(c)
	_, err := c.Portfolio(context.Background(), "w")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestErrorsAreWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/wallet/token_list":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Unauthorized"}`))
		default:
			_, _ = w.Write([]byte(`{"success":false,"message":"bad list"}`))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "trending_rank")
	_, err := c.Portfolio(context.Background(), "w")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Contains(t, err.Error(), "birdeye: wallet portfolio")

	_, err = c.Trending(context.Background())
	require.ErrorContains(t, err, "bad list")
}

func TestNewFromConfig(t *testing.T) {
	t.Setenv("BIRDEYE_API_KEY", "k")
	cfg, err := market.LoadConfigFromReader(strings.NewReader("strategy: round_robin\n"))
	require.NoError(t, err)
	c, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "k", c.apiKey)
	assert.Equal(t, defaultBaseURL, c.baseURL)

	_, err = New(nil)
	require.Error(t, err)
}
