package jupiter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleQuote = `{
	"inputMint":"So11111111111111111111111111111111111111112",
	"inAmount":"100000000",
	"outputMint":"MintA",
	"outAmount":"2500000",
	"otherAmountThreshold":"2487500",
	"swapMode":"ExactIn",
	"slippageBps":50,
	"priceImpactPct":"0.001",
	"routePlan":[{"percent":100}],
	"contextSlot":123
}`

func TestQuoteBuildsQueryAndKeepsRawBody(t *testing.T) {
	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		query = map[string]string{
			"inputMint":   r.URL.Query().Get("inputMint"),
			"outputMint":  r.URL.Query().Get("outputMint"),
			"amount":      r.URL.Query().Get("amount"),
			"slippageBps": r.URL.Query().Get("slippageBps"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleQuote))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	quote, err := client.Quote(context.Background(), QuoteRequest{
		InputMint:   "So11111111111111111111111111111111111111112",
		OutputMint:  "MintA",
		Amount:      decimal.RequireFromString("100000000.9"),
		SlippageBps: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, "100000000", query["amount"], "amount is sent as whole base units")
	assert.Equal(t, "50", query["slippageBps"])
	assert.Equal(t, "MintA", query["outputMint"])
	assert.Equal(t, "2500000", quote.OutAmountBase().String())
	assert.JSONEq(t, sampleQuote, string(quote.Raw))
}

func TestQuoteLegacyDataShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"inputMint":"A","outputMint":"B","inAmount":"1","outAmount":"42"}]}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	quote, err := client.Quote(context.Background(), QuoteRequest{InputMint: "A", OutputMint: "B", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "42", quote.OutAmount)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(quote.Raw, &raw))
	assert.Equal(t, "42", raw["outAmount"])
}

func TestQuoteNoRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Quote(context.Background(), QuoteRequest{InputMint: "A", OutputMint: "B", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestQuoteValidatesInput(t *testing.T) {
	client := NewClient()
	_, err := client.Quote(context.Background(), QuoteRequest{InputMint: "A", OutputMint: "B"})
	require.ErrorContains(t, err, "must be positive")
	_, err = client.Quote(context.Background(), QuoteRequest{OutputMint: "B", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
}

func TestQuoteRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(sampleQuote))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithMaxRetries(2))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Quote(ctx, QuoteRequest{InputMint: "A", OutputMint: "MintA", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQuoteDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithMaxRetries(3))
	_, err := client.Quote(context.Background(), QuoteRequest{InputMint: "A", OutputMint: "B", Amount: decimal.NewFromInt(1)})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSwapTransactionEchoesQuote(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			_, _ = w.Write([]byte(sampleQuote))
		case "/swap":
			assert.Equal(t, http.MethodPost, r.Method)
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &captured))
			_, _ = w.Write([]byte(`{"swapTransaction":"AQID","lastValidBlockHeight":99}`))
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	quote, err := client.Quote(context.Background(), QuoteRequest{InputMint: "A", OutputMint: "MintA", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)

	resp, err := client.SwapTransaction(context.Background(), quote, SwapOptions{
		UserPublicKey:                 "Wallet111",
		WrapAndUnwrapSOL:              true,
		ComputeUnitPriceMicroLamports: 2_000_000,
		DynamicComputeUnitLimit:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "AQID", resp.SwapTransaction)
	assert.Equal(t, uint64(99), resp.LastValidBlockHeight)

	assert.Equal(t, "Wallet111", captured["userPublicKey"])
	assert.Equal(t, true, captured["wrapAndUnwrapSol"])
	assert.Equal(t, true, captured["dynamicComputeUnitLimit"])
	assert.Equal(t, float64(2_000_000), captured["computeUnitPriceMicroLamports"])
	echoed, ok := captured["quoteResponse"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2500000", echoed["outAmount"])
	assert.NotNil(t, echoed["routePlan"], "unknown quote fields are passed through")
}

func TestSwapTransactionEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.SwapTransaction(context.Background(), &Quote{Raw: json.RawMessage(sampleQuote)}, SwapOptions{UserPublicKey: "W"})
	require.ErrorIs(t, err, ErrEmptySwap)
}
