// Package birdeye implements market.Provider against the Birdeye public API.
package birdeye

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/market"
	"stoic-trader/pkg/ratelimit"
)

const (
	defaultBaseURL     = "https://public-api.birdeye.so"
	defaultHTTPTimeout = 10 * time.Second
	defaultMaxRetries  = 3
)

// HTTPError is a non-2xx answer from Birdeye.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("birdeye: http status %d: %s", e.Status, e.Body)
}

// Client wraps the Birdeye REST endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	chain      string
	httpClient *http.Client
	maxRetries int
	policy     *ratelimit.Policy
	selector   *market.Selector
	descLimit  int
	now        func() time.Time
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithMaxRetries adjusts the retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithRateLimit paces every request through policy.
func WithRateLimit(policy *ratelimit.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithSelector overrides the trending endpoint selector.
func WithSelector(s *market.Selector) Option {
	return func(c *Client) {
		if s != nil {
			c.selector = s
		}
	}
}

// WithChain sets the x-chain header.
func WithChain(chain string) Option {
	return func(c *Client) {
		if chain != "" {
			c.chain = chain
		}
	}
}

// WithDescriptionLimit truncates metadata descriptions to n runes.
func WithDescriptionLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.descLimit = n
		}
	}
}

// NewClient constructs a Birdeye client.
func NewClient(apiKey string, opts ...Option) *Client {
	sel, _ := market.NewSelector(market.DefaultEndpoints(20), market.StrategyRandom, nil)
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		chain:      "solana",
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries: defaultMaxRetries,
		selector:   sel,
		descLimit:  100,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New builds a Client from market configuration.
func New(cfg *market.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("birdeye: config is required")
	}
	sel, err := market.NewSelector(market.DefaultEndpoints(cfg.Limit), cfg.Strategy, nil)
	if err != nil {
		return nil, err
	}
	return NewClient(cfg.APIKey,
		WithBaseURL(cfg.BaseURL),
		WithChain(cfg.Chain),
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithMaxRetries(cfg.MaxRetries),
		WithRateLimit(ratelimit.New(cfg.RateLimit)),
		WithSelector(sel),
		WithDescriptionLimit(cfg.DescriptionLimit),
	), nil
}

// Trending implements market.Provider.
func (c *Client) Trending(ctx context.Context) (*market.Snapshot, error) {
	ep := c.selector.Next()
	var data trendingData
	if err := c.get(ctx, ep.URL(c.baseURL), &data); err != nil {
		return nil, fmt.Errorf("birdeye: trending %s: %w", ep.Name, err)
	}
	raw := data.Tokens
	if len(raw) == 0 {
		raw = data.Items
	}
	snap := &market.Snapshot{Endpoint: ep.Name, FetchedAt: c.now(), Tokens: make([]market.Token, 0, len(raw))}
	for _, t := range raw {
		snap.Tokens = append(snap.Tokens, market.Token{
			Address:      t.Address,
			Symbol:       t.Symbol,
			Name:         t.Name,
			Decimals:     t.Decimals,
			Rank:         t.Rank,
			PriceUSD:     t.Price,
			Volume24hUSD: t.Volume24hUSD,
			LiquidityUSD: t.Liquidity,
		})
	}
	logx.WithContext(ctx).Infof("birdeye trending endpoint=%s tokens=%d", ep.Name, len(snap.Tokens))
	return snap, nil
}

// Portfolio implements market.Provider.
func (c *Client) Portfolio(ctx context.Context, wallet string) (*market.Portfolio, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, errors.New("birdeye: wallet is required")
	}
	q := url.Values{"wallet": {wallet}}
	var data walletData
	if err := c.get(ctx, c.baseURL+"/v1/wallet/token_list?"+q.Encode(), &data); err != nil {
		return nil, fmt.Errorf("birdeye: wallet portfolio: %w", err)
	}
	out := &market.Portfolio{Wallet: wallet, TotalUSD: data.TotalUSD, Items: make([]market.Holding, 0, len(data.Items))}
	for _, it := range data.Items {
		out.Items = append(out.Items, market.Holding{
			Address:  it.Address,
			Symbol:   it.Symbol,
			Name:     it.Name,
			Decimals: it.Decimals,
			UIAmount: it.UIAmount,
			PriceUSD: it.PriceUSD,
			ValueUSD: it.ValueUSD,
		})
	}
	return out, nil
}

// TokenMetadata implements market.Provider.
func (c *Client) TokenMetadata(ctx context.Context, addresses []string) (map[string]market.TokenMeta, error) {
	out := make(map[string]market.TokenMeta)
	clean := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if a = strings.TrimSpace(a); a != "" {
			clean = append(clean, a)
		}
	}
	if len(clean) == 0 {
		return out, nil
	}

	q := url.Values{"list_address": {strings.Join(clean, ",")}}
	var raw json.RawMessage
	if err := c.get(ctx, c.baseURL+"/defi/v3/token/meta-data/multiple?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("birdeye: token metadata: %w", err)
	}
	entries, err := decodeMetaList(raw)
	if err != nil {
		return nil, fmt.Errorf("birdeye: decode token metadata: %w", err)
	}
	for _, e := range entries {
		if e.Address == "" {
			continue
		}
		out[e.Address] = market.TokenMeta{
			Address:     e.Address,
			Name:        e.Name,
			Symbol:      e.Symbol,
			Description: truncate(e.description(), c.descLimit),
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	backoff := ratelimit.Backoff{MaxRetries: c.maxRetries}
	var body []byte
	err := backoff.Retry(ctx, retryable, func() error {
		if err := c.policy.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set("X-API-KEY", c.apiKey)
		req.Header.Set("x-chain", c.chain)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}
		body = b
		return nil
	})
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return fmt.Errorf("request rejected: %s", env.Message)
	}
	if len(env.Data) == 0 {
		return errors.New("response has no data")
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = env.Data
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusTooManyRequests || httpErr.Status >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
