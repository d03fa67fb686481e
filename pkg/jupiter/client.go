// Package jupiter is a client for the Jupiter v6 swap aggregator.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/ratelimit"
)

const (
	defaultBaseURL     = "https://quote-api.jup.ag/v6"
	defaultHTTPTimeout = 15 * time.Second
	defaultMaxRetries  = 2
)

var (
	// ErrNoRoute is returned when the aggregator cannot price the swap.
	ErrNoRoute = errors.New("jupiter: no route")
	// ErrEmptySwap is returned when /swap answers without a transaction.
	ErrEmptySwap = errors.New("jupiter: empty swap transaction")
)

// HTTPError is a non-2xx answer from the aggregator.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("jupiter: http status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the quote and swap endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     *ratelimit.Policy
	backoff    ratelimit.Backoff
}

// Option configures a Client.
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

// WithMaxRetries adjusts the transport retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.backoff.MaxRetries = max
		}
	}
}

// WithRateLimit paces every request through policy.
func WithRateLimit(policy *ratelimit.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// NewClient constructs a Jupiter client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		backoff:    ratelimit.Backoff{MaxRetries: defaultMaxRetries},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote requests the best route for req.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.InputMint == "" || req.OutputMint == "" {
		return nil, fmt.Errorf("jupiter: quote requires input and output mints")
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("jupiter: quote amount must be positive, got %s", req.Amount)
	}
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount.Truncate(0).String())
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("jupiter: quote: %w", err)
	}

	var env quoteEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("jupiter: decode quote: %w", err)
	}
	if env.Error != "" || env.ErrorCode != "" {
		return nil, fmt.Errorf("%w: %s %s", ErrNoRoute, env.ErrorCode, env.Error)
	}

	quote := env.Quote
	raw := json.RawMessage(body)
	if quote.OutAmount == "" && len(env.Data) > 0 {
		quote = env.Data[0]
		if raw, err = json.Marshal(env.Data[0]); err != nil {
			return nil, fmt.Errorf("jupiter: encode legacy route: %w", err)
		}
	}
	if quote.OutAmount == "" {
		return nil, fmt.Errorf("%w: response has no outAmount", ErrNoRoute)
	}
	quote.Raw = raw
	logx.WithContext(ctx).Debugf("jupiter quote %s -> %s in=%s out=%s", req.InputMint, req.OutputMint, quote.InAmount, quote.OutAmount)
	return &quote, nil
}

// SwapTransaction asks the aggregator to build the transaction for quote.
func (c *Client) SwapTransaction(ctx context.Context, quote *Quote, opts SwapOptions) (*SwapResponse, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, fmt.Errorf("jupiter: swap requires a quote")
	}
	if opts.UserPublicKey == "" {
		return nil, fmt.Errorf("jupiter: swap requires a user public key")
	}
	payload, err := json.Marshal(swapRequest{
		QuoteResponse:                 quote.Raw,
		UserPublicKey:                 opts.UserPublicKey,
		WrapAndUnwrapSol:              opts.WrapAndUnwrapSOL,
		ComputeUnitPriceMicroLamports: opts.ComputeUnitPriceMicroLamports,
		DynamicComputeUnitLimit:       opts.DynamicComputeUnitLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("jupiter: encode swap request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/swap", payload)
	if err != nil {
		return nil, fmt.Errorf("jupiter: swap: %w", err)
	}
	var resp SwapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("jupiter: decode swap: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("jupiter: swap: %s", resp.Error)
	}
	if resp.SwapTransaction == "" {
		return nil, ErrEmptySwap
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var out []byte
	err := c.backoff.Retry(ctx, retryable, func() error {
		if err := c.policy.Wait(ctx); err != nil {
			return err
		}
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// The quote endpoint reports "no route" as a 400 with an error body.
			if resp.StatusCode == http.StatusBadRequest && bytes.Contains(data, []byte(`"error"`)) {
				out = data
				return nil
			}
			return &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		out = data
		return nil
	})
	return out, err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
