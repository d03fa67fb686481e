package announce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const xBaseURL = "https://api.twitter.com/2"

// XSender posts through the X API v2 create-post endpoint with an OAuth 2.0
// user access token.
type XSender struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewXSender creates an XSender.
func NewXSender(token string) *XSender {
	return &XSender{
		baseURL: xBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send implements Sender.
func (x *XSender) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("x: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(x.baseURL, "/")+"/tweets", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("x: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+x.token)

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("x: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("x: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Name implements Sender.
func (x *XSender) Name() string { return "x" }
