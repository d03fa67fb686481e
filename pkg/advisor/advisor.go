// Package advisor asks the LLM which trending tokens to buy.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/llm"
)

var (
	// ErrEmptyResponse means the model returned no content.
	ErrEmptyResponse = errors.New("advisor: empty LLM response")
	// ErrMissingRecommendations means the reply had no "recommendations" key.
	// It is not retried.
	ErrMissingRecommendations = errors.New("advisor: recommendations key missing in LLM response")
)

// Advisor renders the recommendation prompt and parses the model reply.
type Advisor struct {
	cfg      Config
	llm      llm.ChatClient
	renderer *PromptRenderer
	now      func() time.Time
}

// New constructs an Advisor.
func New(cfg Config, client llm.ChatClient, renderer *PromptRenderer) (*Advisor, error) {
	if client == nil {
		return nil, errors.New("advisor: llm client is required")
	}
	if renderer == nil {
		return nil, errors.New("advisor: prompt renderer is required")
	}
	if err := cfg.Normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Advisor{cfg: cfg, llm: client, renderer: renderer, now: time.Now}, nil
}

// Config returns the advisor configuration.
func (a *Advisor) Config() Config { return a.cfg }

// Recommend returns the buy recommendations for snap.
func (a *Advisor) Recommend(ctx context.Context, snap Snapshot) ([]Recommendation, error) {
	advice, err := a.Advise(ctx, snap)
	if err != nil {
		return nil, err
	}
	return advice.Recommendations, nil
}

// Advise is Recommend plus the prompt and raw reply. On parse failures the
// returned Advice is still populated so the caller can journal it.
func (a *Advisor) Advise(ctx context.Context, snap Snapshot) (*Advice, error) {
	prompt, err := a.renderer.Render(snap, a.cfg.RiskFraction)
	if err != nil {
		return nil, err
	}
	advice := &Advice{
		Prompt:       prompt,
		PromptDigest: a.renderer.Digest(),
		Timestamp:    a.now(),
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	resp, err := a.llm.Chat(callCtx, &llm.ChatRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: a.cfg.SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:         a.cfg.Temperature,
		MaxCompletionTokens: llm.Int(a.cfg.MaxTokens),
	})
	if err != nil {
		return advice, fmt.Errorf("advisor: %w", err)
	}
	advice.Model = resp.Model
	advice.Response = resp.Text()
	if advice.Response == "" {
		return advice, ErrEmptyResponse
	}

	recs, err := ParseRecommendations(advice.Response)
	if err != nil {
		logx.WithContext(ctx).Errorf("advisor: unparseable reply: %s", advice.Response)
		return advice, err
	}
	advice.Recommendations = recs
	logx.WithContext(ctx).Infof("advisor: %d recommendations from %d candidates", len(recs), len(snap.Candidates))
	return advice, nil
}

// ParseRecommendations decodes the first JSON object in text and requires a
// non-null "recommendations" array. An empty array is valid.
func ParseRecommendations(text string) ([]Recommendation, error) {
	var envelope map[string]json.RawMessage
	if err := llm.ParseStructured(text, &envelope); err != nil {
		return nil, fmt.Errorf("advisor: parse recommendations: %w", err)
	}
	raw, ok := envelope["recommendations"]
	if !ok || string(raw) == "null" {
		return nil, ErrMissingRecommendations
	}
	var recs []Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("advisor: decode recommendations: %w", err)
	}
	if recs == nil {
		recs = []Recommendation{}
	}
	return recs, nil
}
