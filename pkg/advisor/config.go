package advisor

import (
	"fmt"
	"strings"
	"time"

	"stoic-trader/pkg/confkit"
)

const (
	defaultRiskFraction = 0.20
	defaultModel        = "advisor"
	defaultSystemPrompt = "You are ChatGPT, a crypto trading expert."
	defaultPromptPath   = "prompts/recommend.tmpl"
	defaultTemperature  = 0.0
	defaultMaxTokens    = 800
	defaultTimeout      = 60 * time.Second
)

// Config tunes the recommendation call.
type Config struct {
	// Model is an llm model alias or a raw model name.
	Model        string   `yaml:"model"`
	PromptPath   string   `yaml:"prompt"`
	SystemPrompt string   `yaml:"system_prompt"`
	RiskFraction float64  `yaml:"risk_fraction"`
	Temperature  *float64 `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	cfg := Config{}
	_ = cfg.Normalise()
	return cfg
}

// Normalise applies defaults and parses durations. It is idempotent.
func (c *Config) Normalise() error {
	c.Model = confkit.Expand(c.Model)
	c.PromptPath = confkit.Expand(c.PromptPath)
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.PromptPath == "" {
		c.PromptPath = defaultPromptPath
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.RiskFraction == 0 {
		c.RiskFraction = defaultRiskFraction
	}
	if c.Temperature == nil {
		t := defaultTemperature
		c.Temperature = &t
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	fallback := c.Timeout
	if fallback <= 0 {
		fallback = defaultTimeout
	}
	d, err := confkit.ParseDuration("advisor config", "timeout", c.TimeoutRaw, fallback)
	if err != nil {
		return err
	}
	c.Timeout = d
	return nil
}

// Validate checks ranges.
func (c *Config) Validate() error {
	if c.RiskFraction <= 0 || c.RiskFraction > 1 {
		return fmt.Errorf("advisor config: risk_fraction must be within (0,1], got %v", c.RiskFraction)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("advisor config: temperature must be within [0,2]")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("advisor config: max_tokens must be positive")
	}
	return nil
}
