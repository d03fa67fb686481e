package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stoic-trader/pkg/confkit"
	"stoic-trader/pkg/ratelimit"
)

const (
	defaultBaseURL     = "https://public-api.birdeye.so"
	defaultChain       = "solana"
	defaultLimit       = 20
	defaultTimeout     = 10 * time.Second
	defaultMaxRetries  = 3
	defaultDescription = 100

	envAPIKey = "BIRDEYE_API_KEY"
)

// Config describes the market data source.
type Config struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Chain    string `yaml:"chain"`
	Strategy string `yaml:"strategy"`
	Limit    int    `yaml:"limit"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
	MaxRetries int           `yaml:"max_retries"`

	RateLimit ratelimit.Config `yaml:"rate_limit"`

	// DescriptionLimit truncates token descriptions in metadata.
	DescriptionLimit int `yaml:"description_limit"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	c.BaseURL = confkit.Expand(c.BaseURL)
	c.APIKey = confkit.Override(c.APIKey, envAPIKey)
	c.Chain = confkit.Expand(c.Chain)
	c.Strategy = strings.ToLower(confkit.Expand(c.Strategy))
	c.TimeoutRaw = confkit.Expand(c.TimeoutRaw)
	c.RateLimit.DelayRaw = confkit.Expand(c.RateLimit.DelayRaw)

	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Chain == "" {
		c.Chain = defaultChain
	}
	if c.Strategy == "" {
		c.Strategy = StrategyRandom
	}
	if c.Limit <= 0 {
		c.Limit = defaultLimit
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.DescriptionLimit <= 0 {
		c.DescriptionLimit = defaultDescription
	}

	var err error
	if c.Timeout, err = confkit.ParseDuration("market config", "timeout", c.TimeoutRaw, defaultTimeout); err != nil {
		return err
	}
	if c.RateLimit.Delay, err = confkit.ParseDuration("market config", "rate_limit.delay", c.RateLimit.DelayRaw, 0); err != nil {
		return err
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("market config: api_key is required (set %s)", envAPIKey)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("market config: max_retries cannot be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("market config: rate_limit.requests_per_second cannot be negative")
	}
	if _, err := NewSelector(DefaultEndpoints(c.Limit), c.Strategy, nil); err != nil {
		return fmt.Errorf("market config: %w", err)
	}
	return nil
}
