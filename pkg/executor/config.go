package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"stoic-trader/pkg/advisor"
	"stoic-trader/pkg/chain"
	"stoic-trader/pkg/confkit"
	"stoic-trader/pkg/swap"
)

// Config controls runtime behaviour for the executor module.
type Config struct {
	// SafetyMarginRaw is kept back from every spend, in SOL.
	SafetyMarginRaw               string          `yaml:"safety_margin_sol"`
	SafetyMargin                  decimal.Decimal `yaml:"-"`
	SlippageBps                   int             `yaml:"slippage_bps"`
	ComputeUnitPriceMicroLamports int64           `yaml:"compute_unit_price_micro_lamports"`
	ExplorerURL                   string          `yaml:"explorer_url"`
	// MaxTradesPerCycle caps successful buys per batch. Zero means no cap.
	MaxTradesPerCycle int             `yaml:"max_trades_per_cycle"`
	Broadcast         BroadcastConfig `yaml:"broadcast"`

	TradeTimeoutRaw string        `yaml:"trade_timeout"`
	TradeTimeout    time.Duration `yaml:"-"`

	Advisor advisor.Config `yaml:"advisor"`
}

// BroadcastConfig mirrors the sendTransaction options.
type BroadcastConfig struct {
	SkipPreflight       bool   `yaml:"skip_preflight"`
	PreflightCommitment string `yaml:"preflight_commitment"`
	MaxRetries          *uint  `yaml:"max_retries"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open executor config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads executor configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/executor.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read executor config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal executor config: %w", err)
	}
	if err := cfg.Normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = cfg.Normalise()
	return cfg
}

// Normalise applies defaults, expands env references and parses raw values.
func (c *Config) Normalise() error {
	c.SafetyMarginRaw = confkit.Expand(c.SafetyMarginRaw)
	c.ExplorerURL = confkit.Expand(c.ExplorerURL)
	c.Broadcast.PreflightCommitment = strings.ToLower(confkit.Expand(c.Broadcast.PreflightCommitment))

	if c.SafetyMarginRaw == "" {
		c.SafetyMarginRaw = "0.01"
	}
	if c.SlippageBps == 0 {
		c.SlippageBps = 50
	}
	if c.ComputeUnitPriceMicroLamports == 0 {
		c.ComputeUnitPriceMicroLamports = 2_000_000
	}
	if c.ExplorerURL == "" {
		c.ExplorerURL = swap.DefaultExplorerURL
	}
	if c.Broadcast.PreflightCommitment == "" {
		c.Broadcast.PreflightCommitment = "confirmed"
	}
	if c.Broadcast.MaxRetries == nil {
		n := uint(3)
		c.Broadcast.MaxRetries = &n
	}

	margin, err := decimal.NewFromString(c.SafetyMarginRaw)
	if err != nil {
		return fmt.Errorf("executor config: invalid safety_margin_sol %q: %w", c.SafetyMarginRaw, err)
	}
	c.SafetyMargin = margin

	fallback := c.TradeTimeout
	if fallback <= 0 {
		fallback = 90 * time.Second
	}
	if c.TradeTimeout, err = confkit.ParseDuration("executor config", "trade_timeout", c.TradeTimeoutRaw, fallback); err != nil {
		return err
	}
	return c.Advisor.Normalise()
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.SafetyMargin.IsNegative() {
		return errors.New("executor config: safety_margin_sol cannot be negative")
	}
	if c.SlippageBps <= 0 || c.SlippageBps > 10_000 {
		return fmt.Errorf("executor config: slippage_bps must be within (0,10000], got %d", c.SlippageBps)
	}
	if c.ComputeUnitPriceMicroLamports < 0 {
		return errors.New("executor config: compute_unit_price_micro_lamports cannot be negative")
	}
	if strings.Count(c.ExplorerURL, "%s") != 1 {
		return errors.New("executor config: explorer_url must contain exactly one %s")
	}
	if c.MaxTradesPerCycle < 0 {
		return errors.New("executor config: max_trades_per_cycle cannot be negative")
	}
	switch c.Broadcast.PreflightCommitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("executor config: unsupported preflight_commitment %q", c.Broadcast.PreflightCommitment)
	}
	return c.Advisor.Validate()
}

// SwapOptions converts the config into swap service options.
func (c *Config) SwapOptions() swap.Options {
	opts := swap.Options{
		SlippageBps:                   c.SlippageBps,
		ComputeUnitPriceMicroLamports: c.ComputeUnitPriceMicroLamports,
		ExplorerURL:                   c.ExplorerURL,
		Broadcast: chain.BroadcastOptions{
			SkipPreflight:       c.Broadcast.SkipPreflight,
			PreflightCommitment: c.Broadcast.PreflightCommitment,
			MaxRetries:          3,
		},
	}
	if c.Broadcast.MaxRetries != nil {
		opts.Broadcast.MaxRetries = *c.Broadcast.MaxRetries
	}
	return opts
}
