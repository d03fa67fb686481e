package chain

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"stoic-trader/pkg/confkit"
	"stoic-trader/pkg/ratelimit"
)

// envRPCURL overrides rpc_url of every solana provider.
const envRPCURL = "SOLANA_RPC_URL"

// Config captures one or more chain providers, for example mainnet and a
// paper-trading simulator.
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes how to construct a single provider.
type ProviderConfig struct {
	Type       string `yaml:"type"`
	RPCURL     string `yaml:"rpc_url"`
	Commitment string `yaml:"commitment"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`

	RateLimit ratelimit.Config `yaml:"rate_limit"`

	// Simulator settings.
	SOLBalance    float64          `yaml:"sol_balance"`
	TokenDecimals map[string]uint8 `yaml:"token_decimals"`
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider associates a builder with a provider type.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chain config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read chain config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal chain config: %w", err)
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
	c.Default = confkit.Expand(c.Default)
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		provider.expandEnv()
		if err := provider.parseDurations(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) expandEnv() {
	p.Type = confkit.Expand(p.Type)
	p.RPCURL = confkit.Expand(p.RPCURL)
	if strings.EqualFold(strings.TrimSpace(p.Type), "solana") {
		p.RPCURL = confkit.Override(p.RPCURL, envRPCURL)
	}
	p.Commitment = confkit.Expand(p.Commitment)
	p.TimeoutRaw = confkit.Expand(p.TimeoutRaw)
	p.RateLimit.DelayRaw = confkit.Expand(p.RateLimit.DelayRaw)
}

func (p *ProviderConfig) parseDurations(name string) error {
	scope := "chain provider " + name
	var err error
	if p.Timeout, err = confkit.ParseDuration(scope, "timeout", p.TimeoutRaw, 0); err != nil {
		return err
	}
	if p.RateLimit.Delay, err = confkit.ParseDuration(scope, "rate_limit.delay", p.RateLimit.DelayRaw, 0); err != nil {
		return err
	}
	return nil
}

// Validate ensures all providers have sane configuration.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("chain config: providers cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			return fmt.Errorf("chain config: default provider %q not defined", c.Default)
		}
	} else if len(c.Providers) > 1 {
		return fmt.Errorf("chain config: default is required when several providers are defined")
	}

	for name, provider := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("chain config: provider name cannot be empty")
		}
		if err := provider.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) validate(name string) error {
	if p == nil {
		return fmt.Errorf("chain config: provider %s is nil", name)
	}
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("chain config: provider %s must specify type", name)
	}
	if _, ok := lookupProviderBuilder(p.Type); !ok {
		return fmt.Errorf("chain config: provider %s has unsupported type %q", name, p.Type)
	}
	if strings.EqualFold(p.Type, "solana") && p.RPCURL == "" {
		return fmt.Errorf("chain config: provider %s requires rpc_url", name)
	}
	if p.SOLBalance < 0 {
		return fmt.Errorf("chain config: provider %s sol_balance cannot be negative", name)
	}
	return nil
}

// DefaultName returns the provider used when none is requested explicitly.
func (c *Config) DefaultName() string {
	if c.Default != "" {
		return c.Default
	}
	for name := range c.Providers {
		return name
	}
	return ""
}

// Build instantiates the named provider.
func (c *Config) Build(name string) (Provider, error) {
	providerCfg, ok := c.Providers[name]
	if !ok {
		return nil, fmt.Errorf("chain provider %s: not defined", name)
	}
	builder, ok := lookupProviderBuilder(providerCfg.Type)
	if !ok {
		return nil, fmt.Errorf("chain provider %s: unsupported type %q", name, providerCfg.Type)
	}
	provider, err := builder(name, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("chain provider %s: %w", name, err)
	}
	return provider, nil
}

// BuildDefault instantiates the default provider.
func (c *Config) BuildDefault() (Provider, error) {
	return c.Build(c.DefaultName())
}
