package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"

	announcepkg "stoic-trader/pkg/announce"
	chainpkg "stoic-trader/pkg/chain"
	"stoic-trader/pkg/confkit"
	executorpkg "stoic-trader/pkg/executor"
	llmpkg "stoic-trader/pkg/llm"
	managerpkg "stoic-trader/pkg/manager"
	marketpkg "stoic-trader/pkg/market"
	"stoic-trader/pkg/wallet"
)

// JupiterConf configures the swap aggregator client.
type JupiterConf struct {
	BaseURL    string        `json:",default=https://quote-api.jup.ag/v6"`
	Timeout    time.Duration `json:",default=15s"`
	MaxRetries int           `json:",default=2"`
	// RequestsPerSecond of zero disables the token bucket.
	RequestsPerSecond float64       `json:",default=0"`
	Delay             time.Duration `json:",optional"`
}

type Config struct {
	Name string       `json:",default=stoic-trader"`
	Log  logx.LogConf `json:",optional"`
	// Env indicates the running environment: test | dev | prod
	Env string `json:",default=dev"`
	// Mode is live or paper. Paper mode forces the sim chain provider.
	Mode string `json:",default=paper,options=live|paper"`

	Wallet  wallet.Config `json:",optional"`
	Jupiter JupiterConf   `json:",optional"`

	LLM      confkit.Section[llmpkg.Config]      `json:",optional"`
	Market   confkit.Section[marketpkg.Config]   `json:",optional"`
	Chain    confkit.Section[chainpkg.Config]    `json:",optional"`
	Executor confkit.Section[executorpkg.Config] `json:",optional"`
	Manager  confkit.Section[managerpkg.Config]  `json:",optional"`
	Announce confkit.Section[announcepkg.Config] `json:",optional"`

	mainPath string
	baseDir  string
}

// IsPaper reports whether trades are simulated. The test environment never
// trades live.
func (c *Config) IsPaper() bool {
	return c.Mode == "" || c.Mode == "paper" || c.IsTestEnv()
}

func (c *Config) IsTestEnv() bool {
	return c.Env == "test"
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}

	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.hydrateSections(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "":
		c.Mode = "paper"
	case "live", "paper":
		c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	default:
		return errors.New("config: mode must be one of live|paper")
	}
	if c.Jupiter.MaxRetries < 0 {
		return errors.New("config: jupiter.maxRetries cannot be negative")
	}
	if c.Jupiter.RequestsPerSecond < 0 {
		return errors.New("config: jupiter.requestsPerSecond cannot be negative")
	}
	if c.Mode == "live" && !c.IsTestEnv() {
		if strings.TrimSpace(c.Wallet.PublicKey) == "" && strings.TrimSpace(c.Wallet.PrivateKey) == "" && strings.TrimSpace(c.Wallet.KeyFile) == "" {
			return errors.New("config: live mode needs a wallet (WALLET_PUBLIC_KEY with WALLET_PRIVATE_KEY or WALLET_KEY_FILE)")
		}
	}
	return nil
}

func (c *Config) hydrateSections() error {
	base := c.baseDir

	if err := c.LLM.Hydrate(base, llmpkg.LoadConfig); err != nil {
		return fmt.Errorf("load llm config: %w", err)
	}
	if err := c.Market.Hydrate(base, marketpkg.LoadConfig); err != nil {
		return fmt.Errorf("load market config: %w", err)
	}
	if err := c.Chain.Hydrate(base, chainpkg.LoadConfig); err != nil {
		return fmt.Errorf("load chain config: %w", err)
	}
	if err := c.Executor.Hydrate(base, executorpkg.LoadConfig); err != nil {
		return fmt.Errorf("load executor config: %w", err)
	}
	if err := c.Manager.Hydrate(base, managerpkg.LoadConfig); err != nil {
		return fmt.Errorf("load manager config: %w", err)
	}
	if err := c.Announce.Hydrate(base, announcepkg.LoadConfig); err != nil {
		return fmt.Errorf("load announce config: %w", err)
	}
	return nil
}

// ResolvePath resolves a path relative to the main config directory.
func (c *Config) ResolvePath(p string) string {
	if strings.TrimSpace(p) == "" {
		return p
	}
	return confkit.ResolvePath(c.baseDir, p)
}

func (c *Config) MainPath() string {
	return c.mainPath
}

func (c *Config) BaseDir() string {
	return c.baseDir
}
