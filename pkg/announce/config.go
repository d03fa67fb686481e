package announce

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stoic-trader/pkg/confkit"
	"stoic-trader/pkg/llm"
	"stoic-trader/pkg/ratelimit"
)

const (
	defaultModel        = "announcer"
	defaultSystemPrompt = "You are ChatGPT, a crypto trading expert."
	defaultTemperature  = 0.6
	defaultMaxTokens    = 280
	defaultMaxLength    = 280
	defaultTimeout      = 60 * time.Second

	envXToken         = "X_BEARER_TOKEN"
	envTelegramToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramChatID = "TELEGRAM_CHAT_ID"
)

// Config controls where and how announcements are published.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// DryRun composes posts but only logs them.
	DryRun bool `yaml:"dry_run"`

	Compose  ComposeConfig    `yaml:"compose"`
	X        XConfig          `yaml:"x"`
	Telegram TelegramConfig   `yaml:"telegram"`
	Rate     ratelimit.Config `yaml:"rate_limit"`
}

// ComposeConfig tunes LLM-written posts.
type ComposeConfig struct {
	// UseLLM falls back to fixed templates when false.
	UseLLM       bool     `yaml:"use_llm"`
	Model        string   `yaml:"model"`
	SystemPrompt string   `yaml:"system_prompt"`
	Temperature  *float64 `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
	MaxLength    int      `yaml:"max_length"`
	BuyPrompt    string   `yaml:"buy_prompt"`
	SellPrompt   string   `yaml:"sell_prompt"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

// XConfig holds X (Twitter) API v2 credentials.
type XConfig struct {
	BearerToken string `yaml:"bearer_token"`
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open announce config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read announce config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal announce config: %w", err)
	}
	if err := cfg.Normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalise expands env references and fills defaults.
func (c *Config) Normalise() error {
	c.X.BearerToken = confkit.Override(c.X.BearerToken, envXToken)
	c.Telegram.BotToken = confkit.Override(c.Telegram.BotToken, envTelegramToken)
	c.Telegram.ChatID = confkit.Override(c.Telegram.ChatID, envTelegramChatID)
	c.Compose.Model = confkit.Expand(c.Compose.Model)
	c.Compose.BuyPrompt = confkit.Expand(c.Compose.BuyPrompt)
	c.Compose.SellPrompt = confkit.Expand(c.Compose.SellPrompt)

	if c.Compose.Model == "" {
		c.Compose.Model = defaultModel
	}
	if c.Compose.SystemPrompt == "" {
		c.Compose.SystemPrompt = defaultSystemPrompt
	}
	if c.Compose.Temperature == nil {
		c.Compose.Temperature = llm.Float(defaultTemperature)
	}
	if c.Compose.MaxTokens <= 0 {
		c.Compose.MaxTokens = defaultMaxTokens
	}
	if c.Compose.MaxLength <= 0 {
		c.Compose.MaxLength = defaultMaxLength
	}

	var err error
	fallback := c.Compose.Timeout
	if fallback <= 0 {
		fallback = defaultTimeout
	}
	if c.Compose.Timeout, err = confkit.ParseDuration("announce config", "compose.timeout", confkit.Expand(c.Compose.TimeoutRaw), fallback); err != nil {
		return err
	}
	if c.Rate.Delay, err = confkit.ParseDuration("announce config", "rate_limit.delay", confkit.Expand(c.Rate.DelayRaw), c.Rate.Delay); err != nil {
		return err
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if t := *c.Compose.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("announce config: compose.temperature must be within [0,2]")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("announce config: telegram needs both bot_token and chat_id")
	}
	if c.Rate.RequestsPerSecond < 0 {
		return fmt.Errorf("announce config: rate_limit.requests_per_second cannot be negative")
	}
	return nil
}

// Senders builds the configured channels. Disabled or dry-run configs, and
// configs without any credentials, only log.
func (c *Config) Senders() []Sender {
	if !c.Enabled || c.DryRun {
		return []Sender{LogSender{}}
	}
	var out []Sender
	if strings.TrimSpace(c.X.BearerToken) != "" {
		out = append(out, NewXSender(c.X.BearerToken))
	}
	if c.Telegram.BotToken != "" {
		out = append(out, NewTelegramSender(c.Telegram.BotToken, c.Telegram.ChatID))
	}
	if len(out) == 0 {
		out = append(out, LogSender{})
	}
	return out
}

// ComposerConfig converts the compose block.
func (c *Config) ComposerConfig() ComposerConfig {
	return ComposerConfig{
		Model:        c.Compose.Model,
		SystemPrompt: c.Compose.SystemPrompt,
		Temperature:  *c.Compose.Temperature,
		MaxTokens:    c.Compose.MaxTokens,
		MaxLength:    c.Compose.MaxLength,
		Timeout:      c.Compose.Timeout,
	}
}
