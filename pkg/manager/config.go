package manager

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"stoic-trader/pkg/confkit"
	"stoic-trader/pkg/exitrule"
)

// Config defines the manager configuration schema.
type Config struct {
	Schedule    ScheduleConfig    `yaml:"schedule"`
	BalanceGate BalanceGateConfig `yaml:"balance_gate"`
	Journal     JournalConfig     `yaml:"journal"`
	ExitRules   exitrule.Config   `yaml:"exit_rules"`
	Ledger      LedgerConfig      `yaml:"ledger"`

	// ExitSweepInterval spaces the exit sweeps between cycles.
	ExitSweepInterval    time.Duration `yaml:"-"`
	ExitSweepIntervalRaw string        `yaml:"exit_sweep_interval"`
	// CycleTimeout bounds one cycle, sweeps included.
	CycleTimeout    time.Duration `yaml:"-"`
	CycleTimeoutRaw string        `yaml:"cycle_timeout"`

	baseDir string
}

// ScheduleConfig picks RunsPerDay random run times per day inside the window.
type ScheduleConfig struct {
	RunsPerDay int `yaml:"runs_per_day"`
	// Disabled turns scheduled cycles off. Exit sweeps keep running.
	Disabled bool   `yaml:"disabled"`
	Timezone string `yaml:"timezone"`
	// WindowStart and WindowEnd are "HH:MM" bounds. The default window is the
	// whole day.
	WindowStart string `yaml:"window_start"`
	WindowEnd   string `yaml:"window_end"`
	RunOnStart  bool   `yaml:"run_on_start"`

	location *time.Location
	start    time.Duration
	end      time.Duration
}

// BalanceGateConfig is the minimum wallet value needed to start a cycle. The
// gate passes when either threshold is met.
type BalanceGateConfig struct {
	MinSOLRaw string          `yaml:"min_sol"`
	MinUSDRaw string          `yaml:"min_usd"`
	MinSOL    decimal.Decimal `yaml:"-"`
	MinUSD    decimal.Decimal `yaml:"-"`
}

// JournalConfig controls the per-cycle audit files.
type JournalConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	IncludePrompt bool   `yaml:"include_prompt"`
}

// LedgerConfig tunes position bookkeeping.
type LedgerConfig struct {
	WeightedCostBasis bool `yaml:"weighted_cost_basis"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manager config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file, filepath.Dir(path))
}

// LoadConfigFromReader constructs a Config from a reader with the provided base directory.
func LoadConfigFromReader(r io.Reader, baseDir string) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manager config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal manager config: %w", err)
	}
	cfg.baseDir = baseDir
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

// Normalise applies defaults, expands fields and parses raw values.
func (c *Config) Normalise() error {
	c.applyDefaults()
	c.expandFields()
	return c.parseFields()
}

func (c *Config) applyDefaults() {
	switch {
	case c.Schedule.Disabled:
		c.Schedule.RunsPerDay = 0
	case c.Schedule.RunsPerDay == 0:
		c.Schedule.RunsPerDay = 3
	}
	if strings.TrimSpace(c.Schedule.Timezone) == "" {
		c.Schedule.Timezone = "Local"
	}
	if strings.TrimSpace(c.Schedule.WindowStart) == "" {
		c.Schedule.WindowStart = "00:00"
	}
	if strings.TrimSpace(c.Schedule.WindowEnd) == "" {
		c.Schedule.WindowEnd = "24:00"
	}
	if strings.TrimSpace(c.BalanceGate.MinSOLRaw) == "" {
		c.BalanceGate.MinSOLRaw = "0.1"
	}
	if strings.TrimSpace(c.BalanceGate.MinUSDRaw) == "" {
		c.BalanceGate.MinUSDRaw = "20"
	}
	if strings.TrimSpace(c.ExitSweepIntervalRaw) == "" {
		c.ExitSweepIntervalRaw = "10m"
	}
	if strings.TrimSpace(c.CycleTimeoutRaw) == "" {
		c.CycleTimeoutRaw = "30m"
	}
	if strings.TrimSpace(c.Journal.Dir) == "" {
		c.Journal.Dir = "journal"
	}
}

func (c *Config) expandFields() {
	c.Schedule.Timezone = confkit.Expand(c.Schedule.Timezone)
	c.BalanceGate.MinSOLRaw = confkit.Expand(c.BalanceGate.MinSOLRaw)
	c.BalanceGate.MinUSDRaw = confkit.Expand(c.BalanceGate.MinUSDRaw)
	c.Journal.Dir = c.resolvePath(c.Journal.Dir)
}

func (c *Config) parseFields() error {
	var err error
	if c.ExitSweepInterval, err = confkit.ParseDuration("manager config", "exit_sweep_interval", c.ExitSweepIntervalRaw, 0); err != nil {
		return err
	}
	if c.CycleTimeout, err = confkit.ParseDuration("manager config", "cycle_timeout", c.CycleTimeoutRaw, 0); err != nil {
		return err
	}
	if c.BalanceGate.MinSOL, err = decimal.NewFromString(c.BalanceGate.MinSOLRaw); err != nil {
		return fmt.Errorf("manager config: invalid balance_gate.min_sol %q: %w", c.BalanceGate.MinSOLRaw, err)
	}
	if c.BalanceGate.MinUSD, err = decimal.NewFromString(c.BalanceGate.MinUSDRaw); err != nil {
		return fmt.Errorf("manager config: invalid balance_gate.min_usd %q: %w", c.BalanceGate.MinUSDRaw, err)
	}
	if c.Schedule.location, err = time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("manager config: invalid schedule.timezone %q: %w", c.Schedule.Timezone, err)
	}
	if c.Schedule.start, err = parseClock("schedule.window_start", c.Schedule.WindowStart); err != nil {
		return err
	}
	if c.Schedule.end, err = parseClock("schedule.window_end", c.Schedule.WindowEnd); err != nil {
		return err
	}
	return nil
}

func (c *Config) resolvePath(path string) string {
	path = confkit.Expand(path)
	if path == "" || filepath.IsAbs(path) || c.baseDir == "" {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.Schedule.RunsPerDay < 0 {
		return errors.New("manager config: schedule.runs_per_day cannot be negative")
	}
	if c.Schedule.end <= c.Schedule.start {
		return fmt.Errorf("manager config: schedule.window_end %s must be after window_start %s", c.Schedule.WindowEnd, c.Schedule.WindowStart)
	}
	if c.BalanceGate.MinSOL.IsNegative() || c.BalanceGate.MinUSD.IsNegative() {
		return errors.New("manager config: balance_gate thresholds cannot be negative")
	}
	if _, err := c.ExitRules.Rules(); err != nil {
		return fmt.Errorf("manager config: %w", err)
	}
	return nil
}

// Location returns the schedule time zone.
func (s ScheduleConfig) Location() *time.Location {
	if s.location == nil {
		return time.Local
	}
	return s.location
}

// parseClock parses "HH:MM" into an offset from midnight. "24:00" is accepted
// as the end of the day.
func parseClock(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	var h, m int
	if _, err := fmt.Sscanf(value, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("manager config: invalid %s %q: want HH:MM", field, value)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("manager config: %s %q out of range", field, value)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
