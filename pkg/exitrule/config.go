package exitrule

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config is the YAML form of Rules, embedded by the manager config.
type Config struct {
	Mode          string       `yaml:"mode"`
	StopLossRatio float64      `yaml:"stop_loss_ratio"`
	Tiers         []TierConfig `yaml:"tiers"`
}

// TierConfig is the YAML form of Tier.
type TierConfig struct {
	Ratio    float64 `yaml:"ratio"`
	Fraction float64 `yaml:"fraction"`
}

// Rules converts the config into a validated schedule. Missing values fall
// back to DefaultRules. Tier counts follow list order starting at 1.
func (c Config) Rules() (Rules, error) {
	rules := DefaultRules()
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return Rules{}, err
	}
	rules.Mode = mode
	if c.StopLossRatio > 0 {
		rules.StopLossRatio = decimal.NewFromFloat(c.StopLossRatio)
	}
	if len(c.Tiers) > 0 {
		rules.Tiers = make([]Tier, 0, len(c.Tiers))
		for i, tc := range c.Tiers {
			rules.Tiers = append(rules.Tiers, Tier{
				Ratio:    decimal.NewFromFloat(tc.Ratio),
				Fraction: decimal.NewFromFloat(tc.Fraction),
				Count:    i + 1,
			})
		}
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("exit rules config: %w", err)
	}
	return rules, nil
}
