package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/internal/config"
	"stoic-trader/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
// Secrets are reported as present or absent only.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Mode: %s", modeLine(cfg)),
		fmt.Sprintf("Wallet: %s", walletLine(cfg)),
		fmt.Sprintf("Jupiter: %s (timeout %s, retries %d)", cfg.Jupiter.BaseURL, cfg.Jupiter.Timeout, cfg.Jupiter.MaxRetries),
		sectionLine("LLM config", cfg.LLM),
		sectionLine("Market config", cfg.Market),
		sectionLine("Chain config", cfg.Chain),
		sectionLine("Executor config", cfg.Executor),
		sectionLine("Manager config", cfg.Manager),
		sectionLine("Announce config", cfg.Announce),
	}
	if cfg.Manager.Configured() {
		s := cfg.Manager.Value.Schedule
		lines = append(lines, fmt.Sprintf("Schedule: %d runs/day %s-%s %s", s.RunsPerDay, s.WindowStart, s.WindowEnd, s.Timezone))
	}
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func modeLine(cfg *config.Config) string {
	if cfg.IsPaper() {
		return "paper"
	}
	return "live"
}

func walletLine(cfg *config.Config) string {
	w := cfg.Wallet
	switch {
	case strings.TrimSpace(w.PublicKey) != "":
		return fmt.Sprintf("%s (signing key %s)", w.PublicKey, presence(w.PrivateKey != "" || w.KeyFile != ""))
	case w.KeyFile != "":
		return "key file " + w.KeyFile
	case w.PrivateKey != "":
		return "raw private key"
	default:
		return "not configured"
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
