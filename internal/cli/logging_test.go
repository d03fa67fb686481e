package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"stoic-trader/internal/config"
	"stoic-trader/pkg/confkit"
	"stoic-trader/pkg/llm"
	"stoic-trader/pkg/wallet"
)

func TestConfigSummaryLinesHidesSecrets(t *testing.T) {
	cfg := &config.Config{
		Env:    "dev",
		Mode:   "live",
		Wallet: wallet.Config{PublicKey: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", PrivateKey: "super-secret"},
		LLM:    confkit.Section[llm.Config]{File: "/etc/llm.yaml", Value: &llm.Config{}},
	}
	lines := ConfigSummaryLines(cfg)
	joined := strings.Join(lines, "\n")

	assert.Contains(t, joined, "Mode: live")
	assert.Contains(t, joined, "signing key configured")
	assert.Contains(t, joined, "LLM config: /etc/llm.yaml")
	assert.Contains(t, joined, "Market config: not configured")
	assert.NotContains(t, joined, "super-secret")
}

func TestConfigSummaryLinesNil(t *testing.T) {
	assert.Equal(t, []string{"Configuration: <nil>"}, ConfigSummaryLines(nil))
}
