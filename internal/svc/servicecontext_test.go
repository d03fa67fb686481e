package svc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoic-trader/internal/config"
	"stoic-trader/pkg/chain/sim"
	"stoic-trader/pkg/confkit"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func loadConfig(t *testing.T, main, chain string) *config.Config {
	t.Helper()
	for _, k := range []string{"WALLET_PUBLIC_KEY", "WALLET_PRIVATE_KEY", "WALLET_KEY_FILE", "WALLET_KEY_PASSWORD"} {
		t.Setenv(k, "")
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("BIRDEYE_API_KEY", "be-test")

	dir := t.TempDir()
	writeFile(t, dir, "llm.yaml", "default_model: gpt-4\nmodels:\n  announcer:\n    model_name: gpt-4o-mini\n")
	writeFile(t, dir, "market.yaml", "strategy: round_robin\n")
	writeFile(t, dir, "chain.yaml", chain)
	writeFile(t, dir, "executor.yaml", "advisor:\n  prompt: "+confkit.MustProjectPath("etc/prompts/recommend.tmpl")+"\n")
	writeFile(t, dir, "manager.yaml", "schedule:\n  disabled: true\njournal:\n  enabled: true\n  dir: journal\nledger:\n  weighted_cost_basis: true\n")
	writeFile(t, dir, "announce.yaml", "enabled: false\n")
	path := writeFile(t, dir, "trader.yaml", main+`
LLM:
  File: llm.yaml
Market:
  File: market.yaml
Chain:
  File: chain.yaml
Executor:
  File: executor.yaml
Manager:
  File: manager.yaml
Announce:
  File: announce.yaml
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestPaperModeWiresSimulatorAndEphemeralWallet(t *testing.T) {
	cfg := loadConfig(t, "Mode: paper", `default: mainnet
providers:
  mainnet:
    type: solana
    rpc_url: https://api.mainnet-beta.solana.com
  paper:
    type: sim
    sol_balance: 2
`)

	svc, err := NewServiceContext(cfg)
	require.NoError(t, err)

	simChain, ok := svc.Chain.(*sim.Provider)
	require.True(t, ok, "paper mode must broadcast to the simulator")
	lamports, err := simChain.Balance(context.Background(), svc.Wallet.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000_000), lamports)

	assert.True(t, svc.Wallet.CanSign())
	assert.NotNil(t, svc.Manager)
	assert.NotNil(t, svc.Exits)
	assert.NotNil(t, svc.Seller)
	assert.NotNil(t, svc.Journal)
	assert.Equal(t, filepath.Join(cfg.BaseDir(), "journal"), svc.Journal.Dir())
	assert.NotNil(t, svc.Announcer)
	assert.Zero(t, svc.Manager.Config().Schedule.RunsPerDay)
}

func TestPaperModeWithoutSimulatorBuildsOne(t *testing.T) {
	cfg := loadConfig(t, "Mode: paper", `providers:
  mainnet:
    type: solana
    rpc_url: https://api.mainnet-beta.solana.com
`)

	svc, err := NewServiceContext(cfg)
	require.NoError(t, err)
	_, ok := svc.Chain.(*sim.Provider)
	assert.True(t, ok)
}

func TestMissingSectionsFail(t *testing.T) {
	_, err := NewServiceContext(&config.Config{Mode: "paper"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")

	_, err = NewServiceContext(nil)
	require.Error(t, err)
}
