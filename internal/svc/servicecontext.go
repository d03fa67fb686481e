package svc

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	solana "github.com/gagliardetto/solana-go"
	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/internal/config"
	advisorpkg "stoic-trader/pkg/advisor"
	announcepkg "stoic-trader/pkg/announce"
	chainpkg "stoic-trader/pkg/chain"
	"stoic-trader/pkg/chain/sim"
	_ "stoic-trader/pkg/chain/solana"
	executorpkg "stoic-trader/pkg/executor"
	"stoic-trader/pkg/exitrule"
	"stoic-trader/pkg/journal"
	"stoic-trader/pkg/jupiter"
	"stoic-trader/pkg/ledger"
	llmpkg "stoic-trader/pkg/llm"
	managerpkg "stoic-trader/pkg/manager"
	marketpkg "stoic-trader/pkg/market"
	"stoic-trader/pkg/market/birdeye"
	"stoic-trader/pkg/pricing"
	"stoic-trader/pkg/ratelimit"
	"stoic-trader/pkg/swap"
	"stoic-trader/pkg/wallet"
)

type ServiceContext struct {
	Config *config.Config

	LLMClient *llmpkg.Client
	Market    marketpkg.Provider
	Chain     chainpkg.Provider
	Wallet    *wallet.Provider
	Jupiter   *jupiter.Client
	Swaps     *swap.Service
	Ledger    *ledger.Store
	Prices    *pricing.Source
	Announcer *announcepkg.Service
	Executor  *executorpkg.Executor
	Seller    *executorpkg.Seller
	Exits     *exitrule.Engine
	Advisor   *advisorpkg.Advisor
	Journal   *journal.Writer
	Manager   *managerpkg.Manager
}

// MustNewServiceContext wires the trader or exits.
func MustNewServiceContext(c *config.Config) *ServiceContext {
	svc, err := NewServiceContext(c)
	logx.Must(err)
	return svc
}

func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	if c == nil {
		return nil, errors.New("svc: config is required")
	}
	for name, ok := range map[string]bool{
		"llm":      c.LLM.Configured(),
		"market":   c.Market.Configured(),
		"chain":    c.Chain.Configured(),
		"executor": c.Executor.Configured(),
	} {
		if !ok {
			return nil, fmt.Errorf("svc: %s config is required", name)
		}
	}
	svc := &ServiceContext{Config: c}

	llmCfg := c.LLM.Value
	// Test runs trade against the simulator with the cheapest configured model.
	if c.IsTestEnv() {
		llmCfg = llmCfg.Clone()
		if _, ok := llmCfg.Model("announcer"); ok {
			llmCfg.DefaultModel = "announcer"
		}
	}
	client, err := llmpkg.NewClient(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("svc: llm client: %w", err)
	}
	svc.LLMClient = client

	mkt, err := birdeye.New(c.Market.Value)
	if err != nil {
		return nil, fmt.Errorf("svc: market provider: %w", err)
	}
	svc.Market = mkt

	provider, name, err := buildChain(c)
	if err != nil {
		return nil, err
	}
	svc.Chain = provider
	logx.Infof("chain provider %s (mode=%s)", name, c.Mode)

	walletCfg := c.Wallet
	walletCfg.KeyFile = c.ResolvePath(walletCfg.KeyFile)
	if c.IsPaper() && walletCfg.PublicKey == "" && walletCfg.PrivateKey == "" && walletCfg.KeyFile == "" {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("svc: paper wallet: %w", err)
		}
		walletCfg.PrivateKey = key.String()
		logx.Infof("paper mode with ephemeral wallet %s", key.PublicKey())
	}
	w, err := wallet.New(walletCfg)
	if err != nil {
		return nil, err
	}
	if !w.CanSign() {
		logx.Infof("wallet %s is read-only; swaps will fail to sign", w.Address())
	}
	svc.Wallet = w

	svc.Jupiter = jupiter.NewClient(
		jupiter.WithBaseURL(c.Jupiter.BaseURL),
		jupiter.WithHTTPClient(&http.Client{Timeout: c.Jupiter.Timeout}),
		jupiter.WithMaxRetries(c.Jupiter.MaxRetries),
		jupiter.WithRateLimit(ratelimit.New(ratelimit.Config{
			RequestsPerSecond: c.Jupiter.RequestsPerSecond,
			Delay:             c.Jupiter.Delay,
		})),
	)

	execCfg := c.Executor.Value
	svc.Swaps = swap.NewService(svc.Jupiter, provider, w, execCfg.SwapOptions())

	mgrCfg := managerpkg.DefaultConfig()
	if c.Manager.Configured() {
		mgrCfg = c.Manager.Value
	}
	svc.Ledger = ledger.New(ledger.Options{WeightedCostBasis: mgrCfg.Ledger.WeightedCostBasis})
	svc.Prices = pricing.NewSource(svc.Jupiter, provider, execCfg.SlippageBps)

	if c.Announce.Configured() {
		annCfg := *c.Announce.Value
		annCfg.Compose.BuyPrompt = c.ResolvePath(annCfg.Compose.BuyPrompt)
		annCfg.Compose.SellPrompt = c.ResolvePath(annCfg.Compose.SellPrompt)
		announcer, err := announcepkg.Build(&annCfg, client)
		if err != nil {
			return nil, err
		}
		svc.Announcer = announcer
	}

	var notify executorpkg.Notifier
	if svc.Announcer != nil {
		notify = svc.Announcer
	}
	svc.Executor, err = executorpkg.New(execCfg, svc.Swaps, provider, svc.Ledger,
		executorpkg.WithNotifier(notify),
		executorpkg.WithMetadata(mkt),
	)
	if err != nil {
		return nil, err
	}
	svc.Seller, err = executorpkg.NewSeller(svc.Swaps, provider, notify, execCfg.TradeTimeout)
	if err != nil {
		return nil, err
	}

	rules, err := mgrCfg.ExitRules.Rules()
	if err != nil {
		return nil, err
	}
	svc.Exits, err = exitrule.NewEngine(rules, svc.Ledger, svc.Prices, svc.Seller)
	if err != nil {
		return nil, err
	}

	renderer, err := advisorpkg.NewPromptRenderer(c.ResolvePath(execCfg.Advisor.PromptPath))
	if err != nil {
		return nil, fmt.Errorf("svc: advisor prompt: %w", err)
	}
	svc.Advisor, err = advisorpkg.New(execCfg.Advisor, client, renderer)
	if err != nil {
		return nil, err
	}

	if mgrCfg.Journal.Enabled {
		svc.Journal, err = journal.NewWriter(mgrCfg.Journal.Dir)
		if err != nil {
			return nil, err
		}
	}

	svc.Manager, err = managerpkg.NewManager(mgrCfg, managerpkg.Deps{
		Wallet:   w.Address(),
		Balances: provider,
		Market:   mkt,
		Advisor:  svc.Advisor,
		Buyer:    svc.Executor,
		Exits:    svc.Exits,
		Journal:  svc.Journal,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// buildChain returns the default provider, or in paper mode the first sim
// provider. Paper mode without a configured simulator gets a fresh one.
func buildChain(c *config.Config) (chainpkg.Provider, string, error) {
	cfg := c.Chain.Value
	if !c.IsPaper() {
		name := cfg.DefaultName()
		p, err := cfg.Build(name)
		return p, name, err
	}
	if p, ok := cfg.Providers[cfg.DefaultName()]; ok && p.Type == "sim" {
		built, err := cfg.Build(cfg.DefaultName())
		return built, cfg.DefaultName(), err
	}
	names := make([]string, 0, len(cfg.Providers))
	for n, p := range cfg.Providers {
		if p.Type == "sim" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return sim.New(), "sim", nil
	}
	sort.Strings(names)
	p, err := cfg.Build(names[0])
	return p, names[0], err
}
