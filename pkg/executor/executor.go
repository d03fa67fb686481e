// Package executor turns advisor recommendations into on-chain buys and
// liquidates positions for the exit rule engine.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/advisor"
	"stoic-trader/pkg/amount"
	"stoic-trader/pkg/announce"
	"stoic-trader/pkg/jupiter"
	"stoic-trader/pkg/ledger"
	"stoic-trader/pkg/market"
	"stoic-trader/pkg/swap"
)

// Swapper quotes and executes swaps for the wallet.
type Swapper interface {
	Quote(ctx context.Context, input, output string, baseAmount decimal.Decimal) (*jupiter.Quote, error)
	Execute(ctx context.Context, quote *jupiter.Quote) (*swap.Result, error)
}

// Notifier announces completed trades. Implementations must not block trading
// on delivery failures.
type Notifier interface {
	AnnounceBuy(ctx context.Context, ev announce.BuyEvent)
	AnnounceSell(ctx context.Context, ev announce.SellEvent)
}

// MetadataSource looks up token names and descriptions for announcements.
type MetadataSource interface {
	TokenMetadata(ctx context.Context, addresses []string) (map[string]market.TokenMeta, error)
}

// Status is the terminal state of one recommendation.
type Status string

const (
	StatusBought   Status = "bought"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
	StatusFatal    Status = "fatal"
)

// Outcome records what happened to one recommendation.
type Outcome struct {
	Index        int             `json:"index"`
	Ticker       string          `json:"ticker"`
	TokenAddress string          `json:"token_address"`
	Status       Status          `json:"status"`
	SpentSOL     decimal.Decimal `json:"spent_sol"`
	Acquired     decimal.Decimal `json:"acquired"`
	Signature    string          `json:"signature,omitempty"`
	ExplorerURL  string          `json:"explorer_url,omitempty"`
	Error        string          `json:"error,omitempty"`
	Err          error           `json:"-"`
}

// Report summarises one batch.
type Report struct {
	Outcomes []Outcome       `json:"outcomes"`
	Bought   int             `json:"bought"`
	SpentSOL decimal.Decimal `json:"spent_sol"`
}

// Failed counts recommendations that did not end in a buy.
func (r Report) Failed() int {
	return len(r.Outcomes) - r.Bought
}

// Option customises an Executor.
type Option func(*Executor)

// WithNotifier announces buys through n.
func WithNotifier(n Notifier) Option {
	return func(e *Executor) { e.notify = n }
}

// WithMetadata enriches buy announcements with token metadata.
func WithMetadata(m MetadataSource) Option {
	return func(e *Executor) { e.meta = m }
}

// Executor runs the per-recommendation buy pipeline. Buys are strictly
// sequential because they all spend from one wallet.
type Executor struct {
	cfg      *Config
	swaps    Swapper
	decimals amount.DecimalsSource
	book     *ledger.Store
	notify   Notifier
	meta     MetadataSource

	mu     sync.Mutex
	recent map[string]time.Time
}

// New constructs an Executor.
func New(cfg *Config, swaps Swapper, decimals amount.DecimalsSource, book *ledger.Store, opts ...Option) (*Executor, error) {
	if cfg == nil {
		return nil, errors.New("executor: config is required")
	}
	if swaps == nil {
		return nil, errors.New("executor: swapper is required")
	}
	if decimals == nil {
		return nil, errors.New("executor: decimals source is required")
	}
	if book == nil {
		return nil, errors.New("executor: ledger is required")
	}
	e := &Executor{
		cfg:      cfg,
		swaps:    swaps,
		decimals: decimals,
		book:     book,
		recent:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// GetConfig returns the underlying configuration.
func (e *Executor) GetConfig() *Config { return e.cfg }

// Execute processes recs in order against balance (in SOL). Each
// recommendation stops at its first failure and the batch moves on; only a
// signer mismatch or cancellation aborts the batch, and that error is
// returned alongside the partial report.
func (e *Executor) Execute(ctx context.Context, balance decimal.Decimal, recs []advisor.Recommendation) (Report, error) {
	report := Report{SpentSOL: decimal.Zero}
	norm := amount.NewNormalizer(e.decimals)
	available := balance

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if e.cfg.MaxTradesPerCycle > 0 && report.Bought >= e.cfg.MaxTradesPerCycle {
			logx.WithContext(ctx).Infof("executor: trade cap %d reached, ignoring %d remaining recommendation(s)", e.cfg.MaxTradesPerCycle, len(recs)-i)
			break
		}

		out := e.executeOne(ctx, norm, rec, available)
		out.Index = i
		if out.Err != nil {
			out.Error = out.Err.Error()
		}
		report.Outcomes = append(report.Outcomes, out)

		switch out.Status {
		case StatusBought:
			report.Bought++
			report.SpentSOL = report.SpentSOL.Add(out.SpentSOL)
			available = available.Sub(out.SpentSOL)
		case StatusFatal:
			logx.WithContext(ctx).Errorf("executor: aborting batch: %v", out.Err)
			return report, out.Err
		default:
			logx.WithContext(ctx).Infof("executor: recommendation %d (%s) %s: %v", i, out.Ticker, out.Status, out.Err)
		}
	}
	return report, nil
}

func (e *Executor) executeOne(ctx context.Context, norm *amount.Normalizer, rec advisor.Recommendation, available decimal.Decimal) Outcome {
	out := Outcome{Ticker: rec.Ticker, TokenAddress: rec.OutputTokenCA}
	reject := func(err error) Outcome {
		out.Status, out.Err = StatusRejected, err
		return out
	}
	fail := func(err error) Outcome {
		out.Status, out.Err = StatusFailed, err
		if errors.Is(err, swap.ErrSignerMismatch) {
			out.Status = StatusFatal
		}
		return out
	}

	o, err := validate(rec, available, e.cfg.SafetyMargin)
	if err != nil {
		return reject(err)
	}
	out.Ticker, out.TokenAddress = o.Ticker, o.Output
	if e.RecentlyPurchased(o.Output) {
		return reject(fmt.Errorf("%w: %s", ErrRecentlyPurchased, o.Output))
	}

	base, err := norm.ToBaseUnits(ctx, o.Input, o.SpendSOL)
	if err != nil {
		return fail(fmt.Errorf("executor: normalize spend: %w", err))
	}
	base = base.Floor()
	if !base.IsPositive() {
		return reject(fmt.Errorf("%w: %s SOL", ErrNonPositiveAmount, o.SpendSOL))
	}
	outDecimals, err := norm.Decimals(ctx, o.Output)
	if err != nil {
		return fail(fmt.Errorf("executor: decimals of %s: %w", o.Output, err))
	}

	tradeCtx, cancel := context.WithTimeout(ctx, e.cfg.TradeTimeout)
	defer cancel()

	quote, err := e.swaps.Quote(tradeCtx, o.Input, o.Output, base)
	if err != nil {
		return fail(fmt.Errorf("executor: quote: %w", err))
	}
	res, err := e.swaps.Execute(tradeCtx, quote)
	if err != nil {
		return fail(err)
	}

	out.Status = StatusBought
	out.SpentSOL = o.SpendSOL
	out.Signature = res.Signature
	out.ExplorerURL = res.ExplorerURL
	out.Acquired = amount.FromBase(quote.OutAmountBase(), outDecimals)

	if pos, ok := e.book.RecordBuy(o.Output, o.Ticker, o.SpendSOL, out.Acquired); ok {
		logx.WithContext(ctx).Infof("executor: bought %s %s for %s SOL, cost basis %s, sig=%s",
			out.Acquired, o.Ticker, o.SpendSOL, pos.CostBasis, res.Signature)
	} else {
		logx.WithContext(ctx).Errorf("executor: bought %s but acquired amount %s is unusable, ledger unchanged", o.Ticker, out.Acquired)
	}
	e.markPurchased(o.Output)
	e.announceBuy(ctx, o, res)
	return out
}

func (e *Executor) announceBuy(ctx context.Context, o order, res *swap.Result) {
	if e.notify == nil {
		return
	}
	ev := announce.BuyEvent{
		Ticker:      o.Ticker,
		Address:     o.Output,
		AmountSOL:   o.SpendSOL,
		ExplorerURL: res.ExplorerURL,
	}
	if e.meta != nil {
		metas, err := e.meta.TokenMetadata(ctx, []string{o.Output})
		if err != nil {
			logx.WithContext(ctx).Errorf("executor: metadata for %s: %v", o.Output, err)
		} else if m, ok := metas[o.Output]; ok {
			ev.Meta = m
		}
	}
	e.notify.AnnounceBuy(ctx, ev)
}

// RecentlyPurchased reports whether address was bought by this process.
func (e *Executor) RecentlyPurchased(address string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.recent[address]
	return ok
}

// Purchased lists the addresses bought by this process, sorted.
func (e *Executor) Purchased() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.recent))
	for addr := range e.recent {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (e *Executor) markPurchased(address string) {
	e.mu.Lock()
	e.recent[address] = time.Now()
	e.mu.Unlock()
}
