// Package manager orchestrates trading cycles: balance gate, trending
// snapshot, recommendations, buys and exit sweeps, on a daily random schedule.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"stoic-trader/pkg/advisor"
	"stoic-trader/pkg/amount"
	executorpkg "stoic-trader/pkg/executor"
	"stoic-trader/pkg/exitrule"
	"stoic-trader/pkg/journal"
	"stoic-trader/pkg/market"
)

// Cycle triggers recorded in the journal.
const (
	TriggerScheduled = "scheduled"
	TriggerStartup   = "startup"
	TriggerOnce      = "once"
)

// ErrGateClosed means the wallet is below both balance thresholds even after
// an exit sweep.
var ErrGateClosed = errors.New("manager: balance gate closed")

// BalanceSource reads the native SOL balance of a wallet in lamports.
type BalanceSource interface {
	Balance(ctx context.Context, owner string) (uint64, error)
}

// Advisor produces buy recommendations.
type Advisor interface {
	Advise(ctx context.Context, snap advisor.Snapshot) (*advisor.Advice, error)
}

// Buyer executes recommendations.
type Buyer interface {
	Execute(ctx context.Context, balance decimal.Decimal, recs []advisor.Recommendation) (executorpkg.Report, error)
}

// Sweeper applies the exit schedule to open positions.
type Sweeper interface {
	Sweep(ctx context.Context) exitrule.SweepReport
}

// Deps are the collaborators a Manager drives.
type Deps struct {
	Wallet   string
	Balances BalanceSource
	Market   market.Provider
	Advisor  Advisor
	Buyer    Buyer
	Exits    Sweeper
	// Journal is optional.
	Journal *journal.Writer
}

// Manager runs trading cycles. Cycles and sweeps share one wallet, so they
// are serialised through a weighted semaphore of size one.
type Manager struct {
	cfg       *Config
	deps      Deps
	scheduler *Scheduler
	wallet    *semaphore.Weighted
	nowFn     func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager constructs a Manager with injected dependencies.
func NewManager(cfg *Config, deps Deps) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	switch {
	case deps.Wallet == "":
		return nil, errors.New("manager: wallet address is required")
	case deps.Balances == nil:
		return nil, errors.New("manager: balance source is required")
	case deps.Market == nil:
		return nil, errors.New("manager: market provider is required")
	case deps.Advisor == nil:
		return nil, errors.New("manager: advisor is required")
	case deps.Buyer == nil:
		return nil, errors.New("manager: buyer is required")
	case deps.Exits == nil:
		return nil, errors.New("manager: exit sweeper is required")
	}
	return &Manager{
		cfg:       cfg,
		deps:      deps,
		scheduler: NewScheduler(cfg.Schedule, nil),
		wallet:    semaphore.NewWeighted(1),
		nowFn:     time.Now,
		stopCh:    make(chan struct{}),
	}, nil
}

// Config returns the manager configuration.
func (m *Manager) Config() *Config { return m.cfg }

// Scheduler exposes the daily planner.
func (m *Manager) Scheduler() *Scheduler { return m.scheduler }

// RunCycle executes one full cycle and journals it. The returned record is
// never nil.
func (m *Manager) RunCycle(ctx context.Context, trigger string) (*journal.CycleRecord, error) {
	rec := &journal.CycleRecord{
		RunID:     journal.NewRunID(),
		Trigger:   trigger,
		StartedAt: m.nowFn(),
		Wallet:    m.deps.Wallet,
	}
	if err := m.wallet.Acquire(ctx, 1); err != nil {
		return m.finish(ctx, rec, err)
	}
	defer m.wallet.Release(1)

	if m.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.CycleTimeout)
		defer cancel()
	}
	logx.WithContext(ctx).Infof("cycle %s (%s) started", rec.RunID, trigger)
	return m.finish(ctx, rec, m.cycle(ctx, rec))
}

func (m *Manager) cycle(ctx context.Context, rec *journal.CycleRecord) error {
	balance, ok, err := m.checkGate(ctx, rec)
	if err != nil {
		return err
	}
	if !ok {
		logx.WithContext(ctx).Infof("cycle %s: balance gate closed, sweeping exits before re-check", rec.RunID)
		m.sweep(ctx, rec)
		if balance, ok, err = m.checkGate(ctx, rec); err != nil {
			return err
		}
		if !ok {
			return ErrGateClosed
		}
	}

	snap, err := m.deps.Market.Trending(ctx)
	if err != nil {
		return fmt.Errorf("manager: trending: %w", err)
	}
	candidates := snap.Candidates()
	rec.Endpoint = snap.Endpoint
	rec.Candidates = sortedKeys(candidates)

	advice, err := m.deps.Advisor.Advise(ctx, advisor.Snapshot{BalanceSOL: balance, Candidates: candidates})
	if advice != nil {
		rec.Model = advice.Model
		rec.PromptDigest = advice.PromptDigest
		rec.Response = advice.Response
		if m.cfg.Journal.IncludePrompt {
			rec.Prompt = advice.Prompt
		}
	}
	if err != nil {
		return fmt.Errorf("manager: recommend: %w", err)
	}
	rec.Recommendations = advice.Recommendations
	logx.WithContext(ctx).Infof("cycle %s: %d recommendation(s) from %d candidate(s)", rec.RunID, len(advice.Recommendations), len(candidates))

	report, err := m.deps.Buyer.Execute(ctx, balance, advice.Recommendations)
	rec.Trades = report
	if err != nil {
		return fmt.Errorf("manager: execute: %w", err)
	}

	m.sweep(ctx, rec)
	return nil
}

// checkGate reads the wallet and reports whether the cycle may trade. The
// portfolio value is best effort: a failed lookup only disables the USD leg.
func (m *Manager) checkGate(ctx context.Context, rec *journal.CycleRecord) (decimal.Decimal, bool, error) {
	lamports, err := m.deps.Balances.Balance(ctx, m.deps.Wallet)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("manager: balance: %w", err)
	}
	sol := amount.SOL(lamports)
	rec.BalanceSOL = sol.String()

	usd := decimal.Zero
	if p, err := m.deps.Market.Portfolio(ctx, m.deps.Wallet); err != nil {
		logx.WithContext(ctx).Errorf("cycle %s: portfolio lookup failed: %v", rec.RunID, err)
	} else {
		usd = decimal.NewFromFloat(p.TotalUSD)
		rec.PortfolioUSD = usd.StringFixed(2)
	}

	gate := m.cfg.BalanceGate
	rec.GatePassed = sol.GreaterThanOrEqual(gate.MinSOL) || usd.GreaterThanOrEqual(gate.MinUSD)
	logx.WithContext(ctx).Infof("cycle %s: balance %s SOL, portfolio $%s, gate passed=%t", rec.RunID, sol, usd.StringFixed(2), rec.GatePassed)
	return sol, rec.GatePassed, nil
}

func (m *Manager) sweep(ctx context.Context, rec *journal.CycleRecord) exitrule.SweepReport {
	report := m.deps.Exits.Sweep(ctx)
	if len(report.Sales) > 0 || len(report.Failures) > 0 {
		logx.WithContext(ctx).Infof("exit sweep: evaluated=%d sales=%d failures=%d", report.Evaluated, len(report.Sales), len(report.Failures))
	}
	if rec != nil {
		rec.Exits = append(rec.Exits, sweepSummary(report))
	}
	return report
}

// Sweep runs one exit sweep outside a cycle. Cancelling ctx only abandons the
// wait for the wallet; a sweep that has started runs to completion.
func (m *Manager) Sweep(ctx context.Context) (exitrule.SweepReport, error) {
	if err := m.wallet.Acquire(ctx, 1); err != nil {
		return exitrule.SweepReport{}, err
	}
	defer m.wallet.Release(1)
	return m.sweep(context.WithoutCancel(ctx), nil), nil
}

func (m *Manager) finish(ctx context.Context, rec *journal.CycleRecord, err error) (*journal.CycleRecord, error) {
	rec.FinishedAt = m.nowFn()
	rec.Success = err == nil
	if err != nil {
		rec.ErrorMessage = err.Error()
		if errors.Is(err, ErrGateClosed) {
			logx.WithContext(ctx).Infof("cycle %s: %v", rec.RunID, err)
		} else {
			logx.WithContext(ctx).Errorf("cycle %s failed: %v", rec.RunID, err)
		}
	} else {
		logx.WithContext(ctx).Infof("cycle %s finished in %s", rec.RunID, rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	}
	if m.deps.Journal != nil && m.cfg.Journal.Enabled {
		if path, werr := m.deps.Journal.WriteCycle(rec); werr != nil {
			logx.WithContext(ctx).Errorf("cycle %s: journal: %v", rec.RunID, werr)
		} else {
			logx.WithContext(ctx).Debugf("cycle %s journaled to %s", rec.RunID, path)
		}
	}
	return rec, err
}

// Run drives scheduled cycles and periodic exit sweeps until ctx is done or
// Stop is called. In-flight cycles and sweeps are allowed to finish.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.runSchedule(gctx) })
	if m.cfg.ExitSweepInterval > 0 {
		g.Go(func() error { return m.runSweeps(gctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop signals Run to exit.
func (m *Manager) Stop() { m.stopOnce.Do(func() { close(m.stopCh) }) }

func (m *Manager) runSchedule(ctx context.Context) error {
	if m.cfg.Schedule.RunOnStart {
		m.runDetached(ctx, TriggerStartup)
	}
	for {
		next := m.scheduler.Next(m.nowFn())
		if next.IsZero() {
			<-ctx.Done()
			return ctx.Err()
		}
		logx.WithContext(ctx).Infof("next cycle at %s", next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		m.runDetached(ctx, TriggerScheduled)
	}
}

// runDetached runs a cycle that survives shutdown signals once started.
func (m *Manager) runDetached(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	_, _ = m.RunCycle(context.WithoutCancel(ctx), trigger)
}

func (m *Manager) runSweeps(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.ExitSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if _, err := m.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logx.WithContext(ctx).Errorf("exit sweep: %v", err)
			}
		}
	}
}

type sweepRecord struct {
	Evaluated int             `json:"evaluated"`
	Skipped   []string        `json:"skipped,omitempty"`
	Sales     []exitrule.Sale `json:"sales,omitempty"`
	Failures  []string        `json:"failures,omitempty"`
}

func sweepSummary(r exitrule.SweepReport) sweepRecord {
	out := sweepRecord{Evaluated: r.Evaluated, Skipped: r.Skipped, Sales: r.Sales}
	for _, err := range r.Failures {
		out.Failures = append(out.Failures, err.Error())
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
