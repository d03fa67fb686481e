// Command backtest replays a CSV price path through the configured exit
// schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/backtest"
	managerpkg "stoic-trader/pkg/manager"
)

var (
	managerFile = flag.String("m", "etc/manager.yaml", "manager config holding exit_rules")
	pricesFile  = flag.String("prices", "", "CSV whose last column is the token price in SOL")
	spend       = flag.String("spend", "1", "SOL spent on the entry buy")
	slippage    = flag.Int("slippage", 50, "sale slippage in bps")
	out         = flag.String("o", "", "optional JSON report path")
)

func main() {
	flag.Parse()
	logx.DisableStat()
	if *pricesFile == "" {
		fmt.Fprintln(os.Stderr, "backtest: -prices is required")
		os.Exit(2)
	}

	cfg, err := managerpkg.LoadConfig(*managerFile)
	logx.Must(err)
	rules, err := cfg.ExitRules.Rules()
	logx.Must(err)
	feeder, err := backtest.NewCSVFeederFromFile(*pricesFile)
	logx.Must(err)
	amount, err := decimal.NewFromString(*spend)
	logx.Must(err)

	e := &backtest.Engine{
		Feeder:      feeder,
		Rules:       rules,
		SpendSOL:    amount,
		SlippageBps: *slippage,
		OutputPath:  *out,
	}
	res, err := e.Run(context.Background())
	logx.Must(err)

	for _, s := range res.Sales {
		fmt.Printf("step %-4d %-11s price=%s ratio=%s qty=%s sol=%s\n",
			s.Step, s.Reason, s.Price, s.Ratio.StringFixed(2), s.Quantity.StringFixed(6), s.SOLOut.StringFixed(6))
	}
	fmt.Printf("steps=%d proceeds=%s remaining=%s final=%s pnl=%s max_dd=%.2f%%\n",
		res.Steps, res.ProceedsSOL.StringFixed(6), res.Remaining.StringFixed(6),
		res.FinalValue.StringFixed(6), res.PNLSOL.StringFixed(6), res.MaxDDPct)
}
