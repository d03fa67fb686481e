package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/internal/cli"
	"stoic-trader/internal/config"
	"stoic-trader/internal/svc"
	managerpkg "stoic-trader/pkg/manager"
)

var (
	configFile = flag.String("f", "etc/trader.yaml", "the config file")
	once       = flag.Bool("once", false, "run a single cycle and exit")
	sweepOnly  = flag.Bool("sweep", false, "run a single exit sweep and exit")
)

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	logx.MustSetup(cfg.Log)
	logx.DisableStat()
	defer logx.Close()

	cli.LogConfigSummary(cfg)
	ctx := svc.MustNewServiceContext(cfg)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *sweepOnly:
		report, err := ctx.Manager.Sweep(sigCtx)
		if err != nil {
			logx.Errorf("exit sweep: %v", err)
			os.Exit(1)
		}
		logx.Infof("exit sweep evaluated=%d sold=%d failed=%d", report.Evaluated, len(report.Sales), len(report.Failures))
		return
	case *once:
		rec, err := ctx.Manager.RunCycle(sigCtx, managerpkg.TriggerOnce)
		if err != nil {
			logx.Errorf("cycle %s: %v", rec.RunID, err)
			os.Exit(1)
		}
		logx.Infof("cycle %s done", rec.RunID)
		return
	}

	go func() {
		<-sigCtx.Done()
		logx.Info("shutting down, waiting for in-flight cycle")
		ctx.Manager.Stop()
	}()

	logx.Infof("starting %s wallet=%s", cfg.Name, ctx.Wallet.Address())
	if err := ctx.Manager.Run(context.Background()); err != nil {
		logx.Errorf("manager stopped: %v", err)
		os.Exit(1)
	}
}
