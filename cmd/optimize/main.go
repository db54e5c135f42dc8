// Command optimize searches a parameter space for the best-scoring strategy
// configuration and writes the ranked results as JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ironsan2kk-pixel/komass-sub001/services/clickhouse"
	"github.com/ironsan2kk-pixel/komass-sub001/services/config"
	"github.com/ironsan2kk-pixel/komass-sub001/services/optimizer"
	"github.com/ironsan2kk-pixel/komass-sub001/services/report"
	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
)

func main() {
	cfgPath := flag.String("config", "run.yaml", "Run configuration file")
	out := flag.String("out", "./optimization.json", "Ranked results JSON output path")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfgPath, *out, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("optimization interrupted, partial results written")
			return
		}
		logger.Fatal("optimization failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfgPath, out string, logger *zap.Logger) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	s, err := loadSeries(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ranges, err := cfg.Ranges()
	if err != nil {
		return err
	}
	space, err := optimizer.NewSpace(ranges, tpLadderValidator(ranges))
	if err != nil {
		return err
	}
	optCfg, err := cfg.OptimizerConfig()
	if err != nil {
		return err
	}
	bind, err := cfg.Binding(s)
	if err != nil {
		return err
	}
	eval := &optimizer.BacktestEvaluator{
		Series:    s,
		Bind:      bind,
		MinTrades: optCfg.MinTrades,
		Log:       zap.NewNop(),
	}

	coord := optimizer.NewCoordinator(optCfg, space, eval, &logSink{log: logger}, logger)
	summary, runErr := coord.Run(ctx)
	if summary != nil && summary.Tested > 0 {
		if err := report.WriteSummaryJSON(out, summary); err != nil {
			return err
		}
		logger.Info("results written", zap.String("path", out), zap.Int("tested", summary.Tested))
	}
	return runErr
}

// tpLadderValidator rejects combinations where scanned take-profit percents
// are out of order, e.g. tp2_percent <= tp1_percent.
func tpLadderValidator(ranges []optimizer.ParameterRange) optimizer.CombinationValidator {
	var names []string
	for _, r := range ranges {
		var idx int
		if n, _ := fmt.Sscanf(r.Name, "tp%d_percent", &idx); n == 1 {
			names = append(names, r.Name)
		}
	}
	if len(names) < 2 {
		return nil
	}
	return func(set optimizer.ParamSet) bool {
		prev := 0.0
		for i := 1; i <= len(names); i++ {
			v, ok := set[fmt.Sprintf("tp%d_percent", i)]
			if !ok {
				continue
			}
			if v <= prev {
				return false
			}
			prev = v
		}
		return true
	}
}

// logSink reports search progress through the process logger, throttled to
// every 10th test so large grids do not flood the output.
type logSink struct {
	log *zap.Logger
}

func (s *logSink) OnProgress(p optimizer.Progress) {
	if p.Tested%10 != 0 && p.Tested != p.Total {
		return
	}
	fields := []zap.Field{
		zap.Int("tested", p.Tested),
		zap.Int("total", p.Total),
		zap.Float64("percent", p.Percent),
		zap.Float64("eta_seconds", p.ETASeconds),
	}
	if p.Best != nil {
		fields = append(fields, zap.Float64("best_score", p.Best.Score))
	}
	s.log.Info("optimization progress", fields...)
}

func (s *logSink) OnComplete(sum optimizer.Summary) {
	if sum.NoValidResult() {
		s.log.Info("search finished without a valid result",
			zap.Int("tested", sum.Tested), zap.Int("skipped", sum.Skipped))
		return
	}
	s.log.Info("search finished",
		zap.String("best_params", sum.Best.Params.Key()),
		zap.Float64("best_score", sum.Best.Score),
		zap.Int("best_trades", sum.Best.TradeCount),
		zap.Duration("elapsed", sum.Elapsed))
}

func loadSeries(ctx context.Context, cfg *config.RunConfig, logger *zap.Logger) (*series.Series, error) {
	if cfg.Data.CSVPath != "" {
		return series.LoadCSV(cfg.Data.CSVPath, cfg.Data.Symbol, cfg.Data.Interval)
	}
	from, to, err := cfg.TimeWindow()
	if err != nil {
		return nil, err
	}
	repo, err := clickhouse.NewRepository(ctx, clickhouse.Config{
		DSN:      cfg.Data.ClickHouse.DSN,
		Database: cfg.Data.ClickHouse.Database,
		Table:    cfg.Data.ClickHouse.Table,
		User:     cfg.Data.ClickHouse.User,
		Password: cfg.Data.ClickHouse.Password,
	}, logger)
	if err != nil {
		return nil, err
	}
	defer repo.Close()
	return repo.LoadSeries(ctx, cfg.Data.Symbol, cfg.Data.Interval, from, to)
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
