// Command heatmap scans two parameters against each other with everything
// else fixed and writes the score surface as JSON.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsan2kk-pixel/komass-sub001/services/clickhouse"
	"github.com/ironsan2kk-pixel/komass-sub001/services/config"
	"github.com/ironsan2kk-pixel/komass-sub001/services/optimizer"
	"github.com/ironsan2kk-pixel/komass-sub001/services/report"
	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
)

func main() {
	cfgPath := flag.String("config", "run.yaml", "Run configuration file")
	out := flag.String("out", "./heatmap.json", "Heatmap JSON output path")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfgPath, *out, logger); err != nil {
		logger.Fatal("heatmap scan failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfgPath, out string, logger *zap.Logger) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	axis1, axis2, err := heatmapAxes(cfg)
	if err != nil {
		return err
	}
	s, err := loadSeries(ctx, cfg, logger)
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

	hm, err := optimizer.RunHeatmap(ctx, eval, optimizer.ParamSet{}, axis1, axis2, logger)
	if err != nil {
		return err
	}
	if err := report.WriteHeatmapJSON(out, hm); err != nil {
		return err
	}
	logger.Info("heatmap written",
		zap.String("path", out),
		zap.Int("cells", hm.Tested))
	return nil
}

// heatmapAxes resolves optimization.heatmap.axis1/axis2 against the declared
// ranges.
func heatmapAxes(cfg *config.RunConfig) (axis1, axis2 optimizer.ParameterRange, err error) {
	names := cfg.Optimization.Heatmap
	if names.Axis1 == "" || names.Axis2 == "" {
		return axis1, axis2, errors.New("optimization.heatmap.axis1 and axis2 are required")
	}
	ranges, err := cfg.Ranges()
	if err != nil {
		return axis1, axis2, err
	}
	find := func(name string) (optimizer.ParameterRange, error) {
		for _, r := range ranges {
			if r.Name == name {
				return r, nil
			}
		}
		return optimizer.ParameterRange{}, errors.Errorf("heatmap axis %q not declared in optimization.ranges", name)
	}
	if axis1, err = find(names.Axis1); err != nil {
		return axis1, axis2, err
	}
	axis2, err = find(names.Axis2)
	return axis1, axis2, err
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
