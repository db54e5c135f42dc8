// Command backtest runs one simulation pass over a candle series and writes
// the trade list, equity curve and summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ironsan2kk-pixel/komass-sub001/services/clickhouse"
	"github.com/ironsan2kk-pixel/komass-sub001/services/config"
	"github.com/ironsan2kk-pixel/komass-sub001/services/engine"
	"github.com/ironsan2kk-pixel/komass-sub001/services/report"
	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
	"github.com/ironsan2kk-pixel/komass-sub001/strategies"
)

func main() {
	cfgPath := flag.String("config", "run.yaml", "Run configuration file")
	tradesOut := flag.String("trades-out", "./trades.csv", "Trade list CSV output path")
	equityOut := flag.String("equity-out", "./equity.csv", "Equity curve CSV output path")
	snapshotIn := flag.String("snapshot-in", "", "Load candles from an Arrow snapshot instead of CSV/ClickHouse")
	snapshotOut := flag.String("snapshot-out", "", "Write the loaded series as an Arrow snapshot")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()

	if err := run(*cfgPath, *tradesOut, *equityOut, *snapshotIn, *snapshotOut, logger); err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}
}

func run(cfgPath, tradesOut, equityOut, snapshotIn, snapshotOut string, logger *zap.Logger) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	s, err := loadSeries(ctx, cfg, snapshotIn, logger)
	if err != nil {
		return err
	}
	if snapshotOut != "" {
		data, err := s.Snapshot()
		if err != nil {
			return err
		}
		if err := os.WriteFile(snapshotOut, data, 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		logger.Info("series snapshot written", zap.String("path", snapshotOut), zap.Int("bytes", len(data)))
	}

	params, err := cfg.EngineParams()
	if err != nil {
		return err
	}
	factory, err := strategies.NewFactory(cfg.Strategy.Policy)
	if err != nil {
		return err
	}
	policy, err := factory(s, cfg.Strategy.Params)
	if err != nil {
		return err
	}

	runner, err := engine.NewRunner(params, logger)
	if err != nil {
		return err
	}
	res, err := runner.Run(s, policy)
	if err != nil {
		return err
	}

	summary := report.Summarize(res)
	summary.Print(os.Stdout)

	if err := report.WriteTradesCSV(tradesOut, res.Trades); err != nil {
		return err
	}
	if err := report.WriteEquityCSV(equityOut, res.Equity); err != nil {
		return err
	}
	logger.Info("backtest complete",
		zap.Int("bars", s.Len()),
		zap.Int("trades", len(res.Trades)),
		zap.String("trades_csv", tradesOut),
		zap.String("equity_csv", equityOut))
	return nil
}

func loadSeries(ctx context.Context, cfg *config.RunConfig, snapshotIn string, logger *zap.Logger) (*series.Series, error) {
	if snapshotIn != "" {
		data, err := os.ReadFile(snapshotIn)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		return series.FromSnapshot(data)
	}
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
