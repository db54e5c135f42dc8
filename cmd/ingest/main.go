// Command ingest loads a candle CSV export into the ClickHouse klines table
// so backtests and optimizations can pull windows from it.
package main

import (
	"context"
	"flag"

	"go.uber.org/zap"

	"github.com/ironsan2kk-pixel/komass-sub001/services/clickhouse"
	"github.com/ironsan2kk-pixel/komass-sub001/services/config"
	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
)

func main() {
	cfgPath := flag.String("config", "run.yaml", "Run configuration file")
	csvPath := flag.String("csv", "", "Candle CSV to ingest (defaults to data.csv_path)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()

	if err := run(*cfgPath, *csvPath, logger); err != nil {
		logger.Fatal("ingest failed", zap.Error(err))
	}
}

func run(cfgPath, csvPath string, logger *zap.Logger) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if csvPath == "" {
		csvPath = cfg.Data.CSVPath
	}
	s, err := series.LoadCSV(csvPath, cfg.Data.Symbol, cfg.Data.Interval)
	if err != nil {
		return err
	}

	repo, err := clickhouse.NewRepository(ctx, clickhouse.Config{
		DSN:      cfg.Data.ClickHouse.DSN,
		Database: cfg.Data.ClickHouse.Database,
		Table:    cfg.Data.ClickHouse.Table,
		User:     cfg.Data.ClickHouse.User,
		Password: cfg.Data.ClickHouse.Password,
	}, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := repo.StoreSeries(ctx, s); err != nil {
		return err
	}
	logger.Info("ingest complete",
		zap.String("csv", csvPath),
		zap.String("symbol", s.Symbol()),
		zap.String("interval", s.Interval()),
		zap.Int("candles", s.Len()))
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
