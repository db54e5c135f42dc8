// Package clickhouse loads candle series out of a ClickHouse klines table.
package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
)

// Config locates the klines table.
type Config struct {
	DSN      string
	Database string
	Table    string
	User     string
	Password string
}

// Repository reads immutable candle windows. Loading happens once per run;
// the resulting series is shared read-only afterwards.
type Repository struct {
	conn driver.Conn
	cfg  Config
	log  *zap.Logger
}

// NewRepository connects and pings the server.
func NewRepository(ctx context.Context, cfg Config, log *zap.Logger) (*Repository, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{dsnHost(cfg.DSN)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "clickhouse open")
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "clickhouse ping")
	}
	return &Repository{conn: conn, cfg: cfg, log: log}, nil
}

// LoadSeries reads one symbol/interval window ordered by open time.
func (r *Repository) LoadSeries(ctx context.Context, symbol, interval string, from, to time.Time) (*series.Series, error) {
	query := fmt.Sprintf(`
SELECT open_time_ms, open, high, low, close, volume
FROM %s.%s
WHERE symbol = ? AND interval = ?
  AND open_time_ms >= ? AND open_time_ms < ?
ORDER BY open_time_ms`, r.cfg.Database, r.cfg.Table)

	rows, err := r.conn.Query(ctx, query, symbol, interval, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, errors.Wrapf(err, "query candles %s %s", symbol, interval)
	}
	defer rows.Close()

	var candles []series.Candle
	for rows.Next() {
		var (
			ts                             int64
			open, high, low, close, volume float64
		)
		if err := rows.Scan(&ts, &open, &high, &low, &close, &volume); err != nil {
			return nil, errors.Wrap(err, "scan candle row")
		}
		candles = append(candles, series.Candle{
			Ts:     ts,
			Open:   decimal.NewFromFloat(open),
			High:   decimal.NewFromFloat(high),
			Low:    decimal.NewFromFloat(low),
			Close:  decimal.NewFromFloat(close),
			Volume: decimal.NewFromFloat(volume),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate candle rows")
	}

	r.log.Info("loaded candle window",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("candles", len(candles)),
		zap.Time("from", from),
		zap.Time("to", to))
	return series.New(symbol, interval, candles)
}

// EnsureSchema creates the database and klines table when missing. The table
// dedups on (symbol, interval, open_time_ms) via ReplacingMergeTree, so
// re-ingesting the same window is harmless.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if err := r.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", r.cfg.Database)); err != nil {
		return errors.Wrap(err, "create database")
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			interval LowCardinality(String),
			open_time_ms UInt64,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			ingested_at DateTime64(3),
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (symbol, interval, open_time_ms)
		SETTINGS index_granularity = 8192
	`, r.cfg.Database, r.cfg.Table)
	return errors.Wrap(r.conn.Exec(ctx, ddl), "create table")
}

// StoreSeries batch-inserts a whole series. All rows of one call share a
// version, so ReplacingMergeTree keeps the latest ingest of each bar.
func (r *Repository) StoreSeries(ctx context.Context, s *series.Series) error {
	batch, err := r.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s.%s SETTINGS insert_deduplicate=1", r.cfg.Database, r.cfg.Table))
	if err != nil {
		return errors.Wrap(err, "prepare batch")
	}

	now := time.Now().UTC()
	version := uint64(now.UnixNano())
	for i := 0; i < s.Len(); i++ {
		c := s.At(i)
		if err := batch.Append(
			s.Symbol(), s.Interval(),
			uint64(c.Ts),
			c.Open.InexactFloat64(),
			c.High.InexactFloat64(),
			c.Low.InexactFloat64(),
			c.Close.InexactFloat64(),
			c.Volume.InexactFloat64(),
			now,
			version,
		); err != nil {
			return errors.Wrapf(err, "batch append row %d", i)
		}
	}
	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "batch send")
	}

	r.log.Info("stored candle series",
		zap.String("symbol", s.Symbol()),
		zap.String("interval", s.Interval()),
		zap.Int("candles", s.Len()))
	return nil
}

func (r *Repository) Close() error { return r.conn.Close() }

// dsnHost extracts host:port from a DSN-like URL for driver bootstrap.
func dsnHost(dsn string) string {
	host := "localhost:9000"
	if i := strings.Index(dsn, "@"); i != -1 {
		rest := dsn[i+1:]
		if j := strings.Index(rest, "?"); j != -1 {
			host = rest[:j]
		} else {
			host = rest
		}
	}
	return host
}
