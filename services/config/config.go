// Package config loads and validates run configuration for the backtest and
// optimizer CLIs.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/ironsan2kk-pixel/komass-sub001/services/engine"
	"github.com/ironsan2kk-pixel/komass-sub001/services/optimizer"
)

// DataConfig says where candles come from: a local CSV export or ClickHouse.
type DataConfig struct {
	CSVPath  string `mapstructure:"csv_path"`
	Symbol   string `mapstructure:"symbol"`
	Interval string `mapstructure:"interval"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`

	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
}

type ClickHouseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Database string `mapstructure:"database"`
	Table    string `mapstructure:"table"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// StrategyConfig selects the signal policy and its fixed parameters.
type StrategyConfig struct {
	Policy string             `mapstructure:"policy"`
	Params map[string]float64 `mapstructure:"params"`
}

// TakeProfitConfig is one ladder level as written in YAML.
type TakeProfitConfig struct {
	Percent float64 `mapstructure:"percent"`
	Amount  float64 `mapstructure:"amount"`
}

// EngineConfig is the simulation parameter block.
type EngineConfig struct {
	InitialCapital float64            `mapstructure:"initial_capital"`
	Leverage       float64            `mapstructure:"leverage"`
	SLPercent      float64            `mapstructure:"sl_percent"`
	SLMode         string             `mapstructure:"sl_mode"`
	BreakevenAfter int                `mapstructure:"breakeven_after"`
	TakeProfits    []TakeProfitConfig `mapstructure:"take_profits"`
	CommissionRate float64            `mapstructure:"commission_rate"`
	CommissionOn   bool               `mapstructure:"commission_on"`
	ReentryOn      bool               `mapstructure:"reentry_on"`
}

// RangeConfig is one optimizer axis as written in YAML.
type RangeConfig struct {
	Name string  `mapstructure:"name"`
	Min  float64 `mapstructure:"min"`
	Max  float64 `mapstructure:"max"`
	Step float64 `mapstructure:"step"`
	Type string  `mapstructure:"type"` // "int" or "float"
}

// HeatmapConfig names the two scanned axes.
type HeatmapConfig struct {
	Axis1 string `mapstructure:"axis1"`
	Axis2 string `mapstructure:"axis2"`
}

// OptimizationConfig is the search block.
type OptimizationConfig struct {
	Method         string        `mapstructure:"method"`
	Metric         string        `mapstructure:"metric"`
	MaxTests       int           `mapstructure:"max_tests"`
	Workers        int           `mapstructure:"workers"`
	MinTrades      int           `mapstructure:"min_trades"`
	Seed           int64         `mapstructure:"seed"`
	PerTestTimeout time.Duration `mapstructure:"per_test_timeout"`
	Ranges         []RangeConfig `mapstructure:"ranges"`
	Heatmap        HeatmapConfig `mapstructure:"heatmap"`
}

// RunConfig is the full YAML document.
type RunConfig struct {
	Data         DataConfig         `mapstructure:"data"`
	Strategy     StrategyConfig     `mapstructure:"strategy"`
	Engine       EngineConfig       `mapstructure:"engine"`
	Optimization OptimizationConfig `mapstructure:"optimization"`
}

// Load reads a YAML run config. CLICKHOUSE_DSN and CH_PASSWORD env vars
// override their file counterparts, matching how the data installers read
// their connection settings.
func Load(path string) (*RunConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("data.interval", "5m")
	v.SetDefault("engine.initial_capital", 10000.0)
	v.SetDefault("engine.leverage", 1.0)
	v.SetDefault("optimization.method", "grid")
	v.SetDefault("optimization.workers", 1)
	v.SetDefault("optimization.min_trades", 5)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "unmarshal config %s", path)
	}
	if dsn := strings.TrimSpace(os.Getenv("CLICKHOUSE_DSN")); dsn != "" {
		cfg.Data.ClickHouse.DSN = dsn
	}
	if pass := strings.TrimSpace(os.Getenv("CH_PASSWORD")); pass != "" {
		cfg.Data.ClickHouse.Password = pass
	}
	return &cfg, nil
}

// EngineParams converts the engine block into validated simulation params.
func (c *RunConfig) EngineParams() (engine.Params, error) {
	mode, err := engine.ParseSLMode(c.Engine.SLMode)
	if err != nil {
		return engine.Params{}, err
	}
	tps := make([]engine.TakeProfitLevel, len(c.Engine.TakeProfits))
	for i, tp := range c.Engine.TakeProfits {
		tps[i] = engine.TakeProfitLevel{
			Index:   i + 1,
			Percent: decimal.NewFromFloat(tp.Percent),
			Amount:  decimal.NewFromFloat(tp.Amount),
		}
	}
	params := engine.Params{
		InitialCapital: decimal.NewFromFloat(c.Engine.InitialCapital),
		Leverage:       decimal.NewFromFloat(c.Engine.Leverage),
		SLPercent:      decimal.NewFromFloat(c.Engine.SLPercent),
		SLMode:         mode,
		BreakevenAfter: c.Engine.BreakevenAfter,
		TakeProfits:    tps,
		CommissionRate: decimal.NewFromFloat(c.Engine.CommissionRate),
		CommissionOn:   c.Engine.CommissionOn,
		ReentryOn:      c.Engine.ReentryOn,
	}
	if err := params.Validate(); err != nil {
		return engine.Params{}, err
	}
	return params, nil
}

// Ranges converts the declared axes into optimizer ranges.
func (c *RunConfig) Ranges() ([]optimizer.ParameterRange, error) {
	out := make([]optimizer.ParameterRange, len(c.Optimization.Ranges))
	for i, r := range c.Optimization.Ranges {
		t := optimizer.ValueTypeFloat
		switch r.Type {
		case "int":
			t = optimizer.ValueTypeInt
		case "float", "":
		default:
			return nil, errors.Errorf("range %s: unknown value type %q", r.Name, r.Type)
		}
		out[i] = optimizer.ParameterRange{Name: r.Name, Min: r.Min, Max: r.Max, Step: r.Step, Type: t}
	}
	return out, nil
}

// OptimizerConfig converts the search block.
func (c *RunConfig) OptimizerConfig() (optimizer.Config, error) {
	method, err := optimizer.ParseMethod(c.Optimization.Method)
	if err != nil {
		return optimizer.Config{}, err
	}
	return optimizer.Config{
		Method:         method,
		Metric:         c.Optimization.Metric,
		MaxTests:       c.Optimization.MaxTests,
		Workers:        c.Optimization.Workers,
		MinTrades:      c.Optimization.MinTrades,
		Seed:           c.Optimization.Seed,
		PerTestTimeout: c.Optimization.PerTestTimeout,
	}, nil
}

// TimeWindow parses the data window bounds (RFC3339).
func (c *RunConfig) TimeWindow() (from, to time.Time, err error) {
	if c.Data.From != "" {
		from, err = time.Parse(time.RFC3339, c.Data.From)
		if err != nil {
			return from, to, errors.Wrap(err, "parse data.from")
		}
	}
	to = time.Now().UTC()
	if c.Data.To != "" {
		to, err = time.Parse(time.RFC3339, c.Data.To)
		if err != nil {
			return from, to, errors.Wrap(err, "parse data.to")
		}
	}
	return from, to, nil
}
