package optimizer

import (
	"context"

	"go.uber.org/zap"

	"github.com/ironsan2kk-pixel/komass-sub001/services/engine"
	"github.com/ironsan2kk-pixel/komass-sub001/services/scoring"
	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
)

// Evaluator runs one backtest for one parameter combination and returns the
// scored result.
type Evaluator interface {
	Evaluate(ctx context.Context, params ParamSet) (*Result, error)
}

// Binding materializes a candidate parameter set into engine params and a
// signal source over the shared series. The caller decides which parameter
// names map to indicator settings versus simulation settings.
type Binding func(set ParamSet) (engine.Params, engine.SignalSource, error)

// BacktestEvaluator is the standard Evaluator: backtest plus composite
// scoring over one read-only series. Safe for concurrent use; the series is
// never mutated and each evaluation builds its own tracker state.
type BacktestEvaluator struct {
	Series    *series.Series
	Bind      Binding
	MinTrades int
	Log       *zap.Logger
}

func (e *BacktestEvaluator) Evaluate(ctx context.Context, set ParamSet) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params, signals, err := e.Bind(set)
	if err != nil {
		return nil, err
	}
	runner, err := engine.NewRunner(params, e.Log)
	if err != nil {
		return nil, err
	}
	res, err := runner.Run(e.Series, signals)
	if err != nil {
		return nil, err
	}

	calc := scoring.Calculator{
		InitialCapital: params.InitialCapital.InexactFloat64(),
		MinTrades:      e.MinTrades,
	}
	score, metrics := calc.Score(res)
	return &Result{
		Params:     set.Clone(),
		Score:      score,
		Metrics:    metrics.Map(),
		TradeCount: len(res.Trades),
	}, nil
}
