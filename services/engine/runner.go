package engine

import (
	"go.uber.org/zap"

	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
)

// SignalSource supplies, per bar, the prevailing trend and the entry signal
// (+1 long, -1 short, 0 none). The engine treats these as opaque inputs; the
// indicator math lives behind this interface.
type SignalSource interface {
	// WarmupBars is the number of leading bars the source needs before its
	// output is meaningful. The runner never trades inside the warm-up.
	WarmupBars() int
	// Evaluate may only use data through bar i.
	Evaluate(i int) (trend, signal int)
}

// Runner drives a Tracker across a full candle series for one parameter set.
type Runner struct {
	params Params
	log    *zap.Logger
}

// NewRunner validates params up front so a malformed configuration never
// reaches the simulation loop.
func NewRunner(params Params, log *zap.Logger) (*Runner, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{params: params, log: log}, nil
}

// Run executes a single forward pass over the series. Deterministic for
// identical inputs; a series shorter than the warm-up yields an empty trade
// list, which is a valid outcome.
func (r *Runner) Run(s *series.Series, signals SignalSource) (*Result, error) {
	tracker, err := NewTracker(r.params)
	if err != nil {
		return nil, err
	}

	warmup := signals.WarmupBars()
	if s.Len() <= warmup {
		r.log.Debug("series shorter than warm-up, no trades possible",
			zap.Int("bars", s.Len()), zap.Int("warmup", warmup))
	}

	equity := make([]EquityPoint, 0, s.Len())
	peak := r.params.InitialCapital

	for i := 0; i < s.Len(); i++ {
		bar := s.At(i)
		trend, signal := 0, 0
		if i >= warmup {
			trend, signal = signals.Evaluate(i)
		}
		tracker.Step(bar, trend, signal)

		eq := r.params.InitialCapital.Add(tracker.Realized()).Add(tracker.UnrealizedPnl(bar.Close))
		if eq.GreaterThan(peak) {
			peak = eq
		}
		dd := peak.Sub(eq).Div(peak).Mul(hundred)
		equity = append(equity, EquityPoint{
			Ts:            bar.Ts,
			Equity:        eq,
			DrawdownPct:   dd,
			OpenPositions: tracker.OpenPositions(),
		})
	}

	// Anything still open settles at the last close so realized pnl and the
	// equity curve agree.
	if tracker.OpenPositions() > 0 {
		last := s.Last()
		tracker.CloseAll(last, ExitReasonEndOfData)
		eq := r.params.InitialCapital.Add(tracker.Realized())
		if eq.GreaterThan(peak) {
			peak = eq
		}
		equity[len(equity)-1] = EquityPoint{
			Ts:          last.Ts,
			Equity:      eq,
			DrawdownPct: peak.Sub(eq).Div(peak).Mul(hundred),
		}
	}

	res := &Result{
		Trades:      tracker.Trades(),
		Equity:      equity,
		MaxTPStreak: tracker.MaxTPStreak(),
		MaxSLStreak: tracker.MaxSLStreak(),
	}
	r.log.Debug("backtest pass complete",
		zap.Int("bars", s.Len()),
		zap.Int("trades", len(res.Trades)),
		zap.String("pnl", res.TotalPnl().StringFixed(4)))
	return res, nil
}
