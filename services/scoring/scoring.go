// Package scoring reduces a backtest outcome to ranking metrics and a single
// composite score.
package scoring

import (
	"math"

	"github.com/ironsan2kk-pixel/komass-sub001/services/engine"
)

// Composite weights. Fixed; the drawdown term is a penalty.
const (
	weightProfit       = 0.30
	weightWinRate      = 0.15
	weightProfitFactor = 0.15
	weightTP1Rate      = 0.10
	weightSharpe       = 0.10
	weightConsistency  = 0.10
	weightDrawdown     = 0.10

	// profitFactorCap bounds the profit factor when there are no losing
	// trades so the composite stays finite.
	profitFactorCap = 100.0

	// lowConfidenceTrades scales the composite by lowConfidenceFactor for
	// runs with too few trades to trust the statistics.
	lowConfidenceTrades = 30
	lowConfidenceFactor = 0.8

	// minScorableTrades is the hard floor: below it the score is -Inf so the
	// result sorts last without special-casing comparisons.
	minScorableTrades = 5
)

// Metrics are the named components behind a composite score.
type Metrics struct {
	TotalTrades    int     `json:"total_trades"`
	TotalPnl       float64 `json:"total_pnl"`
	ReturnPct      float64 `json:"return_pct"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`
	TP1Rate        float64 `json:"tp1_rate"`
	Consistency    float64 `json:"consistency"`
	RecoveryFactor float64 `json:"recovery_factor"`
}

// Map flattens the metrics for result reporting.
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		"total_trades":     float64(m.TotalTrades),
		"total_pnl":        m.TotalPnl,
		"return_pct":       m.ReturnPct,
		"win_rate":         m.WinRate,
		"profit_factor":    m.ProfitFactor,
		"max_drawdown_pct": m.MaxDrawdownPct,
		"sharpe":           m.Sharpe,
		"tp1_rate":         m.TP1Rate,
		"consistency":      m.Consistency,
		"recovery_factor":  m.RecoveryFactor,
	}
}

// Calculator scores backtest results against a fixed initial capital.
type Calculator struct {
	InitialCapital float64
	// MinTrades raises the -Inf floor above the default when the optimizer
	// demands more statistical weight per result.
	MinTrades int
}

// Score computes the named metrics and the composite ranking score.
func (c Calculator) Score(res *engine.Result) (float64, Metrics) {
	m := c.metrics(res)

	floor := minScorableTrades
	if c.MinTrades > floor {
		floor = c.MinTrades
	}
	if m.TotalTrades < floor {
		return math.Inf(-1), m
	}

	pf := math.Min(m.ProfitFactor, profitFactorCap)
	score := weightProfit*m.ReturnPct +
		weightWinRate*m.WinRate*100 +
		weightProfitFactor*pf +
		weightTP1Rate*m.TP1Rate*100 +
		weightSharpe*m.Sharpe +
		weightConsistency*m.Consistency -
		weightDrawdown*m.MaxDrawdownPct

	if m.TotalTrades < lowConfidenceTrades {
		score *= lowConfidenceFactor
	}
	return score, m
}

func (c Calculator) metrics(res *engine.Result) Metrics {
	var m Metrics
	m.TotalTrades = len(res.Trades)

	var wins int
	var grossProfit, grossLoss float64
	pnls := make([]float64, 0, len(res.Trades))
	positions := make(map[int64]struct{})
	tp1Hits := 0
	for _, t := range res.Trades {
		pnl := t.Pnl.InexactFloat64()
		pnls = append(pnls, pnl)
		m.TotalPnl += pnl
		if pnl > 0 {
			wins++
			grossProfit += pnl
		} else {
			grossLoss += -pnl
		}
		positions[t.EntryTs] = struct{}{}
		if t.ExitReason == engine.ExitReasonTP(1) {
			tp1Hits++
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(wins) / float64(m.TotalTrades)
	}
	if len(positions) > 0 {
		m.TP1Rate = float64(tp1Hits) / float64(len(positions))
	}
	if c.InitialCapital > 0 {
		m.ReturnPct = m.TotalPnl / c.InitialCapital * 100
	}

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = profitFactorCap
	}

	mean, std := meanStd(pnls)
	if len(pnls) >= 2 && std > 0 {
		m.Sharpe = mean / std
	}
	m.Consistency = 100 / (1 + std)

	var ddMoney float64
	for _, p := range res.Equity {
		if dd := p.DrawdownPct.InexactFloat64(); dd > m.MaxDrawdownPct {
			m.MaxDrawdownPct = dd
		}
	}
	if c.InitialCapital > 0 {
		// Peak-to-trough in money terms for the recovery factor.
		peak := c.InitialCapital
		for _, p := range res.Equity {
			eq := p.Equity.InexactFloat64()
			if eq > peak {
				peak = eq
			}
			if drop := peak - eq; drop > ddMoney {
				ddMoney = drop
			}
		}
	}
	switch {
	case ddMoney > 0:
		m.RecoveryFactor = m.TotalPnl / ddMoney
	case m.TotalPnl > 0:
		m.RecoveryFactor = profitFactorCap
	}

	return m
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	std = math.Sqrt(ss / float64(len(xs)-1))
	return mean, std
}
