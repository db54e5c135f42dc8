package strategies

import (
	"fmt"

	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
)

// warmupMultiplier pads the slowest lookback so the recursive EMA has
// converged before any trade is allowed.
const warmupMultiplier = 3

// EMACross signals on fast/slow EMA crossovers. Trend is the sign of
// fast minus slow; the entry signal fires on the bar where the sign flips.
type EMACross struct {
	fast, slow int
	emaFast    []float64
	emaSlow    []float64
}

// NewEMACross precomputes both EMA tracks over the series. Precomputation is
// causal: each value only depends on closes up to its own bar.
func NewEMACross(s *series.Series, fast, slow int) (*EMACross, error) {
	if fast < 1 || slow < 1 {
		return nil, fmt.Errorf("ema periods must be positive, got fast=%d slow=%d", fast, slow)
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast period %d must be below slow period %d", fast, slow)
	}
	p := &EMACross{
		fast:    fast,
		slow:    slow,
		emaFast: make([]float64, s.Len()),
		emaSlow: make([]float64, s.Len()),
	}
	calculateEMA(s, fast, p.emaFast)
	calculateEMA(s, slow, p.emaSlow)
	return p, nil
}

func (p *EMACross) Name() string { return "ema_cross" }

func (p *EMACross) WarmupBars() int { return p.slow * warmupMultiplier }

func (p *EMACross) Evaluate(i int) (trend, signal int) {
	diff := p.emaFast[i] - p.emaSlow[i]
	switch {
	case diff > 0:
		trend = 1
	case diff < 0:
		trend = -1
	}
	if i == 0 {
		return trend, 0
	}
	prev := p.emaFast[i-1] - p.emaSlow[i-1]
	if diff > 0 && prev <= 0 {
		signal = 1
	} else if diff < 0 && prev >= 0 {
		signal = -1
	}
	return trend, signal
}

// calculateEMA fills result with a TradingView-style EMA: seeded with the
// SMA of the first N closes, then alpha = 2/(N+1) recursion.
func calculateEMA(s *series.Series, period int, result []float64) {
	if s.Len() < period {
		return
	}
	var sma float64
	for i := 0; i < period; i++ {
		sma += s.CloseAt(i).InexactFloat64()
	}
	sma /= float64(period)
	result[period-1] = sma

	alpha := 2.0 / float64(period+1)
	oneMinusAlpha := 1.0 - alpha
	for i := period; i < s.Len(); i++ {
		result[i] = s.CloseAt(i).InexactFloat64()*alpha + result[i-1]*oneMinusAlpha
	}
}
