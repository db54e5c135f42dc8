package report

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ironsan2kk-pixel/komass-sub001/services/engine"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func sampleResult() *engine.Result {
	return &engine.Result{
		Trades: []engine.Trade{
			{
				EntryTs: 0, ExitTs: 3_600_000,
				Pnl: d(100), ExitReason: engine.ExitReasonTP(1),
			},
			{
				EntryTs: 7_200_000, ExitTs: 14_400_000,
				Pnl: d(-50), ExitReason: engine.ExitReasonSL,
			},
		},
		Equity: []engine.EquityPoint{
			{Ts: 0, Equity: d(10000)},
			{Ts: 3_600_000, Equity: d(10100)},
			{Ts: 14_400_000, Equity: d(10050), DrawdownPct: d(0.5)},
		},
		MaxTPStreak: 1,
		MaxSLStreak: 1,
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResult())

	assert.Equal(t, 2, s.TotalTrades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.True(t, s.WinRate.Equal(d(50)), "got %s", s.WinRate)
	assert.True(t, s.NetPnl.Equal(d(50)))
	assert.True(t, s.AvgWin.Equal(d(100)))
	assert.True(t, s.AvgLoss.Equal(d(50)))
	// 0.5*100 - 0.5*50.
	assert.True(t, s.Expectancy.Equal(d(25)), "got %s", s.Expectancy)
	assert.True(t, s.ProfitFactor.Equal(d(2)))
	assert.True(t, s.MaxDrawdownPct.Equal(d(0.5)))
	// (1h + 2h) / 2 trades.
	assert.True(t, s.AvgHoldingTimeHours.Equal(d(1.5)), "got %s", s.AvgHoldingTimeHours)
	assert.Equal(t, 1, s.MaxTPStreak)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(&engine.Result{})
	assert.Zero(t, s.TotalTrades)
	assert.True(t, s.NetPnl.IsZero())
	assert.True(t, s.WinRate.IsZero())
}

func TestSummaryPrint(t *testing.T) {
	var buf bytes.Buffer
	Summarize(sampleResult()).Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "Total trades:")
	assert.Contains(t, out, "Win rate:")
	assert.Contains(t, out, "50.00%")
	assert.Contains(t, out, "Profit factor:")
}
