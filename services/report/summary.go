// Package report renders backtest and optimization outcomes: CSV exports,
// JSON result dumps and human-readable summaries.
package report

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ironsan2kk-pixel/komass-sub001/services/engine"
)

// TradeSummary aggregates closed-leg statistics for one backtest.
type TradeSummary struct {
	TotalTrades         int
	Wins                int
	Losses              int
	WinRate             decimal.Decimal
	NetPnl              decimal.Decimal
	AvgWin              decimal.Decimal
	AvgLoss             decimal.Decimal
	Expectancy          decimal.Decimal
	MaxDrawdownPct      decimal.Decimal
	ProfitFactor        decimal.Decimal
	AvgHoldingTimeHours decimal.Decimal
	MaxTPStreak         int
	MaxSLStreak         int
}

var hundred = decimal.NewFromInt(100)

// Summarize computes the summary from a backtest result.
func Summarize(res *engine.Result) TradeSummary {
	s := TradeSummary{
		MaxTPStreak: res.MaxTPStreak,
		MaxSLStreak: res.MaxSLStreak,
	}
	if len(res.Trades) == 0 {
		return s
	}

	var grossProfit, grossLoss decimal.Decimal
	var totalHoldingMs int64
	for _, t := range res.Trades {
		s.NetPnl = s.NetPnl.Add(t.Pnl)
		if t.Pnl.IsPositive() {
			s.Wins++
			grossProfit = grossProfit.Add(t.Pnl)
		} else {
			s.Losses++
			grossLoss = grossLoss.Add(t.Pnl.Abs())
		}
		totalHoldingMs += t.ExitTs - t.EntryTs
	}
	s.TotalTrades = len(res.Trades)
	total := decimal.NewFromInt(int64(s.TotalTrades))
	s.WinRate = decimal.NewFromInt(int64(s.Wins)).Div(total).Mul(hundred)

	if s.Wins > 0 {
		s.AvgWin = grossProfit.Div(decimal.NewFromInt(int64(s.Wins)))
	}
	if s.Losses > 0 {
		s.AvgLoss = grossLoss.Div(decimal.NewFromInt(int64(s.Losses)))
	}
	winFrac := s.WinRate.Div(hundred)
	s.Expectancy = winFrac.Mul(s.AvgWin).Sub(decimal.NewFromInt(1).Sub(winFrac).Mul(s.AvgLoss))
	if grossLoss.IsPositive() {
		s.ProfitFactor = grossProfit.Div(grossLoss)
	}
	s.AvgHoldingTimeHours = decimal.NewFromInt(totalHoldingMs).Div(total).Div(decimal.NewFromInt(3600000))

	for _, p := range res.Equity {
		if p.DrawdownPct.GreaterThan(s.MaxDrawdownPct) {
			s.MaxDrawdownPct = p.DrawdownPct
		}
	}
	return s
}

// Print writes the summary as a readable block, formatting counts with
// locale-aware separators.
func (s TradeSummary) Print(w io.Writer) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "=== Backtest Summary ===\n")
	p.Fprintf(w, "Total trades:      %d (wins %d / losses %d)\n", s.TotalTrades, s.Wins, s.Losses)
	p.Fprintf(w, "Win rate:          %s%%\n", s.WinRate.StringFixed(2))
	p.Fprintf(w, "Net pnl:           %s\n", s.NetPnl.StringFixed(2))
	p.Fprintf(w, "Avg win / loss:    %s / %s\n", s.AvgWin.StringFixed(2), s.AvgLoss.StringFixed(2))
	p.Fprintf(w, "Expectancy:        %s\n", s.Expectancy.StringFixed(2))
	p.Fprintf(w, "Profit factor:     %s\n", s.ProfitFactor.StringFixed(2))
	p.Fprintf(w, "Max drawdown:      %s%%\n", s.MaxDrawdownPct.StringFixed(2))
	p.Fprintf(w, "Avg holding (h):   %s\n", s.AvgHoldingTimeHours.StringFixed(2))
	p.Fprintf(w, "Max TP/SL streaks: %d / %d\n", s.MaxTPStreak, s.MaxSLStreak)
}

func formatTs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}
