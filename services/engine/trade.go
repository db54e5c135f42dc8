package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side of a position.
type Side int

const (
	SideLong Side = iota + 1
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "Long"
	case SideShort:
		return "Short"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// ExitReason tags why a trade leg closed.
type ExitReason string

const (
	ExitReasonSL        ExitReason = "SL"
	ExitReasonReversal  ExitReason = "Reversal"
	ExitReasonEndOfData ExitReason = "EndOfData"
)

// ExitReasonTP returns the reason tag for take-profit level idx (TP1..TPN).
func ExitReasonTP(idx int) ExitReason {
	return ExitReason(fmt.Sprintf("TP%d", idx))
}

// Trade is one closed leg of a position. A position with a partial ladder
// produces one Trade per filled level plus one for the final close.
type Trade struct {
	ID         string
	Side       Side
	EntryTs    int64
	EntryPrice decimal.Decimal
	ExitTs     int64
	ExitPrice  decimal.Decimal
	Pnl        decimal.Decimal
	PnlPct     decimal.Decimal
	ExitReason ExitReason
	// TPHits lists the ladder indices filled up to and including this leg.
	TPHits    []int
	IsReentry bool
}

// EquityPoint is one sample of the equity curve, emitted once per bar.
type EquityPoint struct {
	Ts            int64
	Equity        decimal.Decimal
	DrawdownPct   decimal.Decimal
	OpenPositions int
}

// Result is the read-only outcome of one backtest run.
type Result struct {
	Trades []Trade
	Equity []EquityPoint
	// MaxTPStreak and MaxSLStreak track the longest consecutive runs of
	// profitable TP exits and stop-outs.
	MaxTPStreak int
	MaxSLStreak int
}

// TotalPnl sums the realized pnl across all trade legs.
func (r *Result) TotalPnl() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Trades {
		total = total.Add(t.Pnl)
	}
	return total
}

// FinalEquity returns the last equity sample, or zero when the curve is empty.
func (r *Result) FinalEquity() decimal.Decimal {
	if len(r.Equity) == 0 {
		return decimal.Zero
	}
	return r.Equity[len(r.Equity)-1].Equity
}
