// Package engine implements the trade-simulation state machine and the
// bar-by-bar backtest runner built on top of it.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// SLMode controls how the stop price reacts to take-profit fills.
type SLMode int

const (
	// SLModeFixed keeps the stop at its entry-time level for the whole trade.
	SLModeFixed SLMode = iota
	// SLModeBreakeven moves the stop to the entry price once the configured
	// take-profit level fills.
	SLModeBreakeven
	// SLModeCascade trails the stop to the previous take-profit price as each
	// level fills (to entry after TP1).
	SLModeCascade
)

func (m SLMode) String() string {
	switch m {
	case SLModeFixed:
		return "fixed"
	case SLModeBreakeven:
		return "breakeven"
	case SLModeCascade:
		return "cascade"
	}
	return fmt.Sprintf("SLMode(%d)", int(m))
}

// ParseSLMode maps the config spelling to an SLMode.
func ParseSLMode(s string) (SLMode, error) {
	switch s {
	case "fixed", "":
		return SLModeFixed, nil
	case "breakeven":
		return SLModeBreakeven, nil
	case "cascade":
		return SLModeCascade, nil
	}
	return SLModeFixed, fmt.Errorf("unknown sl mode %q", s)
}

// TakeProfitLevel is one rung of the take-profit ladder. Percent is the offset
// from entry, Amount the share of the original position size, both in percent.
type TakeProfitLevel struct {
	Index   int
	Percent decimal.Decimal
	Amount  decimal.Decimal
}

// Params is the full simulation configuration for one backtest.
type Params struct {
	InitialCapital decimal.Decimal
	Leverage       decimal.Decimal
	SLPercent      decimal.Decimal
	SLMode         SLMode
	// BreakevenAfter is the TP index that arms the breakeven stop in
	// SLModeBreakeven. Ignored by the other modes.
	BreakevenAfter int
	TakeProfits    []TakeProfitLevel
	CommissionRate decimal.Decimal
	CommissionOn   bool
	ReentryOn      bool
}

// amountTolerance bounds how far the raw TP amounts may drift from 100%
// before the ladder is rejected instead of normalized.
var amountTolerance = decimal.New(1, -6)

var hundred = decimal.NewFromInt(100)

// Validate checks the whole configuration and reports every violation at
// once. A non-nil error means the params must not be used; nothing is
// clamped or partially applied.
func (p Params) Validate() error {
	var err error
	if !p.InitialCapital.IsPositive() {
		err = multierr.Append(err, fmt.Errorf("initial capital must be positive, got %s", p.InitialCapital))
	}
	if !p.Leverage.IsPositive() {
		err = multierr.Append(err, fmt.Errorf("leverage must be positive, got %s", p.Leverage))
	}
	if !p.SLPercent.IsPositive() {
		err = multierr.Append(err, fmt.Errorf("sl percent must be positive, got %s", p.SLPercent))
	}
	if len(p.TakeProfits) == 0 {
		err = multierr.Append(err, fmt.Errorf("at least one take-profit level is required"))
	}
	sum := decimal.Zero
	prev := decimal.Zero
	for i, tp := range p.TakeProfits {
		if tp.Index != i+1 {
			err = multierr.Append(err, fmt.Errorf("tp %d: index %d out of order", i+1, tp.Index))
		}
		if !tp.Percent.GreaterThan(prev) {
			err = multierr.Append(err, fmt.Errorf("tp %d: percent %s not greater than previous %s", i+1, tp.Percent, prev))
		}
		if !tp.Amount.IsPositive() {
			err = multierr.Append(err, fmt.Errorf("tp %d: amount must be positive, got %s", i+1, tp.Amount))
		}
		prev = tp.Percent
		sum = sum.Add(tp.Amount)
	}
	if len(p.TakeProfits) > 0 && sum.Sub(hundred).Abs().GreaterThan(amountTolerance) {
		err = multierr.Append(err, fmt.Errorf("tp amounts must sum to 100, got %s", sum))
	}
	if p.SLMode == SLModeBreakeven && (p.BreakevenAfter < 1 || p.BreakevenAfter > len(p.TakeProfits)) {
		err = multierr.Append(err, fmt.Errorf("breakeven-after index %d outside ladder 1..%d", p.BreakevenAfter, len(p.TakeProfits)))
	}
	if p.CommissionOn && p.CommissionRate.IsNegative() {
		err = multierr.Append(err, fmt.Errorf("commission rate must not be negative, got %s", p.CommissionRate))
	}
	return err
}

// normalizedTakeProfits returns a copy of the ladder with amounts summing to
// exactly 100; the last level absorbs the residue. Validate must have passed.
func (p Params) normalizedTakeProfits() []TakeProfitLevel {
	out := make([]TakeProfitLevel, len(p.TakeProfits))
	copy(out, p.TakeProfits)
	sum := decimal.Zero
	for i := range out[:len(out)-1] {
		sum = sum.Add(out[i].Amount)
	}
	out[len(out)-1].Amount = hundred.Sub(sum)
	return out
}
