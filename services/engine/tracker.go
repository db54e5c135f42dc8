package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
)

type tpSlot struct {
	level TakeProfitLevel
	price decimal.Decimal
	hit   bool
}

// Position is the mutable state of one open trade: the remaining size, the
// stop level and the take-profit ladder progress.
type Position struct {
	Side         Side
	EntryTs      int64
	EntryPrice   decimal.Decimal
	Capital      decimal.Decimal
	RemainingPct decimal.Decimal
	SLPrice      decimal.Decimal
	Highest      decimal.Decimal
	Lowest       decimal.Decimal
	IsReentry    bool

	tps  []tpSlot
	hits []int
}

// Tracker runs the position lifecycle against one bar at a time:
// NONE -> OPEN -> (PARTIALLY_CLOSED)* -> CLOSED. It owns a single position
// slot and the closed trade legs it produced.
type Tracker struct {
	params Params
	ladder []TakeProfitLevel

	pos      *Position
	trades   []Trade
	realized decimal.Decimal

	lastExitReason ExitReason

	tpStreak    int
	slStreak    int
	maxTPStreak int
	maxSLStreak int
}

// NewTracker validates params and builds a tracker with a normalized
// take-profit ladder. Validation failures carry every violation at once.
func NewTracker(params Params) (*Tracker, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		params: params,
		ladder: params.normalizedTakeProfits(),
	}, nil
}

// Step processes one bar. The open position, if any, is resolved first
// (stop, ladder, reversal); entries and re-entries are evaluated after, so a
// position never exits on its own entry bar.
func (t *Tracker) Step(bar series.Candle, trend, signal int) {
	slExitSide := Side(0)
	if t.pos != nil {
		slExitSide = t.evaluate(bar, signal)
	}

	if t.pos != nil {
		return
	}
	switch {
	case signal > 0:
		t.open(bar, SideLong, false)
	case signal < 0:
		t.open(bar, SideShort, false)
	case t.params.ReentryOn && slExitSide != 0 && trendMatches(slExitSide, trend):
		// Stop-out with the trend intact and no fresh opposite signal:
		// re-enter in the same direction on this bar.
		t.open(bar, slExitSide, true)
	}
}

// Position returns the open position, or nil when flat.
func (t *Tracker) Position() *Position { return t.pos }

// Trades returns the closed legs recorded so far.
func (t *Tracker) Trades() []Trade { return t.trades }

// Realized returns the accumulated realized pnl.
func (t *Tracker) Realized() decimal.Decimal { return t.realized }

// LastExitReason reports why the most recent leg closed.
func (t *Tracker) LastExitReason() ExitReason { return t.lastExitReason }

// OpenPositions is 1 while a position is open, 0 when flat.
func (t *Tracker) OpenPositions() int {
	if t.pos != nil {
		return 1
	}
	return 0
}

// MaxTPStreak and MaxSLStreak report the longest consecutive TP and SL runs.
func (t *Tracker) MaxTPStreak() int { return t.maxTPStreak }
func (t *Tracker) MaxSLStreak() int { return t.maxSLStreak }

// UnrealizedPnl marks the remaining position size at the given price.
func (t *Tracker) UnrealizedPnl(price decimal.Decimal) decimal.Decimal {
	if t.pos == nil {
		return decimal.Zero
	}
	remCapital := t.pos.Capital.Mul(t.pos.RemainingPct).Div(hundred)
	return remCapital.Mul(t.move(price)).Mul(t.params.Leverage)
}

// CloseAll force-closes any remaining position at the bar close.
func (t *Tracker) CloseAll(bar series.Candle, reason ExitReason) {
	if t.pos == nil {
		return
	}
	t.closeRemainder(bar.Ts, bar.Close, reason)
}

func (t *Tracker) open(bar series.Candle, side Side, reentry bool) {
	entry := bar.Close
	slOffset := entry.Mul(t.params.SLPercent).Div(hundred)
	var sl decimal.Decimal
	if side == SideLong {
		sl = entry.Sub(slOffset)
	} else {
		sl = entry.Add(slOffset)
	}

	tps := make([]tpSlot, len(t.ladder))
	for i, lvl := range t.ladder {
		offset := entry.Mul(lvl.Percent).Div(hundred)
		price := entry.Add(offset)
		if side == SideShort {
			price = entry.Sub(offset)
		}
		tps[i] = tpSlot{level: lvl, price: price}
	}

	t.pos = &Position{
		Side:         side,
		EntryTs:      bar.Ts,
		EntryPrice:   entry,
		Capital:      t.params.InitialCapital,
		RemainingPct: hundred,
		SLPrice:      sl,
		Highest:      bar.High,
		Lowest:       bar.Low,
		IsReentry:    reentry,
		tps:          tps,
	}
}

// evaluate applies the per-bar protocol to the open position: stop sweep,
// then ladder fills in ascending order, then reversal, then extremes.
// Returns the closed side when this bar ended in a stop exit.
func (t *Tracker) evaluate(bar series.Candle, signal int) Side {
	p := t.pos

	// 1. Stop: closes the whole remainder at the stop price.
	if t.slTouched(bar) {
		side := p.Side
		t.closeRemainder(bar.Ts, p.SLPrice, ExitReasonSL)
		return side
	}

	// 2. Ladder, ascending. Each fill emits a partial leg and may tighten
	// the stop depending on the mode.
	for i := range p.tps {
		slot := &p.tps[i]
		if slot.hit || !t.tpTouched(bar, slot.price) {
			continue
		}
		slot.hit = true
		p.hits = append(p.hits, slot.level.Index)
		t.closeLeg(bar.Ts, slot.price, slot.level.Amount, ExitReasonTP(slot.level.Index))
		p.RemainingPct = p.RemainingPct.Sub(slot.level.Amount)
		t.tightenSL(slot.level.Index)
	}
	if p.RemainingPct.IsZero() {
		t.pos = nil
		return 0
	}

	// 3. Reversal: an opposing signal closes the remainder at the close.
	if (p.Side == SideLong && signal < 0) || (p.Side == SideShort && signal > 0) {
		t.closeRemainder(bar.Ts, bar.Close, ExitReasonReversal)
		return 0
	}

	// 4. Extremes feed trailing diagnostics.
	if bar.High.GreaterThan(p.Highest) {
		p.Highest = bar.High
	}
	if bar.Low.LessThan(p.Lowest) {
		p.Lowest = bar.Low
	}
	return 0
}

func (t *Tracker) slTouched(bar series.Candle) bool {
	if t.pos.Side == SideLong {
		return bar.Low.LessThanOrEqual(t.pos.SLPrice)
	}
	return bar.High.GreaterThanOrEqual(t.pos.SLPrice)
}

func (t *Tracker) tpTouched(bar series.Candle, price decimal.Decimal) bool {
	if t.pos.Side == SideLong {
		return bar.High.GreaterThanOrEqual(price)
	}
	return bar.Low.LessThanOrEqual(price)
}

// tightenSL moves the stop after TP level hitIdx filled. The stop only ever
// tightens once a level has fired, never loosens.
func (t *Tracker) tightenSL(hitIdx int) {
	p := t.pos
	var candidate decimal.Decimal
	switch t.params.SLMode {
	case SLModeFixed:
		return
	case SLModeBreakeven:
		if hitIdx < t.params.BreakevenAfter {
			return
		}
		candidate = p.EntryPrice
	case SLModeCascade:
		if hitIdx == 1 {
			candidate = p.EntryPrice
		} else {
			candidate = p.tps[hitIdx-2].price
		}
	}
	if p.Side == SideLong {
		if candidate.GreaterThan(p.SLPrice) {
			p.SLPrice = candidate
		}
	} else {
		if candidate.LessThan(p.SLPrice) {
			p.SLPrice = candidate
		}
	}
}

// move returns the signed fractional price move from entry for the open side.
func (t *Tracker) move(price decimal.Decimal) decimal.Decimal {
	p := t.pos
	if p.Side == SideLong {
		return price.Sub(p.EntryPrice).Div(p.EntryPrice)
	}
	return p.EntryPrice.Sub(price).Div(p.EntryPrice)
}

// closeLeg realizes amountPct of the original position size at the given
// price and records the trade leg.
func (t *Tracker) closeLeg(ts int64, price decimal.Decimal, amountPct decimal.Decimal, reason ExitReason) {
	p := t.pos
	legCapital := p.Capital.Mul(amountPct).Div(hundred)
	gross := legCapital.Mul(t.move(price)).Mul(t.params.Leverage)

	fees := decimal.Zero
	if t.params.CommissionOn {
		legNotional := legCapital.Mul(t.params.Leverage)
		entryFee := legNotional.Mul(t.params.CommissionRate)
		exitFee := legNotional.Mul(price).Div(p.EntryPrice).Mul(t.params.CommissionRate)
		fees = entryFee.Add(exitFee)
	}

	pnl := gross.Sub(fees)
	pnlPct := pnl.Div(legCapital).Mul(hundred)

	hits := make([]int, len(p.hits))
	copy(hits, p.hits)

	t.trades = append(t.trades, Trade{
		ID:         uuid.NewString(),
		Side:       p.Side,
		EntryTs:    p.EntryTs,
		EntryPrice: p.EntryPrice,
		ExitTs:     ts,
		ExitPrice:  price,
		Pnl:        pnl,
		PnlPct:     pnlPct,
		ExitReason: reason,
		TPHits:     hits,
		IsReentry:  p.IsReentry,
	})
	t.realized = t.realized.Add(pnl)
	t.lastExitReason = reason
	t.updateStreaks(reason)
}

func (t *Tracker) closeRemainder(ts int64, price decimal.Decimal, reason ExitReason) {
	p := t.pos
	t.closeLeg(ts, price, p.RemainingPct, reason)
	p.RemainingPct = decimal.Zero
	t.pos = nil
}

func (t *Tracker) updateStreaks(reason ExitReason) {
	switch {
	case reason == ExitReasonSL:
		t.slStreak++
		t.tpStreak = 0
		if t.slStreak > t.maxSLStreak {
			t.maxSLStreak = t.slStreak
		}
	case len(reason) > 2 && reason[:2] == "TP":
		t.tpStreak++
		t.slStreak = 0
		if t.tpStreak > t.maxTPStreak {
			t.maxTPStreak = t.tpStreak
		}
	default:
		t.tpStreak = 0
		t.slStreak = 0
	}
}

func trendMatches(side Side, trend int) bool {
	return (side == SideLong && trend > 0) || (side == SideShort && trend < 0)
}
