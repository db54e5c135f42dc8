// Package series holds immutable OHLCV candle sequences and their
// columnar snapshot format.
package series

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Candle is a single OHLCV bar. Timestamps are milliseconds since epoch, UTC.
type Candle struct {
	Ts     int64
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Series is an ordered, read-only candle sequence. Once built it is never
// mutated, so a single instance can be shared across concurrent backtests.
type Series struct {
	symbol   string
	interval string
	candles  []Candle
}

// New validates ordering and wraps the candles. The slice is owned by the
// series after the call.
func New(symbol, interval string, candles []Candle) (*Series, error) {
	for i := 1; i < len(candles); i++ {
		if candles[i].Ts <= candles[i-1].Ts {
			return nil, fmt.Errorf("series %s %s: candle %d out of order (ts %d after %d)",
				symbol, interval, i, candles[i].Ts, candles[i-1].Ts)
		}
	}
	return &Series{symbol: symbol, interval: interval, candles: candles}, nil
}

func (s *Series) Symbol() string   { return s.symbol }
func (s *Series) Interval() string { return s.interval }
func (s *Series) Len() int         { return len(s.candles) }

// At returns the candle at index i. Traversal is expected to be sequential;
// the simulator never looks ahead of the bar it is processing.
func (s *Series) At(i int) Candle { return s.candles[i] }

// CloseAt is a convenience accessor for indicator math.
func (s *Series) CloseAt(i int) decimal.Decimal { return s.candles[i].Close }

// First and Last return the boundary candles; both panic on an empty series.
func (s *Series) First() Candle { return s.candles[0] }
func (s *Series) Last() Candle  { return s.candles[len(s.candles)-1] }
