package series

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseIntervalMs converts an interval spelling like "5m", "15m", "1h" or
// "4h" to its bar length in milliseconds.
func ParseIntervalMs(interval string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(interval))
	unit := int64(0)
	switch {
	case strings.HasSuffix(s, "h"):
		unit = 3_600_000
		s = strings.TrimSuffix(s, "h")
	case strings.HasSuffix(s, "m"):
		unit = 60_000
		s = strings.TrimSuffix(s, "m")
	default:
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	return n * unit, nil
}

// Resample aggregates the series into coarser bars on the target interval.
// Buckets are aligned to the epoch; within each bucket the open is the first
// bar's, high/low are the extremes, close is the last bar's and volume sums.
// The target must be a whole multiple of the source interval.
func (s *Series) Resample(target string) (*Series, error) {
	srcMs, err := ParseIntervalMs(s.interval)
	if err != nil {
		return nil, fmt.Errorf("source interval: %w", err)
	}
	dstMs, err := ParseIntervalMs(target)
	if err != nil {
		return nil, fmt.Errorf("target interval: %w", err)
	}
	if dstMs%srcMs != 0 {
		return nil, fmt.Errorf("target %s is not a multiple of source %s", target, s.interval)
	}
	if dstMs == srcMs {
		return s, nil
	}

	var out []Candle
	for _, c := range s.candles {
		bucket := (c.Ts / dstMs) * dstMs
		if len(out) > 0 && out[len(out)-1].Ts == bucket {
			agg := &out[len(out)-1]
			if c.High.GreaterThan(agg.High) {
				agg.High = c.High
			}
			if c.Low.LessThan(agg.Low) {
				agg.Low = c.Low
			}
			agg.Close = c.Close
			agg.Volume = agg.Volume.Add(c.Volume)
			continue
		}
		out = append(out, Candle{
			Ts:     bucket,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	return New(s.symbol, target, out)
}
