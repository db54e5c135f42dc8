package series

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/shopspring/decimal"
)

// Snapshot format: one Arrow IPC record batch with ts/open/high/low/close/volume
// columns and symbol/interval carried as schema metadata. A snapshot is the
// cheap, immutable form of a series handed across run boundaries and cached
// between optimization runs so the raw data is parsed and validated once.

const (
	metaSymbol   = "symbol"
	metaInterval = "interval"
)

func snapshotSchema(symbol, interval string) *arrow.Schema {
	meta := arrow.NewMetadata([]string{metaSymbol, metaInterval}, []string{symbol, interval})
	return arrow.NewSchema([]arrow.Field{
		{Name: "ts", Type: arrow.PrimitiveTypes.Int64},
		{Name: "open", Type: arrow.PrimitiveTypes.Float64},
		{Name: "high", Type: arrow.PrimitiveTypes.Float64},
		{Name: "low", Type: arrow.PrimitiveTypes.Float64},
		{Name: "close", Type: arrow.PrimitiveTypes.Float64},
		{Name: "volume", Type: arrow.PrimitiveTypes.Float64},
	}, &meta)
}

// Snapshot serializes the series to Arrow IPC bytes.
func (s *Series) Snapshot() ([]byte, error) {
	pool := memory.NewGoAllocator()
	schema := snapshotSchema(s.symbol, s.interval)

	n := len(s.candles)
	ts := make([]int64, n)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range s.candles {
		ts[i] = c.Ts
		opens[i] = c.Open.InexactFloat64()
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
		closes[i] = c.Close.InexactFloat64()
		volumes[i] = c.Volume.InexactFloat64()
	}

	tsBuilder := array.NewInt64Builder(pool)
	tsBuilder.AppendValues(ts, nil)
	tsArray := tsBuilder.NewInt64Array()

	cols := []arrow.Array{tsArray}
	for _, vals := range [][]float64{opens, highs, lows, closes, volumes} {
		b := array.NewFloat64Builder(pool)
		b.AppendValues(vals, nil)
		cols = append(cols, b.NewFloat64Array())
	}

	record := array.NewRecord(schema, cols, int64(n))
	defer record.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := writer.Write(record); err != nil {
		return nil, fmt.Errorf("failed to write Arrow record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	return buf.Bytes(), nil
}

// FromSnapshot rebuilds a series from Arrow IPC bytes produced by Snapshot.
func FromSnapshot(data []byte) (*Series, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Arrow reader: %w", err)
	}
	defer reader.Release()

	schema := reader.Schema()
	meta := schema.Metadata()
	var symbol, interval string
	if i := meta.FindKey(metaSymbol); i >= 0 {
		symbol = meta.Values()[i]
	}
	if i := meta.FindKey(metaInterval); i >= 0 {
		interval = meta.Values()[i]
	}

	var candles []Candle
	for reader.Next() {
		record := reader.Record()
		ts, ok := record.Column(0).(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("snapshot column 0: expected int64 ts, got %s", record.Column(0).DataType())
		}
		floats := make([]*array.Float64, 5)
		for c := 1; c <= 5; c++ {
			col, ok := record.Column(c).(*array.Float64)
			if !ok {
				return nil, fmt.Errorf("snapshot column %d: expected float64, got %s", c, record.Column(c).DataType())
			}
			floats[c-1] = col
		}
		for i := 0; i < int(record.NumRows()); i++ {
			candles = append(candles, Candle{
				Ts:     ts.Value(i),
				Open:   decimal.NewFromFloat(floats[0].Value(i)),
				High:   decimal.NewFromFloat(floats[1].Value(i)),
				Low:    decimal.NewFromFloat(floats[2].Value(i)),
				Close:  decimal.NewFromFloat(floats[3].Value(i)),
				Volume: decimal.NewFromFloat(floats[4].Value(i)),
			})
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Arrow snapshot: %w", err)
	}

	return New(symbol, interval, candles)
}
