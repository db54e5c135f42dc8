package series

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func candle(ts int64, o, h, l, c, v float64) Candle {
	return Candle{Ts: ts, Open: d(o), High: d(h), Low: d(l), Close: d(c), Volume: d(v)}
}

func TestNewValidatesOrdering(t *testing.T) {
	_, err := New("BTCUSDT", "5m", []Candle{
		candle(1000, 1, 2, 0.5, 1.5, 10),
		candle(2000, 1.5, 2.5, 1, 2, 10),
	})
	require.NoError(t, err)

	_, err = New("BTCUSDT", "5m", []Candle{
		candle(2000, 1, 2, 0.5, 1.5, 10),
		candle(1000, 1.5, 2.5, 1, 2, 10),
	})
	require.Error(t, err, "decreasing timestamps")

	_, err = New("BTCUSDT", "5m", []Candle{
		candle(1000, 1, 2, 0.5, 1.5, 10),
		candle(1000, 1.5, 2.5, 1, 2, 10),
	})
	require.Error(t, err, "duplicate timestamps")
}

func TestSeriesAccessors(t *testing.T) {
	s, err := New("ETHUSDT", "1h", []Candle{
		candle(1000, 1, 2, 0.5, 1.5, 10),
		candle(2000, 1.5, 2.5, 1, 2, 20),
		candle(3000, 2, 3, 1.5, 2.5, 30),
	})
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", s.Symbol())
	assert.Equal(t, "1h", s.Interval())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, int64(1000), s.First().Ts)
	assert.Equal(t, int64(3000), s.Last().Ts)
	assert.Equal(t, int64(2000), s.At(1).Ts)
	assert.True(t, s.CloseAt(1).Equal(d(2)))
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	content := "timestamp,open,high,low,close,volume\n" +
		"1000,100.5,101,99.5,100.75,12.5\n" +
		"2000,100.75,102,100.5,101.25,8\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadCSV(path, "BTCUSDT", "5m")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "BTCUSDT", s.Symbol())
	assert.True(t, s.At(0).Open.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, s.At(1).Close.Equal(decimal.RequireFromString("101.25")))
}

func TestLoadCSVNoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	content := "1000,100.5,101,99.5,100.75,12.5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadCSV(path, "BTCUSDT", "5m")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestLoadCSVRejectsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	content := "1000,100.5,not-a-price,99.5,100.75,12.5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadCSV(path, "BTCUSDT", "5m")
	require.Error(t, err)
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"), "BTCUSDT", "5m")
	require.Error(t, err)
}

func TestSnapshotRoundtrip(t *testing.T) {
	orig, err := New("BTCUSDT", "15m", []Candle{
		candle(1000, 100.5, 101.25, 99.5, 100.75, 12.5),
		candle(2000, 100.75, 102, 100.5, 101.25, 8),
		candle(3000, 101.25, 103.5, 101, 103, 20),
	})
	require.NoError(t, err)

	data, err := orig.Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	got, err := FromSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, orig.Symbol(), got.Symbol())
	assert.Equal(t, orig.Interval(), got.Interval())
	require.Equal(t, orig.Len(), got.Len())
	for i := 0; i < orig.Len(); i++ {
		want, have := orig.At(i), got.At(i)
		assert.Equal(t, want.Ts, have.Ts)
		assert.True(t, want.Open.Equal(have.Open))
		assert.True(t, want.High.Equal(have.High))
		assert.True(t, want.Low.Equal(have.Low))
		assert.True(t, want.Close.Equal(have.Close))
		assert.True(t, want.Volume.Equal(have.Volume))
	}
}

func TestFromSnapshotRejectsGarbage(t *testing.T) {
	_, err := FromSnapshot([]byte("not arrow data"))
	require.Error(t, err)
}
