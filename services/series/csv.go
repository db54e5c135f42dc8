package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// LoadCSV reads a candle file in the export format
// `timestamp,open,high,low,close,volume` (header optional, timestamps in ms).
func LoadCSV(path, symbol, interval string) (*Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var candles []Candle
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", path, line+1, err)
		}
		line++
		if len(record) < 6 {
			continue
		}
		// Skip header row
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "timestamp") {
			continue
		}
		c, err := parseCandle(record)
		if err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", path, line, err)
		}
		candles = append(candles, c)
	}

	return New(symbol, interval, candles)
}

func parseCandle(record []string) (Candle, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("timestamp: %w", err)
	}
	fields := [5]decimal.Decimal{}
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		v, err := decimal.NewFromString(strings.Trim(strings.TrimSpace(record[i+1]), `"`))
		if err != nil {
			return Candle{}, fmt.Errorf("%s: %w", names[i], err)
		}
		fields[i] = v
	}
	return Candle{
		Ts:     ts,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}
