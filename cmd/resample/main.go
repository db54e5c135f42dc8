// Command resample aggregates a candle CSV into a coarser interval, e.g. 5m
// into 15m, writing the result in the same export format.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
)

func main() {
	in := flag.String("in", "", "Input CSV (timestamp,open,high,low,close,volume)")
	out := flag.String("out", "", "Output CSV path")
	src := flag.String("src", "5m", "Source interval")
	dst := flag.String("dst", "15m", "Target interval")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol tag for the series")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if *in == "" || *out == "" {
		logger.Fatal("-in and -out are required")
	}
	if err := run(*in, *out, *src, *dst, *symbol, logger); err != nil {
		logger.Fatal("resample failed", zap.Error(err))
	}
}

func run(in, out, src, dst, symbol string, logger *zap.Logger) error {
	s, err := series.LoadCSV(in, symbol, src)
	if err != nil {
		return err
	}
	resampled, err := s.Resample(dst)
	if err != nil {
		return err
	}

	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < resampled.Len(); i++ {
		c := resampled.At(i)
		row := []string{
			strconv.FormatInt(c.Ts, 10),
			c.Open.String(),
			c.High.String(),
			c.Low.String(),
			c.Close.String(),
			c.Volume.String(),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	logger.Info("resample complete",
		zap.String("src", src), zap.String("dst", dst),
		zap.Int("bars_in", s.Len()), zap.Int("bars_out", resampled.Len()),
		zap.String("out", out))
	return nil
}
