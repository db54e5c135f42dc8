package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/ironsan2kk-pixel/komass-sub001/services/engine"
	"github.com/ironsan2kk-pixel/komass-sub001/services/optimizer"
)

// WriteTradesCSV exports the closed trade legs.
func WriteTradesCSV(path string, trades []engine.Trade) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"id", "type", "entry_time_utc", "entry_price", "exit_time_utc", "exit_price",
		"pnl", "pnl_pct", "exit_reason", "tp_hits", "is_reentry",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range trades {
		hits := make([]string, len(t.TPHits))
		for i, h := range t.TPHits {
			hits[i] = strconv.Itoa(h)
		}
		row := []string{
			t.ID,
			t.Side.String(),
			formatTs(t.EntryTs),
			t.EntryPrice.String(),
			formatTs(t.ExitTs),
			t.ExitPrice.String(),
			t.Pnl.StringFixed(8),
			t.PnlPct.StringFixed(4),
			string(t.ExitReason),
			strings.Join(hits, "|"),
			strconv.FormatBool(t.IsReentry),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write trade row: %w", err)
		}
	}
	return nil
}

// WriteEquityCSV exports the per-bar equity curve.
func WriteEquityCSV(path string, equity []engine.EquityPoint) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"time_utc", "equity", "drawdown_pct", "open_positions"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range equity {
		row := []string{
			formatTs(p.Ts),
			p.Equity.StringFixed(8),
			p.DrawdownPct.StringFixed(4),
			strconv.Itoa(p.OpenPositions),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write equity row: %w", err)
		}
	}
	return nil
}

// WriteSummaryJSON dumps the ranked optimization results.
func WriteSummaryJSON(path string, summary *optimizer.Summary) error {
	data, err := sonic.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteHeatmapJSON dumps a 2-axis scan.
func WriteHeatmapJSON(path string, hm *optimizer.Heatmap) error {
	data, err := sonic.MarshalIndent(hm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal heatmap: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
