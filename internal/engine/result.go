package engine

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WriteJSON persists the result record, creating parent directories as
// needed.
func (r *Result) WriteJSON(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create result dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// WriteTradesCSVFile writes the trade log as CSV to the given path.
func (r *Result) WriteTradesCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	defer f.Close()

	return r.writeTradesCSV(f)
}

// writeTradesCSV writes the trade log to any io.Writer as CSV. Pass
// os.Stdout for debugging, or a file.
func (r *Result) writeTradesCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"date",
		"action",
		"ticker",
		"quantity",
		"price",
		"fee",
		"amount",
		"profit",
		"profit_rate",
		"holding_days",
		"reason",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, tr := range r.TradeHistory {
		record := []string{
			tr.Date.Format(time.DateOnly),
			string(tr.Action),
			tr.Ticker,
			fmt.Sprintf("%d", tr.Quantity),
			tr.Price.String(),
			tr.Fee.String(),
			tr.Amount.String(),
			tr.Profit.String(),
			fmt.Sprintf("%.4f", tr.ProfitRate),
			fmt.Sprintf("%d", tr.HoldingDays),
			tr.Reason,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func (r *Result) print() {
	fmt.Println("===== Backtest Report =====")
	fmt.Printf("Period:                %s .. %s\n", r.StartDate, r.EndDate)
	fmt.Printf("Mode:                  %s\n", r.Mode)
	fmt.Printf("Initial Capital:       %s\n", r.InitialCapital.StringFixed(0))
	fmt.Printf("Final Value:           %s\n", r.FinalValue.StringFixed(0))

	fmt.Println("\n-- Performance --")
	fmt.Printf("Total Return:          %.2f%%\n", r.TotalReturn*100)
	fmt.Printf("Annualized Return:     %.2f%%\n", r.AnnualizedReturn*100)
	fmt.Printf("Max Drawdown:          %.2f%%\n", r.MaxDrawdown*100)
	fmt.Printf("Sharpe Ratio:          %.2f\n", r.SharpeRatio)

	fmt.Println("\n-- Trades --")
	fmt.Printf("Total Trades:          %d\n", r.TotalTrades)
	fmt.Printf("Win Rate:              %.2f%%\n", r.WinRate*100)
	fmt.Printf("Avg Profit/Trade:      %s\n", r.AvgProfitPerTrade.StringFixed(0))
	fmt.Printf("Avg Holding Days:      %.1f\n", r.AvgHoldingDays)

	fmt.Println("===========================")
}
