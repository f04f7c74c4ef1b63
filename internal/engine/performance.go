package engine

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"swingback/internal/config"
	"swingback/types"
)

const tradingDaysPerYear = 252

// Result is the full outcome of one run: headline metrics plus the
// complete trade and snapshot history.
type Result struct {
	StartDate         string            `json:"start_date"`
	EndDate           string            `json:"end_date"`
	Mode              string            `json:"mode"`
	InitialCapital    decimal.Decimal   `json:"initial_capital"`
	FinalValue        decimal.Decimal   `json:"final_value"`
	TotalReturn       float64           `json:"total_return"`
	AnnualizedReturn  float64           `json:"annualized_return"`
	MaxDrawdown       float64           `json:"max_drawdown"`
	SharpeRatio       float64           `json:"sharpe_ratio"`
	TotalTrades       int               `json:"total_trades"`
	WinRate           float64           `json:"win_rate"`
	AvgProfitPerTrade decimal.Decimal   `json:"avg_profit_per_trade"`
	AvgHoldingDays    float64           `json:"avg_holding_days"`
	TradeHistory      []types.Trade     `json:"trade_history"`
	PortfolioHistory  []types.Snapshot  `json:"portfolio_history"`
}

// analyze computes the result metrics from the finished portfolio.
// The independent metric groups run concurrently.
func analyze(cfg *config.Config, pf *portfolio) *Result {
	result := &Result{
		StartDate:         cfg.Backtest.StartDate,
		EndDate:           cfg.Backtest.EndDate,
		Mode:              cfg.Strategy.Mode,
		InitialCapital:    decimal.NewFromFloat(cfg.Backtest.InitialCapital),
		AvgProfitPerTrade: decimal.Zero,
		TradeHistory:      pf.trades,
		PortfolioHistory:  pf.snapshots,
	}

	result.FinalValue = result.InitialCapital
	if n := len(pf.snapshots); n > 0 {
		result.FinalValue = pf.snapshots[n-1].Value
	}

	tradingDays := float64(len(pf.snapshots))

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		result.TotalReturn, result.AnnualizedReturn = calcReturns(result.InitialCapital, result.FinalValue, tradingDays)
	}()
	go func() {
		defer wg.Done()
		result.MaxDrawdown, result.SharpeRatio = calcRiskMetrics(pf.snapshots)
	}()
	go func() {
		defer wg.Done()
		result.TotalTrades, result.WinRate, result.AvgProfitPerTrade, result.AvgHoldingDays = calcTradeStats(pf.trades)
	}()
	wg.Wait()

	return result
}

// calcReturns annualizes over the trading days actually executed, one
// snapshot per day.
func calcReturns(initial, final decimal.Decimal, tradingDays float64) (float64, float64) {
	if !initial.IsPositive() {
		return 0, 0
	}
	total := final.Sub(initial).Div(initial).InexactFloat64()

	if tradingDays <= 0 {
		return total, total
	}
	return total, total * (365.0 / tradingDays)
}

// calcRiskMetrics walks the snapshot series once for the peak-relative
// max drawdown, then computes the annualized Sharpe-like ratio over the
// chained daily returns.
func calcRiskMetrics(snapshots []types.Snapshot) (float64, float64) {
	if len(snapshots) == 0 {
		return 0, 0
	}

	peak := snapshots[0].Value
	maxDD := 0.0
	for _, snap := range snapshots {
		if snap.Value.GreaterThan(peak) {
			peak = snap.Value
		}
		if peak.IsPositive() {
			dd := peak.Sub(snap.Value).Div(peak).InexactFloat64()
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	if len(snapshots) < 2 {
		return maxDD, 0
	}
	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].Value
		if !prev.IsPositive() {
			continue
		}
		returns = append(returns, snapshots[i].Value.Sub(prev).Div(prev).InexactFloat64())
	}
	if len(returns) == 0 {
		return maxDD, 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var varianceSum float64
	for _, r := range returns {
		diff := r - mean
		varianceSum += diff * diff
	}
	std := math.Sqrt(varianceSum / float64(len(returns)))
	if std == 0 {
		return maxDD, 0
	}

	return maxDD, mean / std * math.Sqrt(tradingDaysPerYear)
}

// calcTradeStats aggregates the sell legs: trade count, win rate,
// average net profit and average holding period.
func calcTradeStats(trades []types.Trade) (int, float64, decimal.Decimal, float64) {
	sells := 0
	wins := 0
	totalProfit := decimal.Zero
	totalHoldingDays := 0

	for _, tr := range trades {
		if tr.Action != types.ActionSell {
			continue
		}
		sells++
		totalProfit = totalProfit.Add(tr.Profit)
		totalHoldingDays += tr.HoldingDays
		if tr.Profit.IsPositive() {
			wins++
		}
	}

	if sells == 0 {
		return 0, 0, decimal.Zero, 0
	}
	n := decimal.NewFromInt(int64(sells))
	return sells,
		float64(wins) / float64(sells),
		totalProfit.Div(n),
		float64(totalHoldingDays) / float64(sells)
}
