package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"swingback/internal/config"
	"swingback/internal/logger"
	"swingback/types"
)

// stubData serves a fixed bar series per ticker. The universe contains
// every ticker that has a bar on the requested date.
type stubData struct {
	bars map[string][]types.Bar
}

func (s *stubData) GetBars(_ context.Context, ticker string, asOf time.Time, lookback int) ([]types.Bar, error) {
	var out []types.Bar
	for _, b := range s.bars[ticker] {
		if !b.Date.After(asOf) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ticker %s: no bars", ticker)
	}
	if len(out) > lookback {
		out = out[len(out)-lookback:]
	}
	return out, nil
}

func (s *stubData) GetUniverse(_ context.Context, date time.Time) ([]types.Listing, error) {
	var out []types.Listing
	for ticker, bars := range s.bars {
		for _, b := range bars {
			if b.SameDay(date) {
				out = append(out, types.Listing{
					Ticker:    ticker,
					MarketCap: d("100000000000"),
					Class:     types.ClassCommon,
				})
				break
			}
		}
	}
	return out, nil
}

// stubSelector plays back scripted candidates, held scores and hold
// signals keyed by date.
type stubSelector struct {
	candidates  map[string][]types.Candidate
	heldScores  map[string]float64
	holdSignals map[string]float64
}

func dateKey(t time.Time) string { return t.Format(time.DateOnly) }

func (s *stubSelector) SelectCandidates(_ context.Context, date time.Time, _ []types.Listing, held map[string]bool) ([]types.Candidate, error) {
	var out []types.Candidate
	for _, c := range s.candidates[dateKey(date)] {
		if !held[c.Ticker] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubSelector) ScoreHeld(_ context.Context, ticker string, date time.Time) (*types.Candidate, error) {
	score, ok := s.heldScores[dateKey(date)]
	if !ok {
		return nil, fmt.Errorf("no score for %s", ticker)
	}
	return &types.Candidate{Ticker: ticker, CombinedScore: score, Pyramiding: true}, nil
}

func (s *stubSelector) HoldSignal(_ context.Context, _ string, date time.Time) (float64, error) {
	v, ok := s.holdSignals[dateKey(date)]
	if !ok {
		return 0, fmt.Errorf("no hold signal")
	}
	return v, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Backtest.StartDate = "2024-01-08"
	cfg.Backtest.EndDate = "2024-01-12"
	cfg.Backtest.InitialCapital = 10_000_000
	cfg.Backtest.TransactionCostRate = 0

	cfg.Strategy.Mode = config.ModeBasic
	cfg.Strategy.MaxPositions = 3
	cfg.Strategy.StopLossRate = -0.05
	cfg.Strategy.MinHoldingDays = 3
	cfg.Strategy.MaxHoldingDaysBasic = 5
	cfg.Strategy.MaxHoldingDaysHybrid = 10
	cfg.Strategy.HoldExtendThreshold = 0.75
	cfg.Strategy.PositionSizeRatio = 0.8
	cfg.Strategy.SafetyCash = 1_000_000
	cfg.Strategy.MinInvestment = 300_000

	cfg.Selector.MaxSelections = 3
	cfg.Selector.TrendStrengthMin = 3

	cfg.Scoring.Weights = config.Weights{
		Trend: 0.20, Momentum: 0.20, Oversold: 0.20,
		ParabolicSAR: 0.15, Volume: 0.15, Volatility: 0.10,
	}
	cfg.Scoring.External.Weight = 0.3
	cfg.Scoring.External.MissingPolicy = config.MissingNeutral
	cfg.Scoring.External.NeutralValue = 0.5

	cfg.Pyramiding.MinScore = 0.8
	cfg.Pyramiding.MaxPositionFraction = 0.3
	cfg.Pyramiding.InvestmentRatio = 0.5
	cfg.Pyramiding.ResetThreshold = 0.8
	cfg.Pyramiding.MaxResets = 2

	return cfg
}

// sessionBarsFor lays one flat-price bar on each weekday of the test
// week, with per-day close overrides.
func sessionBarsFor(ticker string, closes map[string]string, defaultClose string) []types.Bar {
	var bars []types.Bar
	for day := 8; day <= 12; day++ {
		date := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
		c := defaultClose
		if v, ok := closes[dateKey(date)]; ok {
			c = v
		}
		bars = append(bars, types.Bar{
			Ticker: ticker,
			Date:   date,
			Open:   d(c),
			High:   d(c),
			Low:    d(c),
			Close:  d(c),
			Volume: d("100000"),
		})
	}
	return bars
}

func runEngine(t *testing.T, cfg *config.Config, data *stubData, sel *stubSelector) *Result {
	t.Helper()
	eng, err := New(cfg, data, sel, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestEngineBuyHoldExtendSell(t *testing.T) {
	data := &stubData{bars: map[string][]types.Bar{
		"005930": sessionBarsFor("005930", nil, "10000"),
	}}
	sel := &stubSelector{
		candidates: map[string][]types.Candidate{
			"2024-01-08": {{Ticker: "005930", Price: d("10000"), CombinedScore: 0.85}},
		},
		holdSignals: map[string]float64{
			"2024-01-11": 0.8, // extension checkpoint at holding day 3
			"2024-01-12": 0.9,
		},
	}

	res := runEngine(t, testConfig(), data, sel)

	if res.TotalTrades != 1 {
		t.Fatalf("total trades = %d, want 1 round trip", res.TotalTrades)
	}
	if len(res.TradeHistory) != 2 {
		t.Fatalf("trade history length = %d, want 2", len(res.TradeHistory))
	}

	buy, sell := res.TradeHistory[0], res.TradeHistory[1]
	if buy.Action != types.ActionBuy || dateKey(buy.Date) != "2024-01-08" {
		t.Errorf("unexpected buy leg: %+v", buy)
	}
	// extended once on day 3, sold at the base rule the next session
	if sell.Action != types.ActionSell || dateKey(sell.Date) != "2024-01-12" {
		t.Errorf("unexpected sell leg: %+v", sell)
	}
	if sell.Reason != types.ReasonMinHoldingDays {
		t.Errorf("sell reason = %q, want %q", sell.Reason, types.ReasonMinHoldingDays)
	}
	if sell.HoldingDays != 4 {
		t.Errorf("holding days = %d, want 4", sell.HoldingDays)
	}

	if len(res.PortfolioHistory) != 5 {
		t.Errorf("snapshots = %d, want 5 trading days", len(res.PortfolioHistory))
	}
	for _, snap := range res.PortfolioHistory {
		if snap.Cash.IsNegative() {
			t.Fatalf("cash went negative on %s", dateKey(snap.Date))
		}
	}
}

func TestEngineStopLossBeatsMinHolding(t *testing.T) {
	data := &stubData{bars: map[string][]types.Bar{
		"000660": sessionBarsFor("000660", map[string]string{
			"2024-01-09": "9400", // -6% on day 1
		}, "10000"),
	}}
	sel := &stubSelector{
		candidates: map[string][]types.Candidate{
			"2024-01-08": {{Ticker: "000660", Price: d("10000"), CombinedScore: 0.9}},
		},
		holdSignals: map[string]float64{},
	}

	res := runEngine(t, testConfig(), data, sel)

	if len(res.TradeHistory) != 2 {
		t.Fatalf("trade history length = %d, want 2", len(res.TradeHistory))
	}
	sell := res.TradeHistory[1]
	if sell.Reason != types.ReasonStopLoss {
		t.Errorf("sell reason = %q, want %q", sell.Reason, types.ReasonStopLoss)
	}
	if dateKey(sell.Date) != "2024-01-09" {
		t.Errorf("stop loss should fire immediately, sold on %s", dateKey(sell.Date))
	}
}

func TestEnginePyramidingSingleAddOn(t *testing.T) {
	data := &stubData{bars: map[string][]types.Bar{
		"035420": sessionBarsFor("035420", map[string]string{
			"2024-01-09": "10200",
			"2024-01-10": "10400",
		}, "10000"),
	}}
	sel := &stubSelector{
		candidates: map[string][]types.Candidate{
			// tier 1.0 entry leaves headroom under the position cap
			"2024-01-08": {{Ticker: "035420", Price: d("10000"), CombinedScore: 0.5}},
		},
		heldScores: map[string]float64{
			"2024-01-09": 0.9,
			"2024-01-10": 0.95,
		},
		holdSignals: map[string]float64{},
	}

	cfg := testConfig()
	cfg.Backtest.EndDate = "2024-01-10"
	cfg.Pyramiding.Enabled = true

	res := runEngine(t, cfg, data, sel)

	buys := 0
	addOns := 0
	for _, tr := range res.TradeHistory {
		if tr.Action != types.ActionBuy {
			continue
		}
		buys++
		if tr.Reason == types.ReasonPyramiding {
			addOns++
		}
	}
	// one entry, then exactly one add-on despite two qualifying days
	if buys != 2 || addOns != 1 {
		t.Errorf("buys = %d, add-ons = %d, want 2 and 1", buys, addOns)
	}
}

func TestEngineBuysRespectSafetyReserve(t *testing.T) {
	// tier 1.2 on a full-ratio single slot wants 9.6M, more than the 8M
	// sitting above the safety reserve; the order must be clipped, not
	// funded from the reserve.
	data := &stubData{bars: map[string][]types.Bar{
		"005930": sessionBarsFor("005930", nil, "10000"),
	}}
	sel := &stubSelector{
		candidates: map[string][]types.Candidate{
			"2024-01-08": {{Ticker: "005930", Price: d("10000"), CombinedScore: 0.7}},
		},
		holdSignals: map[string]float64{},
	}

	cfg := testConfig()
	cfg.Backtest.EndDate = "2024-01-10"
	cfg.Strategy.MaxPositions = 1
	cfg.Strategy.PositionSizeRatio = 1.0
	cfg.Strategy.SafetyCash = 2_000_000

	res := runEngine(t, cfg, data, sel)

	if len(res.TradeHistory) != 1 {
		t.Fatalf("trades = %d, want a single clipped buy", len(res.TradeHistory))
	}
	if !res.TradeHistory[0].Amount.Equal(d("8000000")) {
		t.Errorf("buy amount = %s, want clipped to 8000000", res.TradeHistory[0].Amount)
	}
	for _, snap := range res.PortfolioHistory {
		if snap.Cash.LessThan(d("2000000")) {
			t.Errorf("cash %s on %s dipped below the safety reserve", snap.Cash, dateKey(snap.Date))
		}
	}
}

func TestEngineDeterminism(t *testing.T) {
	build := func() (*stubData, *stubSelector) {
		data := &stubData{bars: map[string][]types.Bar{
			"005930": sessionBarsFor("005930", map[string]string{"2024-01-12": "10600"}, "10000"),
			"000660": sessionBarsFor("000660", map[string]string{"2024-01-10": "9300"}, "10000"),
		}}
		sel := &stubSelector{
			candidates: map[string][]types.Candidate{
				"2024-01-08": {
					{Ticker: "005930", Price: d("10000"), CombinedScore: 0.85},
					{Ticker: "000660", Price: d("10000"), CombinedScore: 0.72},
				},
			},
			holdSignals: map[string]float64{"2024-01-11": 0.2},
		}
		return data, sel
	}

	data1, sel1 := build()
	res1 := runEngine(t, testConfig(), data1, sel1)
	data2, sel2 := build()
	res2 := runEngine(t, testConfig(), data2, sel2)

	if !res1.FinalValue.Equal(res2.FinalValue) {
		t.Errorf("final values differ: %s vs %s", res1.FinalValue, res2.FinalValue)
	}
	if len(res1.TradeHistory) != len(res2.TradeHistory) {
		t.Fatalf("trade counts differ: %d vs %d", len(res1.TradeHistory), len(res2.TradeHistory))
	}
	for i := range res1.TradeHistory {
		a, b := res1.TradeHistory[i], res2.TradeHistory[i]
		if a.Ticker != b.Ticker || a.Action != b.Action || !a.Price.Equal(b.Price) {
			t.Errorf("trade %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestEngineCancelledContext(t *testing.T) {
	data := &stubData{bars: map[string][]types.Bar{
		"005930": sessionBarsFor("005930", nil, "10000"),
	}}
	sel := &stubSelector{holdSignals: map[string]float64{}}

	eng, err := New(testConfig(), data, sel, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("cancelled run should still return a result, got %v", err)
	}
	if len(res.PortfolioHistory) != 0 {
		t.Errorf("pre-cancelled run processed %d days", len(res.PortfolioHistory))
	}
	if !res.FinalValue.Equal(decimal.NewFromInt(10_000_000)) {
		t.Errorf("final value = %s, want untouched capital", res.FinalValue)
	}
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Backtest.EndDate = "2023-12-31" // before start

	_, err := New(cfg, &stubData{}, &stubSelector{}, logger.Discard())
	if err == nil {
		t.Fatal("expected configuration error")
	}
	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error type = %T, want *config.ConfigError", err)
	}
}
