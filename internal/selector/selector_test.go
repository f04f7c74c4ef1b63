package selector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"swingback/internal/config"
	"swingback/internal/logger"
	"swingback/types"
)

var sessionDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

type fakeBars struct {
	bars map[string][]types.Bar
}

func (f *fakeBars) GetBars(_ context.Context, ticker string, asOf time.Time, lookback int) ([]types.Bar, error) {
	var out []types.Bar
	for _, b := range f.bars[ticker] {
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

type fakeScorer struct {
	scores map[string]float64
	err    error
}

func (f *fakeScorer) Score(_ context.Context, ticker string, _ time.Time) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	v, ok := f.scores[ticker]
	if !ok {
		return 0, ErrScoreUnavailable
	}
	return v, nil
}

func testSelectorConfig() config.Selector {
	return config.Selector{
		MinTradeAmount:    100_000_000,
		MinMarketCap:      50_000_000_000,
		LowWindow:         20,
		MAPeriod:          20,
		TrendStrengthMin:  3,
		MaxSelections:     3,
		MinTechnicalScore: 0.3,
		Workers:           4,
	}
}

func testScoring() config.Scoring {
	return config.Scoring{
		Weights: config.Weights{
			Trend: 0.20, Momentum: 0.20, Oversold: 0.20,
			ParabolicSAR: 0.15, Volume: 0.15, Volatility: 0.10,
		},
		External: config.External{
			Weight:        0.3,
			MissingPolicy: config.MissingNeutral,
			NeutralValue:  0.5,
		},
	}
}

// declineBars builds a steady 30-bar downtrend whose final bar is a
// fresh closing low with a bullish candle and a volume surge, passing
// the pattern and trend-strength gates.
func declineBars(ticker string, tradeAmount string) []types.Bar {
	const n = 30
	bars := make([]types.Bar, 0, n)
	for i := 0; i < n; i++ {
		c := 100.0 - 0.5*float64(i)
		date := sessionDate.AddDate(0, 0, i-n+1)
		bars = append(bars, types.Bar{
			Ticker:      ticker,
			Date:        date,
			Open:        decimal.NewFromFloat(c + 0.1),
			High:        decimal.NewFromFloat(c + 0.2),
			Low:         decimal.NewFromFloat(c - 0.2),
			Close:       decimal.NewFromFloat(c),
			Volume:      decimal.NewFromInt(1000),
			TradeAmount: decimal.RequireFromString(tradeAmount),
		})
	}
	// final bar: bullish candle closing at a fresh low on doubled volume
	last := &bars[n-1]
	last.Open = decimal.NewFromFloat(85.0)
	last.Close = decimal.NewFromFloat(85.4)
	last.High = decimal.NewFromFloat(85.6)
	last.Low = decimal.NewFromFloat(84.8)
	last.Volume = decimal.NewFromInt(2000)
	return bars
}

// flatBars never passes the pattern filter: the close is not a fresh low.
func flatBars(ticker string) []types.Bar {
	const n = 30
	bars := make([]types.Bar, 0, n)
	for i := 0; i < n; i++ {
		date := sessionDate.AddDate(0, 0, i-n+1)
		bars = append(bars, types.Bar{
			Ticker:      ticker,
			Date:        date,
			Open:        decimal.NewFromFloat(99.0),
			High:        decimal.NewFromFloat(101.0),
			Low:         decimal.NewFromFloat(98.0),
			Close:       decimal.NewFromFloat(100.0),
			Volume:      decimal.NewFromInt(1000),
			TradeAmount: decimal.RequireFromString("200000000"),
		})
	}
	return bars
}

func listing(ticker string) types.Listing {
	return types.Listing{
		Ticker:    ticker,
		MarketCap: decimal.RequireFromString("100000000000"),
		Class:     types.ClassCommon,
	}
}

func TestSelectCandidatesPipeline(t *testing.T) {
	bars := &fakeBars{bars: map[string][]types.Bar{
		"GOOD":     declineBars("GOOD", "200000000"),
		"ILLIQUID": declineBars("ILLIQUID", "50000000"),
		"FLAT":     flatBars("FLAT"),
		"HELD":     declineBars("HELD", "200000000"),
		"HALTED":   declineBars("HALTED", "200000000"),
		"PREF":     declineBars("PREF", "200000000"),
		"SMALL":    declineBars("SMALL", "200000000"),
	}}

	halted := listing("HALTED")
	halted.Halted = true
	pref := listing("PREF")
	pref.Class = types.ClassPreferred
	small := listing("SMALL")
	small.MarketCap = decimal.RequireFromString("10000000000")

	universe := []types.Listing{
		listing("GOOD"), listing("ILLIQUID"), listing("FLAT"),
		listing("HELD"), halted, pref, small,
	}

	sel := New(testSelectorConfig(), testScoring(), false, bars, nil, logger.Discard())
	got, err := sel.SelectCandidates(context.Background(), sessionDate, universe, map[string]bool{"HELD": true})
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("candidates = %v, want exactly GOOD", got)
	}
	if got[0].Ticker != "GOOD" {
		t.Errorf("candidate = %s, want GOOD", got[0].Ticker)
	}
	if !got[0].Price.Equal(decimal.NewFromFloat(85.4)) {
		t.Errorf("candidate price = %s, want the session close", got[0].Price)
	}
	if got[0].CombinedScore < 0 || got[0].CombinedScore > 1 {
		t.Errorf("combined score %v out of [0, 1]", got[0].CombinedScore)
	}
}

func TestSelectCandidatesEmptyUniverse(t *testing.T) {
	sel := New(testSelectorConfig(), testScoring(), false, &fakeBars{}, nil, logger.Discard())
	got, err := sel.SelectCandidates(context.Background(), sessionDate, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("empty universe produced %d candidates", len(got))
	}
}

func TestSelectCandidatesRankingAndCutoff(t *testing.T) {
	cfg := testSelectorConfig()
	cfg.MaxSelections = 2

	bars := &fakeBars{bars: map[string][]types.Bar{
		"AAA": declineBars("AAA", "200000000"),
		"BBB": declineBars("BBB", "200000000"),
		"CCC": declineBars("CCC", "200000000"),
	}}
	// identical series: identical scores, ticker breaks the tie
	universe := []types.Listing{listing("CCC"), listing("AAA"), listing("BBB")}

	sel := New(cfg, testScoring(), false, bars, nil, logger.Discard())
	got, err := sel.SelectCandidates(context.Background(), sessionDate, universe, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("candidates = %d, want cutoff at 2", len(got))
	}
	if got[0].Ticker != "AAA" || got[1].Ticker != "BBB" {
		t.Errorf("order = [%s %s], want deterministic [AAA BBB]", got[0].Ticker, got[1].Ticker)
	}
}

func TestSelectCandidatesCutoffOnBlendedScore(t *testing.T) {
	cfg := testSelectorConfig()
	cfg.MinTechnicalScore = 0.6

	bars := &fakeBars{bars: map[string][]types.Bar{
		"GOOD": declineBars("GOOD", "200000000"),
	}}
	universe := []types.Listing{listing("GOOD")}

	t.Run("technical score alone clears the cutoff in basic mode", func(t *testing.T) {
		sel := New(cfg, testScoring(), false, bars, nil, logger.Discard())
		got, err := sel.SelectCandidates(context.Background(), sessionDate, universe, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("candidates = %d, want 1", len(got))
		}
	})

	t.Run("weak external score drags the blend below the cutoff", func(t *testing.T) {
		scorer := &fakeScorer{scores: map[string]float64{"GOOD": 0.0}}
		sel := New(cfg, testScoring(), true, bars, scorer, logger.Discard())
		got, err := sel.SelectCandidates(context.Background(), sessionDate, universe, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("candidate kept with combined score %v below the cutoff", got[0].CombinedScore)
		}
	})
}

func TestScoreHeldBlending(t *testing.T) {
	bars := &fakeBars{bars: map[string][]types.Bar{
		"GOOD": declineBars("GOOD", "200000000"),
	}}

	t.Run("basic mode ignores the scorer", func(t *testing.T) {
		scorer := &fakeScorer{scores: map[string]float64{"GOOD": 1.0}}
		sel := New(testSelectorConfig(), testScoring(), false, bars, scorer, logger.Discard())

		cand, err := sel.ScoreHeld(context.Background(), "GOOD", sessionDate)
		if err != nil {
			t.Fatal(err)
		}
		if cand.ExternalScore != nil {
			t.Error("basic mode should not consume external scores")
		}
		if cand.CombinedScore != cand.TechnicalScore {
			t.Errorf("combined %v != technical %v in basic mode", cand.CombinedScore, cand.TechnicalScore)
		}
	})

	t.Run("hybrid blends with configured weights", func(t *testing.T) {
		scorer := &fakeScorer{scores: map[string]float64{"GOOD": 1.0}}
		sel := New(testSelectorConfig(), testScoring(), true, bars, scorer, logger.Discard())

		cand, err := sel.ScoreHeld(context.Background(), "GOOD", sessionDate)
		if err != nil {
			t.Fatal(err)
		}
		if cand.ExternalScore == nil || *cand.ExternalScore != 1.0 {
			t.Fatalf("external score not recorded: %+v", cand)
		}
		want := 0.7*cand.TechnicalScore + 0.3*1.0
		if diff := cand.CombinedScore - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("combined = %v, want %v", cand.CombinedScore, want)
		}
		if cand.CombinedScore > 1.0 {
			t.Errorf("combined score %v exceeds 1.0", cand.CombinedScore)
		}
	})

	t.Run("missing score falls back to neutral", func(t *testing.T) {
		scorer := &fakeScorer{}
		sel := New(testSelectorConfig(), testScoring(), true, bars, scorer, logger.Discard())

		cand, err := sel.ScoreHeld(context.Background(), "GOOD", sessionDate)
		if err != nil {
			t.Fatal(err)
		}
		if cand.ExternalScore != nil {
			t.Error("missing score should not be recorded as available")
		}
		want := 0.7*cand.TechnicalScore + 0.3*0.5
		if diff := cand.CombinedScore - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("combined = %v, want neutral blend %v", cand.CombinedScore, want)
		}
	})

	t.Run("exclude policy drops the ticker", func(t *testing.T) {
		scoring := testScoring()
		scoring.External.MissingPolicy = config.MissingExclude
		scorer := &fakeScorer{}
		sel := New(testSelectorConfig(), scoring, true, bars, scorer, logger.Discard())

		if _, err := sel.ScoreHeld(context.Background(), "GOOD", sessionDate); err == nil {
			t.Error("exclude policy should reject a ticker without a score")
		}
	})
}

func TestHoldSignalRange(t *testing.T) {
	bars := &fakeBars{bars: map[string][]types.Bar{
		"GOOD": declineBars("GOOD", "200000000"),
		"FLAT": flatBars("FLAT"),
	}}
	sel := New(testSelectorConfig(), testScoring(), false, bars, nil, logger.Discard())

	for _, ticker := range []string{"GOOD", "FLAT"} {
		v, err := sel.HoldSignal(context.Background(), ticker, sessionDate)
		if err != nil {
			t.Fatalf("%s: %v", ticker, err)
		}
		if v < 0 || v > 1 {
			t.Errorf("%s: hold signal %v out of [0, 1]", ticker, v)
		}
	}
}

func TestHoldSignalShortHistoryIsNeutral(t *testing.T) {
	full := declineBars("SHORT", "200000000")
	bars := &fakeBars{bars: map[string][]types.Bar{"SHORT": full[len(full)-5:]}}

	sel := New(testSelectorConfig(), testScoring(), false, bars, nil, logger.Discard())
	v, err := sel.HoldSignal(context.Background(), "SHORT", sessionDate)
	if err != nil {
		t.Fatalf("short history should degrade to neutral, got %v", err)
	}
	if v != 0.5 {
		t.Errorf("hold signal = %v, want neutral 0.5", v)
	}
}

func TestSessionBarsRejectStaleData(t *testing.T) {
	// series ends the day before the session: ticker is unavailable
	stale := declineBars("STALE", "200000000")
	for i := range stale {
		stale[i].Date = stale[i].Date.AddDate(0, 0, -1)
	}
	bars := &fakeBars{bars: map[string][]types.Bar{"STALE": stale}}

	sel := New(testSelectorConfig(), testScoring(), false, bars, nil, logger.Discard())
	if _, err := sel.ScoreHeld(context.Background(), "STALE", sessionDate); err == nil {
		t.Error("stale series should not produce a score")
	}
}
