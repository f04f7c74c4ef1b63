// Package selector implements the daily candidate pipeline: universe
// filters, technical scoring, external score blending and ranking.
package selector

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"swingback/internal/config"
	"swingback/internal/indicator"
	"swingback/types"
)

// ErrScoreUnavailable is returned by an ExternalScorer when no score
// exists for the ticker on the requested date.
var ErrScoreUnavailable = errors.New("external score unavailable")

// ErrInsufficientHistory marks a ticker whose bar series is too short
// for the requested computation.
var ErrInsufficientHistory = errors.New("insufficient bar history")

// BarSource serves historical daily bars. Implementations must return
// bars in ascending date order and never return a bar dated after asOf.
type BarSource interface {
	GetBars(ctx context.Context, ticker string, asOf time.Time, lookback int) ([]types.Bar, error)
}

// ExternalScorer serves the externally produced signal score in [0, 1].
type ExternalScorer interface {
	Score(ctx context.Context, ticker string, date time.Time) (float64, error)
}

type Selector struct {
	cfg     config.Selector
	scoring config.Scoring
	hybrid  bool

	bars   BarSource
	scorer ExternalScorer
	log    *slog.Logger
}

// New builds a Selector. scorer may be nil, in which case every
// external score resolves through the missing-score policy.
func New(cfg config.Selector, scoring config.Scoring, hybrid bool, bars BarSource, scorer ExternalScorer, log *slog.Logger) *Selector {
	return &Selector{
		cfg:     cfg,
		scoring: scoring,
		hybrid:  hybrid,
		bars:    bars,
		scorer:  scorer,
		log:     log,
	}
}

// lookback is the bar history needed to run every filter and score.
func (s *Selector) lookback() int {
	n := s.cfg.LowWindow
	if s.cfg.MAPeriod > n {
		n = s.cfg.MAPeriod
	}
	if n < 25 {
		n = 25
	}
	return n + 5
}

// SelectCandidates runs the full pipeline over the session universe and
// returns ranked buy candidates. held tickers are skipped; an empty
// result is a normal outcome. Per-ticker failures degrade to exclusion
// for the day, only context cancellation aborts.
func (s *Selector) SelectCandidates(ctx context.Context, date time.Time, universe []types.Listing, held map[string]bool) ([]types.Candidate, error) {
	eligible := make([]types.Listing, 0, len(universe))
	for _, l := range universe {
		if held[l.Ticker] {
			continue
		}
		if !s.passesQuality(l) {
			continue
		}
		eligible = append(eligible, l)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Ticker < eligible[j].Ticker })

	results := make([]*types.Candidate, len(eligible))
	sem := make(chan struct{}, s.workers())
	var wg sync.WaitGroup
	for i, l := range eligible {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			cand, err := s.evaluate(ctx, ticker, date)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.log.Debug("candidate skipped", "ticker", ticker, "err", err)
				}
				return
			}
			results[i] = cand
		}(i, l.Ticker)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]types.Candidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}

	// Rank by blended score, ticker as a stable tie break.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CombinedScore != candidates[j].CombinedScore {
			return candidates[i].CombinedScore > candidates[j].CombinedScore
		}
		return candidates[i].Ticker < candidates[j].Ticker
	})
	if len(candidates) > s.cfg.MaxSelections {
		candidates = candidates[:s.cfg.MaxSelections]
	}
	return candidates, nil
}

func (s *Selector) workers() int {
	if s.cfg.Workers > 0 {
		return s.cfg.Workers
	}
	return 8
}

func (s *Selector) passesQuality(l types.Listing) bool {
	if l.Halted {
		return false
	}
	if l.Class != types.ClassCommon {
		return false
	}
	return l.MarketCap.GreaterThanOrEqual(decimal.NewFromFloat(s.cfg.MinMarketCap))
}

// evaluate runs the bar-level filters and scoring for one ticker. A nil
// error means the ticker passed every gate.
func (s *Selector) evaluate(ctx context.Context, ticker string, date time.Time) (*types.Candidate, error) {
	bars, err := s.sessionBars(ctx, ticker, date)
	if err != nil {
		return nil, err
	}
	last := bars[len(bars)-1]

	if last.TradeAmount.LessThan(decimal.NewFromFloat(s.cfg.MinTradeAmount)) {
		return nil, errSkip("trade amount below floor")
	}
	if !s.passesPattern(bars) {
		return nil, errSkip("pattern filter")
	}
	if s.trendStrength(bars) < s.cfg.TrendStrengthMin {
		return nil, errSkip("trend strength below minimum")
	}

	cand := &types.Candidate{
		Ticker:         ticker,
		Price:          last.Close,
		TechnicalScore: s.technicalScore(bars),
	}
	if err := s.blend(ctx, cand, date); err != nil {
		return nil, err
	}
	// The cutoff applies to the blended score: a strong technical setup
	// with a weak external signal is still rejected.
	if cand.CombinedScore < s.cfg.MinTechnicalScore {
		return nil, errSkip("combined score below minimum")
	}
	return cand, nil
}

// ScoreHeld re-scores a held ticker for the pyramiding decision. The
// entry filters do not apply; only the scoring steps run.
func (s *Selector) ScoreHeld(ctx context.Context, ticker string, date time.Time) (*types.Candidate, error) {
	bars, err := s.sessionBars(ctx, ticker, date)
	if err != nil {
		return nil, err
	}
	last := bars[len(bars)-1]

	cand := &types.Candidate{
		Ticker:         ticker,
		Price:          last.Close,
		TechnicalScore: s.technicalScore(bars),
		Pyramiding:     true,
	}
	if err := s.blend(ctx, cand, date); err != nil {
		return nil, err
	}
	return cand, nil
}

// sessionBars loads the lookback window ending on the session date and
// rejects stale or invalid data.
func (s *Selector) sessionBars(ctx context.Context, ticker string, date time.Time) ([]types.Bar, error) {
	bars, err := s.bars.GetBars(ctx, ticker, date, s.lookback())
	if err != nil {
		return nil, err
	}
	if len(bars) < s.lookback() {
		return nil, ErrInsufficientHistory
	}
	last := bars[len(bars)-1]
	if !last.SameDay(date) {
		return nil, errSkip("no bar for session date")
	}
	if !last.Close.IsPositive() || !last.Open.IsPositive() {
		return nil, errSkip("invalid price")
	}
	return bars, nil
}

// blend combines the technical score with the external score according
// to the configured weights and missing-score policy.
func (s *Selector) blend(ctx context.Context, cand *types.Candidate, date time.Time) error {
	if !s.hybrid {
		cand.CombinedScore = clamp01(cand.TechnicalScore)
		return nil
	}

	ext := s.scoring.External
	score := ext.NeutralValue
	available := false

	if s.scorer != nil {
		v, err := s.scorer.Score(ctx, cand.Ticker, date)
		switch {
		case err == nil:
			score = clamp01(v)
			available = true
		case errors.Is(err, ErrScoreUnavailable):
			// fall through to the missing-score policy
		case errors.Is(err, context.Canceled):
			return err
		default:
			s.log.Debug("external score failed", "ticker", cand.Ticker, "err", err)
		}
	}

	if !available && ext.MissingPolicy == config.MissingExclude {
		return errSkip("external score missing")
	}
	if available {
		cand.ExternalScore = &score
	}

	wTech := 1.0 - ext.Weight
	cand.CombinedScore = clamp01(wTech*cand.TechnicalScore + ext.Weight*score)
	return nil
}

type skipError string

func (e skipError) Error() string { return string(e) }

func errSkip(reason string) error { return skipError(reason) }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// passesPattern checks the entry pattern on the latest bar: the close
// is the lowest close of the window, sits below the moving average, and
// the candle itself closed up.
func (s *Selector) passesPattern(bars []types.Bar) bool {
	closes := indicator.Closes(bars)
	last := bars[len(bars)-1]
	lastClose := closes[len(closes)-1]

	low, ok := indicator.LowestClose(closes, s.cfg.LowWindow)
	if !ok || lastClose > low {
		return false
	}
	ma, ok := indicator.SMA(closes, s.cfg.MAPeriod)
	if !ok || lastClose >= ma {
		return false
	}
	return last.Close.GreaterThan(last.Open)
}
