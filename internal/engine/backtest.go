package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"swingback/internal/config"
	"swingback/types"
)

// backtester drives the daily loop. One instance is built per run and
// discarded afterwards; all state lives in the portfolio.
type backtester struct {
	strat    config.Strategy
	pyr      config.Pyramiding
	data     marketData
	selector candidateSelector

	portfolio *portfolio
	policy    *sellPolicy
	sizer     *sizer

	start time.Time
	end   time.Time

	showProgress bool
	log          *slog.Logger
}

// run walks every calendar day in the range. Weekends and days with an
// empty universe are skipped without touching holding counters. A
// cancelled context stops the loop cleanly; the snapshots collected so
// far stay valid.
func (b *backtester) run(ctx context.Context) error {
	totalDays := int(b.end.Sub(b.start).Hours()/24) + 1
	bar := initProgressBar(totalDays, b.showProgress)

	for day := b.start; !day.After(b.end); day = day.AddDate(0, 0, 1) {
		bar.Add(1)

		if ctx.Err() != nil {
			b.log.Info("run cancelled", "date", day.Format("2006-01-02"))
			return nil
		}
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		universe, err := b.data.GetUniverse(ctx, day)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			b.log.Warn("universe fetch failed, skipping day", "date", day.Format("2006-01-02"), "err", err)
			continue
		}
		if len(universe) == 0 {
			continue
		}

		if err := b.runDay(ctx, day, universe); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
	return nil
}

// runDay executes the fixed intra-day order: age holdings, sell phase,
// buy phase (new entries then pyramiding), end-of-day snapshot.
func (b *backtester) runDay(ctx context.Context, date time.Time, universe []types.Listing) error {
	held := b.portfolio.holdings()
	prices := b.sessionPrices(ctx, date, held)

	for _, ticker := range held {
		b.portfolio.positions[ticker].HoldingDays++
	}

	if err := b.sellPhase(ctx, date, held, prices); err != nil {
		return err
	}
	if err := b.buyPhase(ctx, date, universe, held, prices); err != nil {
		return err
	}

	snap := b.portfolio.snapshot(date, prices)
	b.portfolio.purge()
	b.log.Debug("day closed",
		"date", date.Format("2006-01-02"),
		"value", snap.Value.StringFixed(0),
		"cash", snap.Cash.StringFixed(0),
		"positions", len(snap.Positions))
	return nil
}

func (b *backtester) sellPhase(ctx context.Context, date time.Time, held []string, prices map[string]decimal.Decimal) error {
	for _, ticker := range held {
		price, ok := prices[ticker]
		if !ok {
			// no usable price today, the position simply holds
			continue
		}
		pos := b.portfolio.positions[ticker]

		decision := b.policy.evaluate(pos, price, func() (float64, error) {
			return b.selector.HoldSignal(ctx, ticker, date)
		})

		if decision.extend {
			pos.Extended = true
			b.log.Info("hold extended", "ticker", ticker, "date", date.Format("2006-01-02"))
			continue
		}
		if !decision.sell {
			continue
		}

		sold, err := b.portfolio.sell(date, ticker, price, decision.reason)
		if err != nil {
			if errors.Is(err, ErrInvariantViolation) {
				return err
			}
			b.log.Warn("sell rejected", "ticker", ticker, "err", err)
			continue
		}
		if sold {
			last := b.portfolio.trades[len(b.portfolio.trades)-1]
			b.log.Info("sell",
				"ticker", ticker,
				"date", date.Format("2006-01-02"),
				"reason", decision.reason,
				"profit", last.Profit.StringFixed(0),
				"holding_days", last.HoldingDays)
		}
	}
	return nil
}

func (b *backtester) buyPhase(ctx context.Context, date time.Time, universe []types.Listing, heldAtOpen []string, prices map[string]decimal.Decimal) error {
	open := b.portfolio.holdings()
	heldSet := make(map[string]bool, len(open))
	for _, t := range open {
		heldSet[t] = true
	}

	slots := b.strat.MaxPositions - len(open)
	if slots > 0 {
		baseSlot := b.sizer.baseSlot(b.portfolio.cash, slots)

		candidates, err := b.selector.SelectCandidates(ctx, date, universe, heldSet)
		if err != nil {
			return err
		}

		bought := 0
		for _, cand := range candidates {
			if bought >= slots {
				break
			}
			investment, ok := b.sizer.investment(baseSlot, b.portfolio.cash, cand.CombinedScore)
			if !ok {
				continue
			}
			if err := b.portfolio.buy(date, cand.Ticker, cand.Price, investment, cand.CombinedScore, types.ReasonNewPosition); err != nil {
				if errors.Is(err, ErrInvariantViolation) {
					return err
				}
				b.log.Debug("buy rejected", "ticker", cand.Ticker, "err", err)
				continue
			}
			bought++
			b.log.Info("buy",
				"ticker", cand.Ticker,
				"date", date.Format("2006-01-02"),
				"score", cand.CombinedScore,
				"amount", investment.StringFixed(0))
		}
	}

	if b.pyr.Enabled {
		return b.pyramidingPhase(ctx, date, heldAtOpen, prices)
	}
	return nil
}

// pyramidingPhase re-scores positions that were already held at the
// open and adds on where the rules allow. Positions opened today never
// pyramid the same day.
func (b *backtester) pyramidingPhase(ctx context.Context, date time.Time, heldAtOpen []string, prices map[string]decimal.Decimal) error {
	slotBase := b.sizer.baseSlot(b.portfolio.cash, 1)

	for _, ticker := range heldAtOpen {
		pos := b.portfolio.positions[ticker]
		if pos == nil || pos.Quantity <= 0 {
			continue
		}
		price, ok := prices[ticker]
		if !ok {
			continue
		}

		cand, err := b.selector.ScoreHeld(ctx, ticker, date)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			continue
		}
		if !b.sizer.addOnAllowed(pos, price, cand.CombinedScore) {
			continue
		}

		portfolioValue := b.portfolio.value(prices)
		amount := b.sizer.addOnAmount(slotBase, pos.MarketValue(price), portfolioValue, b.portfolio.cash)
		if !amount.IsPositive() {
			continue
		}

		reset := b.sizer.resetAllowed(pos, cand.CombinedScore)
		if err := b.portfolio.buy(date, ticker, price, amount, cand.CombinedScore, types.ReasonPyramiding); err != nil {
			if errors.Is(err, ErrInvariantViolation) {
				return err
			}
			b.log.Debug("add-on rejected", "ticker", ticker, "err", err)
			continue
		}
		if reset {
			pos.HoldingDays = 0
			pos.Extended = false
			pos.ResetCount++
		}
		b.log.Info("pyramiding add-on",
			"ticker", ticker,
			"date", date.Format("2006-01-02"),
			"score", cand.CombinedScore,
			"amount", amount.StringFixed(0),
			"reset", reset)
	}
	return nil
}

// sessionPrices resolves today's close for every held ticker. Tickers
// without a usable bar for the session are left out; the caller treats
// them as unavailable for the day.
func (b *backtester) sessionPrices(ctx context.Context, date time.Time, held []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(held))
	for _, ticker := range held {
		price, err := b.sessionPrice(ctx, ticker, date)
		if err != nil {
			b.log.Debug("no session price", "ticker", ticker, "date", date.Format("2006-01-02"), "err", err)
			continue
		}
		prices[ticker] = price
	}
	return prices
}

func (b *backtester) sessionPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	bars, err := b.data.GetBars(ctx, ticker, date, 1)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if len(bars) == 0 || !bars[len(bars)-1].SameDay(date) {
		return decimal.Zero, ErrDataUnavailable
	}
	if last := bars[len(bars)-1].Close; last.IsPositive() {
		return last, nil
	}
	return decimal.Zero, ErrInvalidPrice
}

func initProgressBar(maxTicks int, visible bool) *progressbar.ProgressBar {
	if !visible {
		return progressbar.NewOptions(maxTicks, progressbar.OptionSetWriter(io.Discard))
	}
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
