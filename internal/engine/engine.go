package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"swingback/internal/config"
)

// Engine wires configuration, market data and the candidate selector
// into a runnable backtest.
type Engine struct {
	cfg      *config.Config
	data     marketData
	selector candidateSelector
	log      *slog.Logger

	start time.Time
	end   time.Time
}

// New validates the configuration and builds an Engine. Invalid
// configuration fails here, never mid-run.
func New(cfg *config.Config, data marketData, sel candidateSelector, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start, end, err := cfg.DateRange()
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		data:     data,
		selector: sel,
		log:      log,
		start:    start,
		end:      end,
	}, nil
}

// Run executes the backtest over the configured range and returns the
// analyzed result. A cancelled context ends the run early with a valid
// result over the days completed so far.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	pf := newPortfolio(
		decimal.NewFromFloat(e.cfg.Backtest.InitialCapital),
		decimal.NewFromFloat(e.cfg.Backtest.TransactionCostRate),
	)

	bt := &backtester{
		strat:     e.cfg.Strategy,
		pyr:       e.cfg.Pyramiding,
		data:      e.data,
		selector:  e.selector,
		portfolio: pf,
		policy: &sellPolicy{
			stopLossRate:    decimal.NewFromFloat(e.cfg.Strategy.StopLossRate),
			minHoldingDays:  e.cfg.Strategy.MinHoldingDays,
			maxHoldingDays:  e.cfg.Strategy.MaxHoldingDays(),
			extendThreshold: e.cfg.Strategy.HoldExtendThreshold,
			maxResets:       e.cfg.Pyramiding.MaxResets,
		},
		sizer:        newSizer(e.cfg.Strategy, e.cfg.Pyramiding),
		start:        e.start,
		end:          e.end,
		showProgress: e.cfg.Output.ShowProgress,
		log:          e.log,
	}

	e.log.Info("backtest starting",
		"start", e.cfg.Backtest.StartDate,
		"end", e.cfg.Backtest.EndDate,
		"mode", e.cfg.Strategy.Mode,
		"initial_capital", e.cfg.Backtest.InitialCapital)

	if err := bt.run(ctx); err != nil {
		return nil, fmt.Errorf("backtest run: %w", err)
	}

	result := analyze(e.cfg, pf)
	if e.cfg.Output.PrintReport {
		result.print()
	}
	return result, nil
}
