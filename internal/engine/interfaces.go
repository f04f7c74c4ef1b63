package engine

import (
	"context"
	"time"

	"swingback/types"
)

// marketData is the engine's view of historical data. GetBars returns
// ascending daily bars and must never return a bar dated after asOf;
// GetUniverse returns the securities tradable on the given session, and
// an empty universe means a market holiday.
type marketData interface {
	GetBars(ctx context.Context, ticker string, asOf time.Time, lookback int) ([]types.Bar, error)
	GetUniverse(ctx context.Context, date time.Time) ([]types.Listing, error)
}

// candidateSelector produces ranked buy candidates for a session and
// re-scores held tickers for pyramiding and hold-extension decisions.
type candidateSelector interface {
	SelectCandidates(ctx context.Context, date time.Time, universe []types.Listing, held map[string]bool) ([]types.Candidate, error)
	ScoreHeld(ctx context.Context, ticker string, date time.Time) (*types.Candidate, error)
	HoldSignal(ctx context.Context, ticker string, date time.Time) (float64, error)
}
