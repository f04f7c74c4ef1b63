package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"swingback/internal/selector"
	"swingback/types"
)

const getBarsQuery = `
SELECT ticker, date, open, high, low, close, volume, trade_amount
FROM daily_bars
WHERE ticker = $1 AND date <= $2
ORDER BY date DESC
LIMIT $3`

// GetBars returns up to lookback daily bars for the ticker, ascending,
// ending at or before asOf. Bars after asOf are never returned.
func (db *Database) GetBars(ctx context.Context, ticker string, asOf time.Time, lookback int) ([]types.Bar, error) {
	rows, err := db.pool.Query(ctx, getBarsQuery, ticker, asOf, lookback)
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []types.Bar
	for rows.Next() {
		var b types.Bar
		if err := rows.Scan(&b.Ticker, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.TradeAmount); err != nil {
			return nil, fmt.Errorf("scan bar for %s: %w", ticker, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("ticker %s: %w", ticker, ErrNoBars)
	}

	reverse(bars)
	return bars, nil
}

const getUniverseQuery = `
SELECT l.ticker, l.name, l.market_cap, l.halted, l.class
FROM listings l
JOIN daily_bars b ON b.ticker = l.ticker AND b.date = $1
ORDER BY l.ticker`

// GetUniverse returns every listing with a bar on the given date. An
// empty result means the market did not trade that day.
func (db *Database) GetUniverse(ctx context.Context, date time.Time) ([]types.Listing, error) {
	rows, err := db.pool.Query(ctx, getUniverseQuery, date)
	if err != nil {
		return nil, fmt.Errorf("query universe: %w", err)
	}
	defer rows.Close()

	var listings []types.Listing
	for rows.Next() {
		var l types.Listing
		var class string
		if err := rows.Scan(&l.Ticker, &l.Name, &l.MarketCap, &l.Halted, &class); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		l.Class = types.SecurityClass(class)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

const getScoreQuery = `
SELECT score
FROM signal_scores
WHERE ticker = $1 AND date = $2`

// Score returns the externally produced signal score for the ticker on
// the given date. A missing row maps to selector.ErrScoreUnavailable so
// the caller's missing-score policy applies.
func (db *Database) Score(ctx context.Context, ticker string, date time.Time) (float64, error) {
	var score float64
	err := db.pool.QueryRow(ctx, getScoreQuery, ticker, date).Scan(&score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("ticker %s: %w", ticker, selector.ErrScoreUnavailable)
		}
		return 0, err
	}
	return score, nil
}

func reverse(bars []types.Bar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
