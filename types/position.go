package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is one open holding. Positions are owned and mutated by the
// portfolio only; everything else sees copies or snapshots.
type Position struct {
	Ticker        string
	Quantity      int64
	AvgCost       decimal.Decimal
	OpenedDate    time.Time
	LastAddedDate time.Time

	// HoldingDays counts completed trading days since entry. It advances
	// once per session and may be reset at most MaxResets times by a
	// pyramiding add-on.
	HoldingDays int

	// Extended marks that the one-time hold extension has been used.
	Extended bool

	PyramidingCount int
	ResetCount      int
	LastScore       float64
}

// MarketValue values the position at the given price.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedRate is (price - avgCost) / avgCost as a float. Returns 0
// when the position has no cost basis.
func (p *Position) UnrealizedRate(price decimal.Decimal) float64 {
	if !p.AvgCost.IsPositive() {
		return 0
	}
	return price.Sub(p.AvgCost).Div(p.AvgCost).InexactFloat64()
}
