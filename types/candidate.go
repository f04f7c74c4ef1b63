package types

import "github.com/shopspring/decimal"

// Candidate is a buy candidate for a single session. Candidates are
// transient and never persisted.
type Candidate struct {
	Ticker string
	Price  decimal.Decimal

	TechnicalScore float64

	// ExternalScore is nil when no external signal was available for
	// this ticker on this session.
	ExternalScore *float64

	// CombinedScore is the blended score used for ranking and sizing,
	// clamped to [0, 1].
	CombinedScore float64

	// Pyramiding marks an add-on to an existing position rather than a
	// new entry.
	Pyramiding bool
}
