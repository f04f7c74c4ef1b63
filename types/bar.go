package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one daily OHLCV record for a single ticker. Bars are treated as
// immutable once loaded.
type Bar struct {
	Ticker      string          `json:"ticker"`
	Date        time.Time       `json:"date"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      decimal.Decimal `json:"volume"`
	TradeAmount decimal.Decimal `json:"trade_amount"`
}

// SameDay reports whether the bar belongs to the given session date,
// ignoring the time component.
func (b Bar) SameDay(date time.Time) bool {
	by, bm, bd := b.Date.Date()
	y, m, d := date.Date()
	return by == y && bm == m && bd == d
}
