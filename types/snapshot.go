package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionSnapshot struct {
	Ticker   string          `json:"ticker"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

// Snapshot is the end-of-day portfolio state. One snapshot is appended
// per trading day; the series is append-only.
type Snapshot struct {
	Date        time.Time          `json:"date"`
	Value       decimal.Decimal    `json:"value"`
	Cash        decimal.Decimal    `json:"cash"`
	DailyReturn float64            `json:"daily_return"`
	Positions   []PositionSnapshot `json:"positions"`
}
