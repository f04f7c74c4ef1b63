package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Buy reasons.
const (
	ReasonNewPosition = "new_position"
	ReasonPyramiding  = "pyramiding"
)

// Sell reasons, in priority order of the sell rules that emit them.
const (
	ReasonStopLoss       = "stop_loss"
	ReasonMaxHoldingDays = "max_holding_days"
	ReasonMaxResets      = "max_resets_reached"
	ReasonMinHoldingDays = "min_holding_days_reached"
)

// Trade is one executed buy or sell. The trade log is append-only.
// Profit fields are only populated on sells.
type Trade struct {
	Date        time.Time       `json:"date"`
	Action      Action          `json:"action"`
	Ticker      string          `json:"ticker"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Fee         decimal.Decimal `json:"fee"`
	Amount      decimal.Decimal `json:"amount"`
	Profit      decimal.Decimal `json:"profit"`
	ProfitRate  float64         `json:"profit_rate"`
	HoldingDays int             `json:"holding_days"`
	Reason      string          `json:"reason"`
}
