package types

import "github.com/shopspring/decimal"

type SecurityClass string

const (
	ClassCommon    SecurityClass = "COMMON"
	ClassPreferred SecurityClass = "PREFERRED"
	ClassWarrant   SecurityClass = "WARRANT"
)

// Listing describes a tradable security as of a given session date.
// The quality filter reads these attributes, nothing else does.
type Listing struct {
	Ticker    string          `json:"ticker"`
	Name      string          `json:"name"`
	MarketCap decimal.Decimal `json:"market_cap"`
	Halted    bool            `json:"halted"`
	Class     SecurityClass   `json:"class"`
}
