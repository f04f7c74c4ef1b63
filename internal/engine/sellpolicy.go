package engine

import (
	"github.com/shopspring/decimal"

	"swingback/types"
)

// sellPolicy is the per-position daily sell decision. Rules apply in
// strict priority: stop loss, then the hard holding limit, then the
// minimum-holding rule with its one-time extension.
type sellPolicy struct {
	stopLossRate    decimal.Decimal // negative fraction, e.g. -0.05
	minHoldingDays  int
	maxHoldingDays  int
	extendThreshold float64
	maxResets       int
}

type sellDecision struct {
	sell   bool
	extend bool
	reason string
}

var holdDecision = sellDecision{}

// evaluate decides what happens to an open position today. holdSignal
// is only invoked at the exact extension checkpoint; a signal error
// means no extension.
func (sp *sellPolicy) evaluate(pos *types.Position, price decimal.Decimal, holdSignal func() (float64, error)) sellDecision {
	if pos == nil || pos.Quantity <= 0 {
		return holdDecision
	}

	if pos.AvgCost.IsPositive() {
		ret := price.Sub(pos.AvgCost).Div(pos.AvgCost)
		if ret.LessThanOrEqual(sp.stopLossRate) {
			return sellDecision{sell: true, reason: types.ReasonStopLoss}
		}
	}

	if pos.HoldingDays >= sp.maxHoldingDays {
		return sellDecision{sell: true, reason: types.ReasonMaxHoldingDays}
	}

	if pos.HoldingDays >= sp.minHoldingDays {
		if pos.HoldingDays == sp.minHoldingDays && !pos.Extended {
			if pos.PyramidingCount > 0 && pos.ResetCount >= sp.maxResets {
				return sellDecision{sell: true, reason: types.ReasonMaxResets}
			}
			if hs, err := holdSignal(); err == nil && hs >= sp.extendThreshold {
				return sellDecision{extend: true}
			}
		}
		return sellDecision{sell: true, reason: types.ReasonMinHoldingDays}
	}

	return holdDecision
}
