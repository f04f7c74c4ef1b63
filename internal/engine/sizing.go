package engine

import (
	"github.com/shopspring/decimal"

	"swingback/internal/config"
	"swingback/types"
)

// sizer turns scores into order amounts. All arithmetic stays in
// decimal until the share count is floored by the portfolio.
type sizer struct {
	positionSizeRatio decimal.Decimal
	safetyCash        decimal.Decimal
	minInvestment     decimal.Decimal
	pyramiding        config.Pyramiding
}

func newSizer(strat config.Strategy, pyr config.Pyramiding) *sizer {
	return &sizer{
		positionSizeRatio: decimal.NewFromFloat(strat.PositionSizeRatio),
		safetyCash:        decimal.NewFromFloat(strat.SafetyCash),
		minInvestment:     decimal.NewFromFloat(strat.MinInvestment),
		pyramiding:        pyr,
	}
}

// baseSlot splits the deployable cash evenly over the open slots.
// Cash below the safety reserve yields a zero slot.
func (s *sizer) baseSlot(cash decimal.Decimal, openSlots int) decimal.Decimal {
	if openSlots <= 0 {
		return decimal.Zero
	}
	deployable := cash.Sub(s.safetyCash)
	if !deployable.IsPositive() {
		return decimal.Zero
	}
	return deployable.Mul(s.positionSizeRatio).Div(decimal.NewFromInt(int64(openSlots)))
}

// tierMultiplier maps a blended score to its sizing tier.
func tierMultiplier(score float64) decimal.Decimal {
	switch {
	case score >= 0.8:
		return decimal.NewFromFloat(1.5)
	case score >= 0.7:
		return decimal.NewFromFloat(1.2)
	case score >= 0.45:
		return decimal.NewFromInt(1)
	default:
		return decimal.NewFromFloat(0.7)
	}
}

// investment sizes a new entry, clipped to the cash deployable above
// the safety reserve. Returns false when the clipped amount falls
// under the minimum investment floor.
func (s *sizer) investment(baseSlot, cash decimal.Decimal, score float64) (decimal.Decimal, bool) {
	amount := baseSlot.Mul(tierMultiplier(score))
	if deployable := cash.Sub(s.safetyCash); amount.GreaterThan(deployable) {
		amount = deployable
	}
	if amount.LessThan(s.minInvestment) {
		return decimal.Zero, false
	}
	return amount, true
}

// addOnAllowed gates a pyramiding add-on on score, add-on count and
// the never-average-down rule.
func (s *sizer) addOnAllowed(pos *types.Position, price decimal.Decimal, score float64) bool {
	if !s.pyramiding.Enabled {
		return false
	}
	if score < s.pyramiding.MinScore {
		return false
	}
	if pos.PyramidingCount >= 1 {
		return false
	}
	return pos.UnrealizedRate(price) >= 0
}

// addOnAmount caps the add-on at the configured slice of the base slot,
// at the cash deployable above the safety reserve, and at the headroom
// left under the max position fraction.
func (s *sizer) addOnAmount(baseSlot, positionValue, portfolioValue, cash decimal.Decimal) decimal.Decimal {
	amount := baseSlot.Mul(decimal.NewFromFloat(s.pyramiding.InvestmentRatio))
	if deployable := cash.Sub(s.safetyCash); amount.GreaterThan(deployable) {
		amount = deployable
	}

	maxPosition := portfolioValue.Mul(decimal.NewFromFloat(s.pyramiding.MaxPositionFraction))
	headroom := maxPosition.Sub(positionValue)
	if !headroom.IsPositive() {
		return decimal.Zero
	}
	if amount.GreaterThan(headroom) {
		amount = headroom
	}
	if amount.LessThan(s.minInvestment) {
		return decimal.Zero
	}
	return amount
}

// resetAllowed reports whether the add-on also resets the holding
// period counters.
func (s *sizer) resetAllowed(pos *types.Position, score float64) bool {
	return score >= s.pyramiding.ResetThreshold && pos.ResetCount < s.pyramiding.MaxResets
}
