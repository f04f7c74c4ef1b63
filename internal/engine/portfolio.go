package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"swingback/types"
)

// portfolio owns all position and cash state. Every mutation flows
// through buy and sell; the trade log and snapshot series are
// append-only.
type portfolio struct {
	cash      decimal.Decimal
	feeRate   decimal.Decimal
	positions map[string]*types.Position
	trades    []types.Trade
	snapshots []types.Snapshot
}

func newPortfolio(initialCash, feeRate decimal.Decimal) *portfolio {
	return &portfolio{
		cash:      initialCash,
		feeRate:   feeRate,
		positions: make(map[string]*types.Position),
	}
}

// buy opens or extends a position. The share count is floored to a
// whole number; an order that cannot afford a single share or would
// overdraw cash is rejected with no state change.
func (p *portfolio) buy(date time.Time, ticker string, price, investment decimal.Decimal, score float64, reason string) error {
	if !price.IsPositive() {
		return fmt.Errorf("buy %s: %w", ticker, ErrInvalidPrice)
	}

	qty := investment.Div(price).IntPart()
	if qty <= 0 {
		return fmt.Errorf("buy %s: %w", ticker, ErrInsufficientCash)
	}

	amount := price.Mul(decimal.NewFromInt(qty))
	fee := amount.Mul(p.feeRate)
	total := amount.Add(fee)
	if total.GreaterThan(p.cash) {
		return fmt.Errorf("buy %s: %w", ticker, ErrInsufficientCash)
	}

	p.cash = p.cash.Sub(total)
	if p.cash.IsNegative() {
		return fmt.Errorf("buy %s: cash went negative: %w", ticker, ErrInvariantViolation)
	}

	pos := p.positions[ticker]
	if pos == nil || pos.Quantity == 0 {
		pos = &types.Position{
			Ticker:        ticker,
			Quantity:      qty,
			AvgCost:       price,
			OpenedDate:    date,
			LastAddedDate: date,
			LastScore:     score,
		}
		p.positions[ticker] = pos
	} else {
		oldQty := decimal.NewFromInt(pos.Quantity)
		addQty := decimal.NewFromInt(qty)
		pos.AvgCost = weightedAvg(pos.AvgCost, oldQty, price, addQty)
		pos.Quantity += qty
		pos.LastAddedDate = date
		pos.PyramidingCount++
		pos.LastScore = score
	}

	p.trades = append(p.trades, types.Trade{
		Date:     date,
		Action:   types.ActionBuy,
		Ticker:   ticker,
		Quantity: qty,
		Price:    price,
		Fee:      fee,
		Amount:   amount,
		Reason:   reason,
	})
	return nil
}

// sell closes the full position at the given price. Returns false when
// there is nothing to sell. The position record stays in the map with
// zero quantity until purge runs at day end.
func (p *portfolio) sell(date time.Time, ticker string, price decimal.Decimal, reason string) (bool, error) {
	if !price.IsPositive() {
		return false, fmt.Errorf("sell %s: %w", ticker, ErrInvalidPrice)
	}
	pos := p.positions[ticker]
	if pos == nil || pos.Quantity <= 0 {
		return false, nil
	}

	qty := decimal.NewFromInt(pos.Quantity)
	gross := price.Mul(qty)
	fee := gross.Mul(p.feeRate)
	net := gross.Sub(fee)
	// cost basis carries the buy-side fee
	costBasis := pos.AvgCost.Mul(qty).Mul(decimal.NewFromInt(1).Add(p.feeRate))
	profit := net.Sub(costBasis)

	profitRate := 0.0
	if costBasis.IsPositive() {
		profitRate = profit.Div(costBasis).InexactFloat64()
	}

	p.cash = p.cash.Add(net)
	if p.cash.IsNegative() {
		return false, fmt.Errorf("sell %s: cash went negative: %w", ticker, ErrInvariantViolation)
	}

	p.trades = append(p.trades, types.Trade{
		Date:        date,
		Action:      types.ActionSell,
		Ticker:      ticker,
		Quantity:    pos.Quantity,
		Price:       price,
		Fee:         fee,
		Amount:      gross,
		Profit:      profit,
		ProfitRate:  profitRate,
		HoldingDays: pos.HoldingDays,
		Reason:      reason,
	})
	pos.Quantity = 0
	return true, nil
}

// value marks the portfolio at the given prices. A position without a
// price for the session is valued at its average cost, never at zero.
func (p *portfolio) value(prices map[string]decimal.Decimal) decimal.Decimal {
	total := p.cash
	for ticker, pos := range p.positions {
		if pos.Quantity <= 0 {
			continue
		}
		price, ok := prices[ticker]
		if !ok || !price.IsPositive() {
			price = pos.AvgCost
		}
		total = total.Add(pos.MarketValue(price))
	}
	return total
}

// holdings returns the open tickers in deterministic order.
func (p *portfolio) holdings() []string {
	out := make([]string, 0, len(p.positions))
	for ticker, pos := range p.positions {
		if pos.Quantity > 0 {
			out = append(out, ticker)
		}
	}
	sort.Strings(out)
	return out
}

// purge drops zero-quantity position records.
func (p *portfolio) purge() {
	for ticker, pos := range p.positions {
		if pos.Quantity <= 0 {
			delete(p.positions, ticker)
		}
	}
}

// snapshot records the end-of-day state and returns it.
func (p *portfolio) snapshot(date time.Time, prices map[string]decimal.Decimal) types.Snapshot {
	value := p.value(prices)

	dailyReturn := 0.0
	if n := len(p.snapshots); n > 0 {
		prev := p.snapshots[n-1].Value
		if prev.IsPositive() {
			dailyReturn = value.Sub(prev).Div(prev).InexactFloat64()
		}
	}

	snap := types.Snapshot{
		Date:        date,
		Value:       value,
		Cash:        p.cash,
		DailyReturn: dailyReturn,
	}
	for _, ticker := range p.holdings() {
		pos := p.positions[ticker]
		price, ok := prices[ticker]
		if !ok || !price.IsPositive() {
			price = pos.AvgCost
		}
		snap.Positions = append(snap.Positions, types.PositionSnapshot{
			Ticker:   ticker,
			Quantity: pos.Quantity,
			Price:    price,
			Value:    pos.MarketValue(price),
		})
	}

	p.snapshots = append(p.snapshots, snap)
	return snap
}

func weightedAvg(existingAvgPrice, existingQty, newPrice, newQty decimal.Decimal) decimal.Decimal {
	if existingQty.IsZero() {
		return newPrice
	}
	return existingAvgPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		Div(existingQty.Add(newQty))
}
