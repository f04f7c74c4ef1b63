package selector

import (
	"swingback/internal/indicator"
	"swingback/types"
)

const (
	rsiPeriod = 14
	bbPeriod  = 20
	bbWidth   = 2.0
	sarStep   = 0.02
	sarMax    = 0.2
)

// trendStrength scores four independent reversal signals on the latest
// bar and returns how many fired (0..4).
func (s *Selector) trendStrength(bars []types.Bar) int {
	closes := indicator.Closes(bars)
	volumes := indicator.Volumes(bars)
	score := 0

	if bullishCandle(bars[len(bars)-1]) {
		score++
	}

	if ratio, ok := indicator.VolumeRatio(volumes, 1, 5); ok && ratio >= 1.2 {
		score++
	}

	rsi := indicator.RSI(closes, rsiPeriod)
	prevRSI := indicator.RSI(closes[:len(closes)-1], rsiPeriod)
	if (rsi >= 30 && rsi <= 50 && rsi > prevRSI) || (prevRSI < 30 && rsi >= 30) {
		score++
	}

	if low, ok := indicator.LowestLow(bars, s.cfg.LowWindow); ok && low > 0 {
		cur := bars[len(bars)-1].Low.InexactFloat64()
		if (cur-low)/low <= 0.05 {
			score++
		}
	}

	return score
}

// bullishCandle requires an up close with a body covering at least half
// the day's range.
func bullishCandle(b types.Bar) bool {
	o := b.Open.InexactFloat64()
	c := b.Close.InexactFloat64()
	h := b.High.InexactFloat64()
	l := b.Low.InexactFloat64()
	if c <= o {
		return false
	}
	rng := h - l
	if rng <= 0 {
		return false
	}
	return (c-o)/rng >= 0.5
}

// technicalScore is the weighted blend of six component scores, each
// normalized to [0, 1].
func (s *Selector) technicalScore(bars []types.Bar) float64 {
	closes := indicator.Closes(bars)
	volumes := indicator.Volumes(bars)
	w := s.scoring.Weights

	score := w.Trend*trendComponent(closes) +
		w.Momentum*momentumComponent(closes) +
		w.Oversold*oversoldComponent(closes) +
		w.ParabolicSAR*sarComponent(bars) +
		w.Volume*volumeComponent(volumes) +
		w.Volatility*volatilityComponent(closes)

	return clamp01(score)
}

// trendComponent rewards closes sitting below their moving averages, a
// pullback setup rather than an established uptrend.
func trendComponent(closes []float64) float64 {
	last := closes[len(closes)-1]
	below := 0
	checked := 0
	for _, period := range []int{5, 10, 20} {
		ma, ok := indicator.SMA(closes, period)
		if !ok || ma <= 0 {
			continue
		}
		checked++
		if last/ma < 0.98 {
			below++
		}
	}
	if checked == 0 {
		return 0.5
	}
	return float64(below) / float64(checked)
}

// momentumComponent rewards a fresh one-day bounce after a multi-day
// decline.
func momentumComponent(closes []float64) float64 {
	r1 := indicator.Return(closes, 1)
	r3 := indicator.Return(closes, 3)

	switch {
	case r1 > 0.01 && r3 < -0.02:
		return 1.0
	case r1 > 0:
		return clamp01(0.5 + r1*10)
	default:
		return clamp01(0.3 + r1*5)
	}
}

func oversoldComponent(closes []float64) float64 {
	rsi := indicator.RSI(closes, rsiPeriod)

	var score float64
	switch {
	case rsi < 25:
		score = 1.0
	case rsi < 35:
		score = 0.8
	case rsi <= 50:
		score = 0.5
	case rsi <= 75:
		score = 0.3
	default:
		score = 0.0
	}

	if pos, ok := indicator.BollingerPosition(closes, bbPeriod, bbWidth); ok && pos < -0.8 {
		score += 0.15
	}
	return clamp01(score)
}

// sarComponent rewards a bullish parabolic SAR, with a full score when
// the trend flipped within the last three bars.
func sarComponent(bars []types.Bar) float64 {
	points := indicator.ParabolicSAR(bars, sarStep, sarMax)
	if len(points) == 0 {
		return 0.5
	}
	last := points[len(points)-1]
	if !last.Rising {
		return 0.0
	}
	for i := len(points) - 3; i < len(points)-1; i++ {
		if i >= 0 && !points[i].Rising {
			return 1.0
		}
	}
	return 0.7
}

func volumeComponent(volumes []float64) float64 {
	ratio, ok := indicator.VolumeRatio(volumes, 1, 5)
	if !ok {
		return 0.5
	}
	switch {
	case ratio >= 2.0:
		return 1.0
	case ratio >= 1.3:
		return 0.7
	case ratio >= 1.0:
		return 0.4
	default:
		return 0.2
	}
}

// volatilityComponent penalizes choppy series; calm pullbacks score high.
func volatilityComponent(closes []float64) float64 {
	vol := indicator.Volatility(closes, 10)
	switch {
	case vol == 0:
		return 0.5
	case vol <= 0.02:
		return 1.0
	case vol >= 0.05:
		return 0.0
	default:
		return (0.05 - vol) / 0.03
	}
}
