package indicator

import "swingback/types"

// SARPoint is the parabolic SAR value for one bar plus the trend it was
// computed in.
type SARPoint struct {
	Value  float64
	Rising bool
}

// ParabolicSAR computes the parabolic stop-and-reverse series with the
// given acceleration step and cap. Needs at least two bars; returns nil
// otherwise. The first point seeds from the initial bar range.
func ParabolicSAR(bars []types.Bar, step, maxStep float64) []SARPoint {
	if len(bars) < 2 || step <= 0 || maxStep < step {
		return nil
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High.InexactFloat64()
		lows[i] = b.Low.InexactFloat64()
	}

	out := make([]SARPoint, len(bars))

	rising := highs[1] >= highs[0]
	var sar, ep float64
	if rising {
		sar, ep = lows[0], highs[1]
	} else {
		sar, ep = highs[0], lows[1]
	}
	af := step
	out[0] = SARPoint{Value: sar, Rising: rising}
	out[1] = SARPoint{Value: sar, Rising: rising}

	for i := 2; i < len(bars); i++ {
		sar = sar + af*(ep-sar)

		if rising {
			// SAR may never enter the prior two bars' range
			if sar > lows[i-1] {
				sar = lows[i-1]
			}
			if sar > lows[i-2] {
				sar = lows[i-2]
			}
			if lows[i] < sar {
				// reverse to falling
				rising = false
				sar = ep
				ep = lows[i]
				af = step
			} else if highs[i] > ep {
				ep = highs[i]
				af += step
				if af > maxStep {
					af = maxStep
				}
			}
		} else {
			if sar < highs[i-1] {
				sar = highs[i-1]
			}
			if sar < highs[i-2] {
				sar = highs[i-2]
			}
			if highs[i] > sar {
				// reverse to rising
				rising = true
				sar = ep
				ep = highs[i]
				af = step
			} else if lows[i] < ep {
				ep = lows[i]
				af += step
				if af > maxStep {
					af = maxStep
				}
			}
		}

		out[i] = SARPoint{Value: sar, Rising: rising}
	}
	return out
}
