package indicator

// BollingerPosition locates the last value inside its Bollinger band:
// 0 at the middle band, +1 at the upper band, -1 at the lower band.
// ok is false when the series is too short or the band has no width.
func BollingerPosition(values []float64, period int, k float64) (float64, bool) {
	if period <= 1 || len(values) < period {
		return 0, false
	}
	window := values[len(values)-period:]

	mid, _ := SMA(values, period)
	sd := stdDev(window)
	if sd == 0 {
		return 0, false
	}

	last := values[len(values)-1]
	return (last - mid) / (k * sd), true
}
