// Package indicator holds the technical analysis primitives used by the
// candidate selector. All functions operate on ascending daily series;
// the caller is responsible for ordering.
package indicator

import (
	"math"

	"swingback/types"
)

// Closes extracts closing prices as floats, oldest first.
func Closes(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close.InexactFloat64()
	}
	return out
}

// Volumes extracts volumes as floats, oldest first.
func Volumes(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume.InexactFloat64()
	}
	return out
}

// SMA returns the simple moving average of the last period values.
// ok is false when the series is too short.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// Return computes the fractional change over the last days steps.
// Returns 0 when the series is too short or the base is not positive.
func Return(values []float64, days int) float64 {
	if days <= 0 || len(values) < days+1 {
		return 0
	}
	base := values[len(values)-1-days]
	if base <= 0 {
		return 0
	}
	return (values[len(values)-1] - base) / base
}

// Volatility is the standard deviation of daily returns over the last
// window steps. Returns 0 when the series is too short.
func Volatility(values []float64, window int) float64 {
	if window <= 1 || len(values) < window+1 {
		return 0
	}
	rets := make([]float64, 0, window)
	for i := len(values) - window; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		rets = append(rets, (values[i]-values[i-1])/values[i-1])
	}
	if len(rets) < 2 {
		return 0
	}
	return stdDev(rets)
}

// VolumeRatio compares the average of the last recent volumes with the
// average of the window before them. ok is false when the series is too
// short or the trailing average is zero.
func VolumeRatio(volumes []float64, recent, window int) (float64, bool) {
	if recent <= 0 || window <= 0 || len(volumes) < recent+window {
		return 0, false
	}
	recentAvg, _ := SMA(volumes, recent)
	trailing := volumes[len(volumes)-recent-window : len(volumes)-recent]
	var sum float64
	for _, v := range trailing {
		sum += v
	}
	trailingAvg := sum / float64(window)
	if trailingAvg == 0 {
		return 0, false
	}
	return recentAvg / trailingAvg, true
}

// LowestClose returns the minimum close over the last window values.
func LowestClose(values []float64, window int) (float64, bool) {
	if window <= 0 || len(values) < window {
		return 0, false
	}
	low := values[len(values)-window]
	for _, v := range values[len(values)-window:] {
		if v < low {
			low = v
		}
	}
	return low, true
}

// LowestLow returns the minimum daily low over the last window bars.
func LowestLow(bars []types.Bar, window int) (float64, bool) {
	if window <= 0 || len(bars) < window {
		return 0, false
	}
	low := bars[len(bars)-window].Low.InexactFloat64()
	for _, b := range bars[len(bars)-window:] {
		if l := b.Low.InexactFloat64(); l < low {
			low = l
		}
	}
	return low, true
}

func stdDev(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var varianceSum float64
	for _, v := range values {
		diff := v - mean
		varianceSum += diff * diff
	}
	return math.Sqrt(varianceSum / float64(len(values)))
}
