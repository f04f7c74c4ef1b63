package selector

import (
	"context"
	"errors"
	"time"

	"swingback/internal/indicator"
)

// HoldSignal estimates how attractive keeping an open position is, in
// [0, 1]. It starts from a neutral 0.5 and adjusts for momentum,
// overbought state, band position, volume and trend. An error means the
// signal could not be computed for the session.
func (s *Selector) HoldSignal(ctx context.Context, ticker string, date time.Time) (float64, error) {
	bars, err := s.sessionBars(ctx, ticker, date)
	if err != nil {
		if errors.Is(err, ErrInsufficientHistory) {
			s.log.Debug("hold signal on short history, using neutral", "ticker", ticker)
			return 0.5, nil
		}
		return 0, err
	}

	closes := indicator.Closes(bars)
	volumes := indicator.Volumes(bars)
	signal := 0.5

	r3 := indicator.Return(closes, 3)
	switch {
	case r3 > 0.02:
		signal += 0.15
	case r3 < -0.02:
		signal -= 0.15
	}

	rsi := indicator.RSI(closes, rsiPeriod)
	switch {
	case rsi > 70:
		signal -= 0.10
	case rsi < 40:
		signal += 0.05
	}

	if pos, ok := indicator.BollingerPosition(closes, bbPeriod, bbWidth); ok {
		switch {
		case pos > 0.8:
			signal -= 0.10
		case pos < -0.5:
			signal += 0.10
		}
	}

	if ratio, ok := indicator.VolumeRatio(volumes, 1, 5); ok && ratio >= 1.3 {
		if closes[len(closes)-1] > closes[len(closes)-2] {
			signal += 0.10
		}
	}

	if ma, ok := indicator.SMA(closes, 20); ok {
		if closes[len(closes)-1] > ma {
			signal += 0.10
		} else {
			signal -= 0.05
		}
	}

	return clamp01(signal), nil
}
