package engine

import "errors"

var (
	// ErrDataUnavailable marks a ticker with no usable bar for the
	// session. The ticker is skipped for the day, never retried.
	ErrDataUnavailable = errors.New("no market data for session")

	// ErrInvalidPrice marks a non-positive or malformed price. Treated
	// the same as missing data.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInsufficientCash rejects a single order; the day continues.
	ErrInsufficientCash = errors.New("insufficient cash for order")

	// ErrInvariantViolation signals a defect in portfolio accounting.
	// The run aborts immediately.
	ErrInvariantViolation = errors.New("portfolio invariant violated")
)
