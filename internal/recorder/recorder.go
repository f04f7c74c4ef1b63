// Package recorder persists finished backtest runs for later
// comparison across parameter sets.
package recorder

import "swingback/internal/engine"

// Recorder stores a completed run. Implementations must be safe for
// use from a single goroutine; runs are recorded sequentially.
type Recorder interface {
	RecordRun(result *engine.Result) error
	Close() error
}

// NoopRecorder discards everything. Used when persistence is disabled.
type NoopRecorder struct{}

func (NoopRecorder) RecordRun(*engine.Result) error { return nil }
func (NoopRecorder) Close() error                   { return nil }
