package config

import "fmt"

// Preset names.
const (
	PresetConservative = "conservative"
	PresetBalanced     = "balanced"
	PresetAggressive   = "aggressive"
	PresetSmallCapital = "small_capital"
)

// ApplyPreset overlays a named parameter preset on top of the loaded
// config. Presets adjust risk parameters only; data and output settings
// are untouched.
func (c *Config) ApplyPreset(name string) error {
	switch name {
	case "", PresetBalanced:
		// balanced is the default parameter set

	case PresetConservative:
		c.Strategy.MaxPositions = 3
		c.Strategy.StopLossRate = -0.03
		c.Strategy.PositionSizeRatio = 0.6
		c.Selector.MinTechnicalScore = 0.55
		c.Pyramiding.Enabled = false

	case PresetAggressive:
		c.Strategy.MaxPositions = 7
		c.Strategy.StopLossRate = -0.07
		c.Strategy.PositionSizeRatio = 0.9
		c.Selector.MinTechnicalScore = 0.40
		c.Pyramiding.Enabled = true
		c.Pyramiding.MinScore = 0.75

	case PresetSmallCapital:
		c.Strategy.MaxPositions = 2
		c.Strategy.PositionSizeRatio = 0.9
		c.Strategy.SafetyCash = 200_000
		c.Strategy.MinInvestment = 100_000
		c.Pyramiding.Enabled = false

	default:
		return &ConfigError{Field: "preset", Reason: fmt.Sprintf("unknown preset %q", name)}
	}
	return nil
}
