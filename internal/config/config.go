package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Strategy modes.
const (
	ModeBasic  = "basic"
	ModeHybrid = "hybrid"
)

// Policies for a missing external score.
const (
	MissingNeutral = "neutral"
	MissingExclude = "exclude"
)

// ConfigError reports a fatal configuration problem. Invalid
// configuration is never silently corrected.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config holds the full application configuration.
type Config struct {
	Backtest   Backtest   `yaml:"backtest"`
	Strategy   Strategy   `yaml:"strategy"`
	Selector   Selector   `yaml:"selector"`
	Scoring    Scoring    `yaml:"scoring"`
	Pyramiding Pyramiding `yaml:"pyramiding"`
	Database   Database   `yaml:"database"`
	Recorder   Recorder   `yaml:"recorder"`
	Logging    Logging    `yaml:"logging"`
	Output     Output     `yaml:"output"`
}

type Backtest struct {
	StartDate           string  `yaml:"start_date"`
	EndDate             string  `yaml:"end_date"`
	InitialCapital      float64 `yaml:"initial_capital"`
	TransactionCostRate float64 `yaml:"transaction_cost_rate"`
}

type Strategy struct {
	Mode                 string  `yaml:"mode"`
	MaxPositions         int     `yaml:"max_positions"`
	StopLossRate         float64 `yaml:"stop_loss_rate"`
	MinHoldingDays       int     `yaml:"min_holding_days"`
	MaxHoldingDaysBasic  int     `yaml:"max_holding_days_basic"`
	MaxHoldingDaysHybrid int     `yaml:"max_holding_days_hybrid"`
	HoldExtendThreshold  float64 `yaml:"hold_extend_threshold"`
	PositionSizeRatio    float64 `yaml:"position_size_ratio"`
	SafetyCash           float64 `yaml:"safety_cash"`
	MinInvestment        float64 `yaml:"min_investment"`
}

// MaxHoldingDays resolves the safety-rule limit for the configured mode.
func (s Strategy) MaxHoldingDays() int {
	if s.Mode == ModeHybrid {
		return s.MaxHoldingDaysHybrid
	}
	return s.MaxHoldingDaysBasic
}

type Selector struct {
	MinTradeAmount    float64 `yaml:"min_trade_amount"`
	MinMarketCap      float64 `yaml:"min_market_cap"`
	LowWindow         int     `yaml:"low_window"`
	MAPeriod          int     `yaml:"ma_period"`
	TrendStrengthMin  int     `yaml:"trend_strength_min"`
	MaxSelections     int     `yaml:"max_selections"`
	MinTechnicalScore float64 `yaml:"min_technical_score"`
	Workers           int     `yaml:"workers"`
}

type Weights struct {
	Trend        float64 `yaml:"trend"`
	Momentum     float64 `yaml:"momentum"`
	Oversold     float64 `yaml:"oversold"`
	ParabolicSAR float64 `yaml:"parabolic_sar"`
	Volume       float64 `yaml:"volume"`
	Volatility   float64 `yaml:"volatility"`
}

func (w Weights) Sum() float64 {
	return w.Trend + w.Momentum + w.Oversold + w.ParabolicSAR + w.Volume + w.Volatility
}

type External struct {
	Weight        float64 `yaml:"weight"`
	MissingPolicy string  `yaml:"missing_policy"`
	NeutralValue  float64 `yaml:"neutral_value"`
}

type Scoring struct {
	Weights  Weights  `yaml:"weights"`
	External External `yaml:"external"`
}

type Pyramiding struct {
	Enabled             bool    `yaml:"enabled"`
	MinScore            float64 `yaml:"min_score"`
	MaxPositionFraction float64 `yaml:"max_position_fraction"`
	InvestmentRatio     float64 `yaml:"investment_ratio"`
	ResetThreshold      float64 `yaml:"reset_threshold"`
	MaxResets           int     `yaml:"max_resets"`
}

type Database struct {
	URL string `yaml:"url"`
}

type Recorder struct {
	Enabled    bool   `yaml:"enabled"`
	SQLitePath string `yaml:"sqlite_path"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type Output struct {
	ResultPath   string `yaml:"result_path"`
	TradesCSV    string `yaml:"trades_csv"`
	PrintReport  bool   `yaml:"print_report"`
	ShowProgress bool   `yaml:"show_progress"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields a pure-defaults config.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SWINGBACK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SWINGBACK_SQLITE_PATH"); v != "" {
		cfg.Recorder.SQLitePath = v
	}
	if v := os.Getenv("SWINGBACK_INITIAL_CAPITAL"); v != "" {
		if capital, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.InitialCapital = capital
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = 10_000_000
	}
	if c.Backtest.TransactionCostRate == 0 {
		c.Backtest.TransactionCostRate = 0.003
	}

	if c.Strategy.Mode == "" {
		c.Strategy.Mode = ModeBasic
	}
	if c.Strategy.MaxPositions == 0 {
		c.Strategy.MaxPositions = 5
	}
	if c.Strategy.StopLossRate == 0 {
		c.Strategy.StopLossRate = -0.05
	}
	if c.Strategy.MinHoldingDays == 0 {
		c.Strategy.MinHoldingDays = 3
	}
	if c.Strategy.MaxHoldingDaysBasic == 0 {
		c.Strategy.MaxHoldingDaysBasic = 5
	}
	if c.Strategy.MaxHoldingDaysHybrid == 0 {
		c.Strategy.MaxHoldingDaysHybrid = 10
	}
	if c.Strategy.HoldExtendThreshold == 0 {
		c.Strategy.HoldExtendThreshold = 0.75
	}
	if c.Strategy.PositionSizeRatio == 0 {
		c.Strategy.PositionSizeRatio = 0.8
	}
	if c.Strategy.SafetyCash == 0 {
		c.Strategy.SafetyCash = 2_000_000
	}
	if c.Strategy.MinInvestment == 0 {
		c.Strategy.MinInvestment = 300_000
	}

	if c.Selector.MinTradeAmount == 0 {
		c.Selector.MinTradeAmount = 100_000_000
	}
	if c.Selector.MinMarketCap == 0 {
		c.Selector.MinMarketCap = 50_000_000_000
	}
	if c.Selector.LowWindow == 0 {
		c.Selector.LowWindow = 60
	}
	if c.Selector.MAPeriod == 0 {
		c.Selector.MAPeriod = 20
	}
	if c.Selector.TrendStrengthMin == 0 {
		c.Selector.TrendStrengthMin = 3
	}
	if c.Selector.MaxSelections == 0 {
		c.Selector.MaxSelections = 3
	}
	if c.Selector.MinTechnicalScore == 0 {
		c.Selector.MinTechnicalScore = 0.45
	}
	if c.Selector.Workers == 0 {
		c.Selector.Workers = 8
	}

	if c.Scoring.Weights == (Weights{}) {
		c.Scoring.Weights = Weights{
			Trend:        0.20,
			Momentum:     0.20,
			Oversold:     0.20,
			ParabolicSAR: 0.15,
			Volume:       0.15,
			Volatility:   0.10,
		}
	}
	if c.Scoring.External.Weight == 0 {
		c.Scoring.External.Weight = 0.3
	}
	if c.Scoring.External.MissingPolicy == "" {
		c.Scoring.External.MissingPolicy = MissingNeutral
	}
	if c.Scoring.External.NeutralValue == 0 {
		c.Scoring.External.NeutralValue = 0.5
	}

	if c.Pyramiding.MinScore == 0 {
		c.Pyramiding.MinScore = 0.8
	}
	if c.Pyramiding.MaxPositionFraction == 0 {
		c.Pyramiding.MaxPositionFraction = 0.3
	}
	if c.Pyramiding.InvestmentRatio == 0 {
		c.Pyramiding.InvestmentRatio = 0.5
	}
	if c.Pyramiding.ResetThreshold == 0 {
		c.Pyramiding.ResetThreshold = 0.8
	}
	if c.Pyramiding.MaxResets == 0 {
		c.Pyramiding.MaxResets = 2
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Recorder.SQLitePath == "" {
		c.Recorder.SQLitePath = "data/swingback.db"
	}
	if c.Output.ResultPath == "" {
		c.Output.ResultPath = "results/backtest.json"
	}
}

// DateRange parses the configured start and end dates.
func (c *Config) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, c.Backtest.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, &ConfigError{Field: "backtest.start_date", Reason: err.Error()}
	}
	end, err := time.Parse(dateLayout, c.Backtest.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, &ConfigError{Field: "backtest.end_date", Reason: err.Error()}
	}
	return start, end, nil
}

// Validate checks every field the engine depends on. The first problem
// found is returned as a *ConfigError.
func (c *Config) Validate() error {
	if c.Backtest.InitialCapital <= 0 {
		return &ConfigError{Field: "backtest.initial_capital", Reason: "must be positive"}
	}
	if c.Backtest.TransactionCostRate < 0 || c.Backtest.TransactionCostRate >= 1 {
		return &ConfigError{Field: "backtest.transaction_cost_rate", Reason: "must be in [0, 1)"}
	}
	start, end, err := c.DateRange()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return &ConfigError{Field: "backtest.end_date", Reason: "must not precede start_date"}
	}

	if c.Strategy.Mode != ModeBasic && c.Strategy.Mode != ModeHybrid {
		return &ConfigError{Field: "strategy.mode", Reason: fmt.Sprintf("unknown mode %q", c.Strategy.Mode)}
	}
	if c.Strategy.MaxPositions <= 0 {
		return &ConfigError{Field: "strategy.max_positions", Reason: "must be positive"}
	}
	if c.Strategy.StopLossRate >= 0 {
		return &ConfigError{Field: "strategy.stop_loss_rate", Reason: "must be negative"}
	}
	if c.Strategy.MinHoldingDays < 0 || c.Strategy.MinHoldingDays > c.Strategy.MaxHoldingDays() {
		return &ConfigError{Field: "strategy.min_holding_days", Reason: "must be within [0, max_holding_days]"}
	}
	if c.Strategy.HoldExtendThreshold < 0 || c.Strategy.HoldExtendThreshold > 1 {
		return &ConfigError{Field: "strategy.hold_extend_threshold", Reason: "must be in [0, 1]"}
	}
	if c.Strategy.PositionSizeRatio <= 0 || c.Strategy.PositionSizeRatio > 1 {
		return &ConfigError{Field: "strategy.position_size_ratio", Reason: "must be in (0, 1]"}
	}
	if c.Strategy.SafetyCash < 0 {
		return &ConfigError{Field: "strategy.safety_cash", Reason: "must not be negative"}
	}

	if math.Abs(c.Scoring.Weights.Sum()-1.0) > 1e-6 {
		return &ConfigError{Field: "scoring.weights", Reason: fmt.Sprintf("must sum to 1.0, got %.6f", c.Scoring.Weights.Sum())}
	}
	if c.Scoring.External.Weight < 0 || c.Scoring.External.Weight > 1 {
		return &ConfigError{Field: "scoring.external.weight", Reason: "must be in [0, 1]"}
	}
	switch c.Scoring.External.MissingPolicy {
	case MissingNeutral, MissingExclude:
	default:
		return &ConfigError{Field: "scoring.external.missing_policy", Reason: fmt.Sprintf("unknown policy %q", c.Scoring.External.MissingPolicy)}
	}

	if c.Pyramiding.MinScore < 0 || c.Pyramiding.MinScore > 1 {
		return &ConfigError{Field: "pyramiding.min_score", Reason: "must be in [0, 1]"}
	}
	if c.Pyramiding.MaxPositionFraction <= 0 || c.Pyramiding.MaxPositionFraction > 1 {
		return &ConfigError{Field: "pyramiding.max_position_fraction", Reason: "must be in (0, 1]"}
	}
	if c.Pyramiding.MaxResets < 0 {
		return &ConfigError{Field: "pyramiding.max_resets", Reason: "must not be negative"}
	}

	if c.Selector.MaxSelections <= 0 {
		return &ConfigError{Field: "selector.max_selections", Reason: "must be positive"}
	}
	if c.Selector.TrendStrengthMin < 0 || c.Selector.TrendStrengthMin > 4 {
		return &ConfigError{Field: "selector.trend_strength_min", Reason: "must be in [0, 4]"}
	}

	return nil
}
