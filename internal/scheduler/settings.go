// internal/scheduler/settings.go
package scheduler

import (
	"fmt"
)

// Strategy names accepted by the scheduler. The strategy only affects trade
// sizing; direction pacing is always probabilistic.
const (
	StrategyBalanced     = "balanced"
	StrategyAggressive   = "aggressive"
	StrategyConservative = "conservative"
)

// Settings control the pacing of a volume session.
type Settings struct {
	Strategy           string
	TargetVolumeSol    float64
	BuyPressurePercent float64 // [0,100]: expected share of buys over many ticks
	TradeIntervalMs    int
	SlippageBps        int
	MinTradeSol        float64
	MaxTradeSol        float64
}

// DefaultSettings returns the scheduler defaults merged into every start
// request.
func DefaultSettings() Settings {
	return Settings{
		Strategy:           StrategyBalanced,
		BuyPressurePercent: 50,
		TradeIntervalMs:    5000,
		SlippageBps:        100,
		MinTradeSol:        0.05,
		MaxTradeSol:        0.25,
	}
}

// withDefaults fills unset fields from DefaultSettings. TargetVolumeSol has
// no default; a missing target fails validation instead.
func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.Strategy == "" {
		s.Strategy = def.Strategy
	}
	// A zero buy pressure means unset, not all-sells. Sell-only pacing is
	// not a volume strategy, so the field has no zero escape hatch.
	if s.BuyPressurePercent == 0 {
		s.BuyPressurePercent = def.BuyPressurePercent
	}
	if s.TradeIntervalMs == 0 {
		s.TradeIntervalMs = def.TradeIntervalMs
	}
	if s.SlippageBps == 0 {
		s.SlippageBps = def.SlippageBps
	}
	if s.MinTradeSol == 0 {
		s.MinTradeSol = def.MinTradeSol
	}
	if s.MaxTradeSol == 0 {
		s.MaxTradeSol = def.MaxTradeSol
	}
	return s
}

// Validate checks the merged settings.
func (s Settings) Validate() error {
	if s.TargetVolumeSol <= 0 {
		return fmt.Errorf("target volume must be greater than zero")
	}
	if s.BuyPressurePercent < 0 || s.BuyPressurePercent > 100 {
		return fmt.Errorf("buy pressure must be between 0 and 100")
	}
	if s.TradeIntervalMs <= 0 {
		return fmt.Errorf("trade interval must be greater than zero")
	}
	if s.SlippageBps < 0 || s.SlippageBps > 10000 {
		return fmt.Errorf("slippage must be between 0 and 10000 bps")
	}
	if s.MinTradeSol <= 0 || s.MaxTradeSol < s.MinTradeSol {
		return fmt.Errorf("invalid trade size range")
	}
	switch s.Strategy {
	case StrategyBalanced, StrategyAggressive, StrategyConservative:
	default:
		return fmt.Errorf("unsupported strategy: %q", s.Strategy)
	}
	return nil
}

// sizeMultiplier scales the trade size range per strategy.
func (s Settings) sizeMultiplier() float64 {
	switch s.Strategy {
	case StrategyAggressive:
		return 1.5
	case StrategyConservative:
		return 0.5
	default:
		return 1.0
	}
}
