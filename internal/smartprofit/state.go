// internal/smartprofit/state.go
package smartprofit

import "time"

// Rule identifies which risk rule fired.
type Rule string

const (
	RuleTakeProfit    Rule = "take_profit"
	RuleStopLoss      Rule = "stop_loss"
	RuleTrailingStop  Rule = "trailing_stop"
	RuleEmergencyStop Rule = "emergency_stop"
)

// State is a snapshot of the monitor's runtime state.
type State struct {
	OwnerID   string
	TokenMint string

	IsMonitoring         bool
	CurrentPriceSol      float64
	UnrealizedPnlPercent float64

	TrailingStopArmed            bool
	TrailingHighWaterMarkPercent float64

	// LastTriggeredRule is empty until a rule has actually executed its
	// action. A failed liquidation leaves it unset so the rule retries.
	LastTriggeredRule Rule

	ConsecutivePriceFailures int
	LastEvaluatedAt          time.Time
	StartedAt                time.Time
	StoppedAt                time.Time
	StopReason               string
}
