// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Volume session events
	SessionStarted EventType = "session.started"
	SessionStopped EventType = "session.stopped"
	TradeExecuted  EventType = "session.trade_executed"

	// Smart profit events
	MonitorStarted EventType = "monitor.started"
	MonitorStopped EventType = "monitor.stopped"
	RuleTriggered  EventType = "monitor.rule_triggered"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// NewBase builds the embedded base for an event emitted now.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// SessionStartedEvent is emitted when a volume session begins pacing trades.
type SessionStartedEvent struct {
	BaseEvent
	SessionID       string
	OwnerID         string
	TokenMint       string
	Platform        string
	TargetVolumeSol float64
	WalletCount     int
}

// SessionStoppedEvent is emitted when a volume session reaches a terminal
// state, including emergency stops.
type SessionStoppedEvent struct {
	BaseEvent
	SessionID         string
	OwnerID           string
	TokenMint         string
	Status            string
	Reason            string
	ExecutedVolumeSol float64
	TotalTrades       int
}

// TradeExecutedEvent is emitted after every scheduler trade attempt.
type TradeExecutedEvent struct {
	BaseEvent
	SessionID    string
	OwnerID      string
	TokenMint    string
	Wallet       string
	Direction    string
	AmountSol    float64
	AmountTokens float64
	Signature    string
	Success      bool
	Error        string
}

// MonitorStartedEvent is emitted when position monitoring begins.
type MonitorStartedEvent struct {
	BaseEvent
	OwnerID           string
	TokenMint         string
	AverageEntryPrice float64
	TotalTokensHeld   float64
}

// MonitorStoppedEvent is emitted when position monitoring ends.
type MonitorStoppedEvent struct {
	BaseEvent
	OwnerID   string
	TokenMint string
	Reason    string // "manual", "liquidated", "position_empty"
}

// RuleTriggeredEvent is emitted when a risk rule fires, whether or not the
// resulting liquidation succeeded.
type RuleTriggeredEvent struct {
	BaseEvent
	OwnerID              string
	TokenMint            string
	Rule                 string // "take_profit", "stop_loss", "trailing_stop", "emergency_stop"
	UnrealizedPnlPercent float64
	CurrentPriceSol      float64
	SellPercent          float64
	Liquidated           bool
}
