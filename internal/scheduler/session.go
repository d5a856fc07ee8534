// internal/scheduler/session.go
package scheduler

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a volume session.
type Status string

const (
	StatusPending          Status = "pending"
	StatusRunning          Status = "running"
	StatusStopping         Status = "stopping"
	StatusStopped          Status = "stopped"
	StatusEmergencyStopped Status = "emergency_stopped"
)

// Terminal reports whether the status admits no further progress. An
// emergency stop is still allowed on top of a terminal status.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusEmergencyStopped
}

// Session is one paced trading campaign toward a target volume for one
// (owner, token) pair. All mutation goes through the session's own tick or
// the scheduler's stop calls.
type Session struct {
	mu sync.RWMutex

	ID        string
	OwnerID   string
	TokenMint string
	Platform  string

	status     Status
	stopReason string

	settings Settings

	executedVolumeSol float64
	totalTrades       int
	successfulTrades  int
	buyCount          int
	sellCount         int
	netPnlSol         float64

	// currentPriceSol is the last observed token price, seeded from the
	// start request and refined from realized fills. Used to size sells.
	currentPriceSol float64

	createdAt time.Time
	updatedAt time.Time
}

// Snapshot is an immutable copy of session state for external readers.
type Snapshot struct {
	ID                string
	OwnerID           string
	TokenMint         string
	Platform          string
	Status            Status
	StopReason        string
	Settings          Settings
	TargetVolumeSol   float64
	ExecutedVolumeSol float64
	TotalTrades       int
	SuccessfulTrades  int
	BuyCount          int
	SellCount         int
	NetPnlSol         float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		ID:                s.ID,
		OwnerID:           s.OwnerID,
		TokenMint:         s.TokenMint,
		Platform:          s.Platform,
		Status:            s.status,
		StopReason:        s.stopReason,
		Settings:          s.settings,
		TargetVolumeSol:   s.settings.TargetVolumeSol,
		ExecutedVolumeSol: s.executedVolumeSol,
		TotalTrades:       s.totalTrades,
		SuccessfulTrades:  s.successfulTrades,
		BuyCount:          s.buyCount,
		SellCount:         s.sellCount,
		NetPnlSol:         s.netPnlSol,
		CreatedAt:         s.createdAt,
		UpdatedAt:         s.updatedAt,
	}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// markRunning moves a pending session into running.
func (s *Session) markRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusPending {
		s.status = StatusRunning
		s.updatedAt = time.Now()
	}
}

// markStopped transitions running/pending through stopping into stopped.
// Returns false if the session is already terminal.
func (s *Session) markStopped(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return false
	}
	s.status = StatusStopping
	s.status = StatusStopped
	s.stopReason = reason
	s.updatedAt = time.Now()
	return true
}

// markEmergencyStopped forces the session into emergency_stopped from any
// state, including an already terminal one. Returns true if the session was
// not yet terminal.
func (s *Session) markEmergencyStopped(reason string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasActive := !s.status.Terminal()
	s.status = StatusEmergencyStopped
	s.stopReason = reason
	if at.IsZero() {
		at = time.Now()
	}
	s.updatedAt = at
	return wasActive
}

// currentPrice returns the last observed price.
func (s *Session) currentPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPriceSol
}

// applyTradeResult folds one trade outcome into the session counters.
// Results arriving after an emergency stop are discarded. Returns true when
// the accumulated volume has reached the target.
func (s *Session) applyTradeResult(direction string, success bool, amountSol, amountTokens float64) (targetReached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return false
	}

	s.totalTrades++
	s.updatedAt = time.Now()

	if !success {
		return false
	}

	s.successfulTrades++
	s.executedVolumeSol += amountSol
	switch direction {
	case "buy":
		s.buyCount++
		s.netPnlSol -= amountSol
	case "sell":
		s.sellCount++
		s.netPnlSol += amountSol
	}

	if amountTokens > 0 {
		s.currentPriceSol = amountSol / amountTokens
	}

	return s.executedVolumeSol >= s.settings.TargetVolumeSol
}

// remainingVolume returns how much volume is still needed to hit the target.
func (s *Session) remainingVolume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	remaining := s.settings.TargetVolumeSol - s.executedVolumeSol
	if remaining < 0 {
		return 0
	}
	return remaining
}
