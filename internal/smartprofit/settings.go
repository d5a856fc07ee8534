// internal/smartprofit/settings.go
package smartprofit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSettingsNotFound is returned by a SettingsStore when no settings are
// persisted for the key.
var ErrSettingsNotFound = errors.New("smart profit settings not found")

// SettingsStore persists smart profit settings across monitor restarts.
// Implemented by internal/storage/postgres.
type SettingsStore interface {
	Load(ctx context.Context, ownerID, tokenMint string) (*Settings, error)
	Save(ctx context.Context, settings *Settings) error
	Delete(ctx context.Context, ownerID, tokenMint string) error
}

// Settings hold the risk rules and position snapshot for one (owner, token)
// pair.
type Settings struct {
	OwnerID   string
	TokenMint string
	Enabled   bool

	WalletAddresses []string

	// Position snapshot. averageEntryPrice = totalSolInvested /
	// totalTokensHeld when both are positive; kept explicit because the
	// position may be imported from external bookkeeping.
	AverageEntryPrice float64
	TotalTokensHeld   float64
	TotalSolInvested  float64

	TakeProfitEnabled     bool
	TakeProfitPercent     float64
	TakeProfitSellPercent float64

	StopLossEnabled bool
	StopLossPercent float64

	TrailingStopEnabled           bool
	TrailingStopPercent           float64
	TrailingStopActivationPercent float64

	EmergencyStopEnabled     bool
	EmergencyStopLossPercent float64

	SlippageBps int
	Platform    string

	UpdatedAt time.Time
}

// DefaultSettings returns the settings created on first monitor start.
func DefaultSettings(ownerID, tokenMint string) *Settings {
	return &Settings{
		OwnerID:   ownerID,
		TokenMint: tokenMint,
		Enabled:   true,

		TakeProfitEnabled:     true,
		TakeProfitPercent:     50,
		TakeProfitSellPercent: 50,

		StopLossEnabled: true,
		StopLossPercent: 20,

		TrailingStopEnabled:           false,
		TrailingStopPercent:           10,
		TrailingStopActivationPercent: 20,

		EmergencyStopEnabled:     true,
		EmergencyStopLossPercent: 50,

		SlippageBps: 300,
		Platform:    "pumpfun",
		UpdatedAt:   time.Now(),
	}
}

// Validate checks the settings for a monitor start.
func (s *Settings) Validate() error {
	if s.OwnerID == "" {
		return fmt.Errorf("owner id cannot be empty")
	}
	if s.TokenMint == "" {
		return fmt.Errorf("token mint cannot be empty")
	}
	if s.AverageEntryPrice < 0 || s.TotalTokensHeld < 0 || s.TotalSolInvested < 0 {
		return fmt.Errorf("position values cannot be negative")
	}
	if s.AverageEntryPrice == 0 {
		return fmt.Errorf("average entry price is required")
	}
	if s.TotalTokensHeld == 0 {
		return fmt.Errorf("position is empty")
	}
	if s.TakeProfitEnabled && (s.TakeProfitSellPercent <= 0 || s.TakeProfitSellPercent > 100) {
		return fmt.Errorf("take profit sell percent must be in (0,100]")
	}
	if s.StopLossEnabled && s.StopLossPercent <= 0 {
		return fmt.Errorf("stop loss percent must be positive")
	}
	if s.TrailingStopEnabled && (s.TrailingStopPercent <= 0 || s.TrailingStopActivationPercent < 0) {
		return fmt.Errorf("invalid trailing stop thresholds")
	}
	if s.EmergencyStopEnabled && s.EmergencyStopLossPercent <= 0 {
		return fmt.Errorf("emergency stop loss percent must be positive")
	}
	if s.SlippageBps < 0 || s.SlippageBps > 10000 {
		return fmt.Errorf("slippage must be between 0 and 10000 bps")
	}
	return nil
}

// Clone returns a deep copy of the settings.
func (s *Settings) Clone() *Settings {
	out := *s
	out.WalletAddresses = append([]string(nil), s.WalletAddresses...)
	return &out
}

// SettingsPatch updates a subset of settings. Only non-nil fields change;
// everything else keeps its current value (merge semantics).
type SettingsPatch struct {
	Enabled *bool

	TakeProfitEnabled     *bool
	TakeProfitPercent     *float64
	TakeProfitSellPercent *float64

	StopLossEnabled *bool
	StopLossPercent *float64

	TrailingStopEnabled           *bool
	TrailingStopPercent           *float64
	TrailingStopActivationPercent *float64

	EmergencyStopEnabled     *bool
	EmergencyStopLossPercent *float64

	SlippageBps *int
}

// Apply merges the patch into the settings.
func (s *Settings) Apply(patch SettingsPatch) {
	if patch.Enabled != nil {
		s.Enabled = *patch.Enabled
	}
	if patch.TakeProfitEnabled != nil {
		s.TakeProfitEnabled = *patch.TakeProfitEnabled
	}
	if patch.TakeProfitPercent != nil {
		s.TakeProfitPercent = *patch.TakeProfitPercent
	}
	if patch.TakeProfitSellPercent != nil {
		s.TakeProfitSellPercent = *patch.TakeProfitSellPercent
	}
	if patch.StopLossEnabled != nil {
		s.StopLossEnabled = *patch.StopLossEnabled
	}
	if patch.StopLossPercent != nil {
		s.StopLossPercent = *patch.StopLossPercent
	}
	if patch.TrailingStopEnabled != nil {
		s.TrailingStopEnabled = *patch.TrailingStopEnabled
	}
	if patch.TrailingStopPercent != nil {
		s.TrailingStopPercent = *patch.TrailingStopPercent
	}
	if patch.TrailingStopActivationPercent != nil {
		s.TrailingStopActivationPercent = *patch.TrailingStopActivationPercent
	}
	if patch.EmergencyStopEnabled != nil {
		s.EmergencyStopEnabled = *patch.EmergencyStopEnabled
	}
	if patch.EmergencyStopLossPercent != nil {
		s.EmergencyStopLossPercent = *patch.EmergencyStopLossPercent
	}
	if patch.SlippageBps != nil {
		s.SlippageBps = *patch.SlippageBps
	}
	s.UpdatedAt = time.Now()
}
