// internal/storage/postgres/settings_repository.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/rovshanmuradov/volume-bot/internal/smartprofit"
)

// SettingsRepository persists smart profit settings, one row per
// (owner, token) pair. Implements smartprofit.SettingsStore.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load returns the persisted settings for the pair, or
// smartprofit.ErrSettingsNotFound.
func (r *SettingsRepository) Load(ctx context.Context, ownerID, tokenMint string) (*smartprofit.Settings, error) {
	query := `
		SELECT owner_id, token_mint, enabled, wallet_addresses,
		       average_entry_price, total_tokens_held, total_sol_invested,
		       take_profit_enabled, take_profit_percent, take_profit_sell_percent,
		       stop_loss_enabled, stop_loss_percent,
		       trailing_stop_enabled, trailing_stop_percent, trailing_stop_activation_percent,
		       emergency_stop_enabled, emergency_stop_loss_percent,
		       slippage_bps, platform, updated_at
		FROM smart_profit_settings
		WHERE owner_id = $1 AND token_mint = $2`

	settings := &smartprofit.Settings{}
	err := r.db.QueryRowContext(ctx, query, ownerID, tokenMint).Scan(
		&settings.OwnerID,
		&settings.TokenMint,
		&settings.Enabled,
		pq.Array(&settings.WalletAddresses),
		&settings.AverageEntryPrice,
		&settings.TotalTokensHeld,
		&settings.TotalSolInvested,
		&settings.TakeProfitEnabled,
		&settings.TakeProfitPercent,
		&settings.TakeProfitSellPercent,
		&settings.StopLossEnabled,
		&settings.StopLossPercent,
		&settings.TrailingStopEnabled,
		&settings.TrailingStopPercent,
		&settings.TrailingStopActivationPercent,
		&settings.EmergencyStopEnabled,
		&settings.EmergencyStopLossPercent,
		&settings.SlippageBps,
		&settings.Platform,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, smartprofit.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("load smart profit settings: %w", err)
	}
	return settings, nil
}

// Save upserts the settings row for the pair.
func (r *SettingsRepository) Save(ctx context.Context, settings *smartprofit.Settings) error {
	query := `
		INSERT INTO smart_profit_settings (
			owner_id, token_mint, enabled, wallet_addresses,
			average_entry_price, total_tokens_held, total_sol_invested,
			take_profit_enabled, take_profit_percent, take_profit_sell_percent,
			stop_loss_enabled, stop_loss_percent,
			trailing_stop_enabled, trailing_stop_percent, trailing_stop_activation_percent,
			emergency_stop_enabled, emergency_stop_loss_percent,
			slippage_bps, platform, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (owner_id, token_mint) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			wallet_addresses = EXCLUDED.wallet_addresses,
			average_entry_price = EXCLUDED.average_entry_price,
			total_tokens_held = EXCLUDED.total_tokens_held,
			total_sol_invested = EXCLUDED.total_sol_invested,
			take_profit_enabled = EXCLUDED.take_profit_enabled,
			take_profit_percent = EXCLUDED.take_profit_percent,
			take_profit_sell_percent = EXCLUDED.take_profit_sell_percent,
			stop_loss_enabled = EXCLUDED.stop_loss_enabled,
			stop_loss_percent = EXCLUDED.stop_loss_percent,
			trailing_stop_enabled = EXCLUDED.trailing_stop_enabled,
			trailing_stop_percent = EXCLUDED.trailing_stop_percent,
			trailing_stop_activation_percent = EXCLUDED.trailing_stop_activation_percent,
			emergency_stop_enabled = EXCLUDED.emergency_stop_enabled,
			emergency_stop_loss_percent = EXCLUDED.emergency_stop_loss_percent,
			slippage_bps = EXCLUDED.slippage_bps,
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		settings.OwnerID,
		settings.TokenMint,
		settings.Enabled,
		pq.Array(settings.WalletAddresses),
		settings.AverageEntryPrice,
		settings.TotalTokensHeld,
		settings.TotalSolInvested,
		settings.TakeProfitEnabled,
		settings.TakeProfitPercent,
		settings.TakeProfitSellPercent,
		settings.StopLossEnabled,
		settings.StopLossPercent,
		settings.TrailingStopEnabled,
		settings.TrailingStopPercent,
		settings.TrailingStopActivationPercent,
		settings.EmergencyStopEnabled,
		settings.EmergencyStopLossPercent,
		settings.SlippageBps,
		settings.Platform,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save smart profit settings: %w", err)
	}
	return nil
}

// Delete removes the settings row. Deleting a missing row is not an error.
func (r *SettingsRepository) Delete(ctx context.Context, ownerID, tokenMint string) error {
	query := `DELETE FROM smart_profit_settings WHERE owner_id = $1 AND token_mint = $2`
	if _, err := r.db.ExecContext(ctx, query, ownerID, tokenMint); err != nil {
		return fmt.Errorf("delete smart profit settings: %w", err)
	}
	return nil
}
