// internal/storage/postgres/trade_repository.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rovshanmuradov/volume-bot/internal/storage"
	"github.com/rovshanmuradov/volume-bot/internal/storage/models"
)

// TradeRepository persists the trade history. Implements storage.TradeStore.
type TradeRepository struct {
	db *sql.DB
}

func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

func (r *TradeRepository) SaveTrade(ctx context.Context, trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (
			session_id, owner_id, token_mint, wallet_address, direction,
			amount_sol, amount_tokens, signature, success, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		trade.SessionID,
		trade.OwnerID,
		trade.TokenMint,
		trade.WalletAddress,
		trade.Direction,
		trade.AmountSol,
		trade.AmountTokens,
		trade.Signature,
		trade.Success,
		trade.ErrorMessage,
		trade.CreatedAt,
	).Scan(&trade.ID)
	if err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

func (r *TradeRepository) GetTrade(ctx context.Context, signature string) (*models.TradeRecord, error) {
	query := `
		SELECT id, session_id, owner_id, token_mint, wallet_address, direction,
		       amount_sol, amount_tokens, signature, success, error_message, created_at
		FROM trades
		WHERE signature = $1`

	trade := &models.TradeRecord{}
	err := r.db.QueryRowContext(ctx, query, signature).Scan(
		&trade.ID,
		&trade.SessionID,
		&trade.OwnerID,
		&trade.TokenMint,
		&trade.WalletAddress,
		&trade.Direction,
		&trade.AmountSol,
		&trade.AmountTokens,
		&trade.Signature,
		&trade.Success,
		&trade.ErrorMessage,
		&trade.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTradeNotFound
		}
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return trade, nil
}

func (r *TradeRepository) ListTrades(ctx context.Context, ownerID, tokenMint string, limit, offset int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, session_id, owner_id, token_mint, wallet_address, direction,
		       amount_sol, amount_tokens, signature, success, error_message, created_at
		FROM trades
		WHERE owner_id = $1 AND token_mint = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, ownerID, tokenMint, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		if err := rows.Scan(
			&trade.ID,
			&trade.SessionID,
			&trade.OwnerID,
			&trade.TokenMint,
			&trade.WalletAddress,
			&trade.Direction,
			&trade.AmountSol,
			&trade.AmountTokens,
			&trade.Signature,
			&trade.Success,
			&trade.ErrorMessage,
			&trade.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return trades, nil
}

// VolumeBySession sums the realized SOL volume of a session's successful
// trades.
func (r *TradeRepository) VolumeBySession(ctx context.Context, sessionID string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(amount_sol), 0)
		FROM trades
		WHERE session_id = $1 AND success`

	var volume float64
	if err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&volume); err != nil {
		return 0, fmt.Errorf("session volume: %w", err)
	}
	return volume, nil
}
