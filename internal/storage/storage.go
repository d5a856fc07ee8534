// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/volume-bot/internal/storage/models"
)

// ErrTradeNotFound is returned when a trade lookup matches nothing.
var ErrTradeNotFound = errors.New("trade not found")

// TradeStore persists the trade history produced by volume sessions.
type TradeStore interface {
	SaveTrade(ctx context.Context, trade *models.TradeRecord) error
	GetTrade(ctx context.Context, signature string) (*models.TradeRecord, error)
	ListTrades(ctx context.Context, ownerID, tokenMint string, limit, offset int) ([]*models.TradeRecord, error)
	VolumeBySession(ctx context.Context, sessionID string) (float64, error)
}
