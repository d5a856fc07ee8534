// internal/storage/recorder.go
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/volume-bot/internal/events"
	"github.com/rovshanmuradov/volume-bot/internal/storage/models"
)

const saveTimeout = 5 * time.Second

// TradeRecorder subscribes to trade events and writes them to the trade
// store. Persistence failures are logged and never block trading.
type TradeRecorder struct {
	store  TradeStore
	logger *zap.Logger
	sub    events.Subscription
}

// NewTradeRecorder attaches a recorder to the event bus.
func NewTradeRecorder(bus *events.Bus, store TradeStore, logger *zap.Logger) *TradeRecorder {
	r := &TradeRecorder{
		store:  store,
		logger: logger.Named("trade_recorder"),
	}
	r.sub = bus.SubscribeFunc(events.TradeExecuted, r.handle)
	return r
}

// Close detaches the recorder from the bus.
func (r *TradeRecorder) Close() {
	if r.sub != nil {
		r.sub.Unsubscribe()
	}
}

func (r *TradeRecorder) handle(ctx context.Context, ev events.Event) error {
	trade, ok := ev.(*events.TradeExecutedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", ev)
	}

	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	record := &models.TradeRecord{
		SessionID:     trade.SessionID,
		OwnerID:       trade.OwnerID,
		TokenMint:     trade.TokenMint,
		WalletAddress: trade.Wallet,
		Direction:     trade.Direction,
		AmountSol:     trade.AmountSol,
		AmountTokens:  trade.AmountTokens,
		Signature:     trade.Signature,
		Success:       trade.Success,
		ErrorMessage:  trade.Error,
		CreatedAt:     trade.Timestamp(),
	}
	if err := r.store.SaveTrade(saveCtx, record); err != nil {
		r.logger.Warn("Failed to persist trade",
			zap.String("session_id", trade.SessionID),
			zap.String("signature", trade.Signature),
			zap.Error(err))
	}
	return nil
}
