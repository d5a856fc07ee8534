// internal/executor/paper.go
package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/volume-bot/internal/pricing"
	"github.com/rovshanmuradov/volume-bot/internal/wallet"
)

// PaperVenue fills trades instantly at the live feed price without touching
// the chain. Used for dry runs and volume pacing rehearsals; live venues
// plug in behind the same Venue interface.
type PaperVenue struct {
	source pricing.Source
	logger *zap.Logger
}

// NewPaperVenue creates a venue that simulates fills at quoted prices.
func NewPaperVenue(source pricing.Source, logger *zap.Logger) *PaperVenue {
	return &PaperVenue{
		source: source,
		logger: logger.Named("paper_venue"),
	}
}

func (v *PaperVenue) Name() string { return "paper" }

func (v *PaperVenue) Buy(ctx context.Context, w *wallet.Wallet, tokenMint string, amountSol float64, _ int) (*Fill, error) {
	quote, err := v.source.GetPrice(ctx, tokenMint)
	if err != nil {
		return nil, fmt.Errorf("paper buy: %w", err)
	}

	fill := &Fill{
		SolAmount:   amountSol,
		TokenAmount: amountSol / quote.PriceSol,
		Signature:   "paper-" + uuid.New().String(),
	}
	v.logger.Debug("Paper buy filled",
		zap.String("wallet", w.Address()),
		zap.String("token", tokenMint),
		zap.Float64("sol", fill.SolAmount),
		zap.Float64("tokens", fill.TokenAmount))
	return fill, nil
}

func (v *PaperVenue) Sell(ctx context.Context, w *wallet.Wallet, tokenMint string, amountTokens float64, _ int) (*Fill, error) {
	quote, err := v.source.GetPrice(ctx, tokenMint)
	if err != nil {
		return nil, fmt.Errorf("paper sell: %w", err)
	}

	fill := &Fill{
		SolAmount:   amountTokens * quote.PriceSol,
		TokenAmount: amountTokens,
		Signature:   "paper-" + uuid.New().String(),
	}
	v.logger.Debug("Paper sell filled",
		zap.String("wallet", w.Address()),
		zap.String("token", tokenMint),
		zap.Float64("sol", fill.SolAmount),
		zap.Float64("tokens", fill.TokenAmount))
	return fill, nil
}
