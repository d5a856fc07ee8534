package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/volume-bot/internal/pricing"
)

func fixedSource(price float64) pricing.Source {
	return pricing.SourceFunc(func(_ context.Context, tokenMint string) (pricing.Quote, error) {
		return pricing.Quote{TokenMint: tokenMint, PriceSol: price, AsOf: time.Now()}, nil
	})
}

func unavailableSource() pricing.Source {
	return pricing.SourceFunc(func(context.Context, string) (pricing.Quote, error) {
		return pricing.Quote{}, pricing.ErrPriceUnavailable
	})
}

func TestPaperVenue_Buy(t *testing.T) {
	v := NewPaperVenue(fixedSource(0.002), zaptest.NewLogger(t))
	w := testWallet(t)

	fill, err := v.Buy(context.Background(), w, "mint", 0.1, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, fill.SolAmount, 1e-9)
	assert.InDelta(t, 50, fill.TokenAmount, 1e-9)
	assert.NotEmpty(t, fill.Signature)
}

func TestPaperVenue_Sell(t *testing.T) {
	v := NewPaperVenue(fixedSource(0.002), zaptest.NewLogger(t))
	w := testWallet(t)

	fill, err := v.Sell(context.Background(), w, "mint", 50, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, fill.SolAmount, 1e-9)
	assert.InDelta(t, 50, fill.TokenAmount, 1e-9)
}

func TestPaperVenue_PriceUnavailable(t *testing.T) {
	v := NewPaperVenue(unavailableSource(), zaptest.NewLogger(t))
	w := testWallet(t)

	_, err := v.Buy(context.Background(), w, "mint", 0.1, 100)
	assert.ErrorIs(t, err, pricing.ErrPriceUnavailable)

	_, err = v.Sell(context.Background(), w, "mint", 50, 100)
	assert.ErrorIs(t, err, pricing.ErrPriceUnavailable)
}
