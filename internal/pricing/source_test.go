package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestQuote_StaleAfter(t *testing.T) {
	fresh := Quote{TokenMint: "mint", PriceSol: 1.0, AsOf: time.Now()}
	assert.False(t, fresh.StaleAfter(10*time.Second))

	old := Quote{TokenMint: "mint", PriceSol: 1.0, AsOf: time.Now().Add(-time.Minute)}
	assert.True(t, old.StaleAfter(10*time.Second))

	zero := Quote{TokenMint: "mint", PriceSol: 1.0}
	assert.True(t, zero.StaleAfter(10*time.Second))
}

func TestSourceFunc(t *testing.T) {
	src := SourceFunc(func(_ context.Context, tokenMint string) (Quote, error) {
		return Quote{TokenMint: tokenMint, PriceSol: 2.5, AsOf: time.Now()}, nil
	})

	quote, err := src.GetPrice(context.Background(), "mint")
	assert.NoError(t, err)
	assert.Equal(t, 2.5, quote.PriceSol)
}

func TestFeed_GetPrice_Unavailable(t *testing.T) {
	logger := zaptest.NewLogger(t)
	feed := NewFeed(&FeedConfig{
		URL:         "ws://localhost:0",
		MaxQuoteAge: 5 * time.Second,
		Logger:      logger,
	})

	_, err := feed.GetPrice(context.Background(), "unknown_mint")
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestFeed_GetPrice_Stale(t *testing.T) {
	logger := zaptest.NewLogger(t)
	feed := NewFeed(&FeedConfig{
		URL:         "ws://localhost:0",
		MaxQuoteAge: 5 * time.Second,
		Logger:      logger,
	})

	feed.mu.Lock()
	feed.quotes["mint"] = Quote{TokenMint: "mint", PriceSol: 1.2, AsOf: time.Now().Add(-time.Minute)}
	feed.mu.Unlock()

	_, err := feed.GetPrice(context.Background(), "mint")
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestFeed_GetPrice_Fresh(t *testing.T) {
	logger := zaptest.NewLogger(t)
	feed := NewFeed(&FeedConfig{
		URL:         "ws://localhost:0",
		MaxQuoteAge: 5 * time.Second,
		Logger:      logger,
	})

	feed.mu.Lock()
	feed.quotes["mint"] = Quote{TokenMint: "mint", PriceSol: 1.2, AsOf: time.Now()}
	feed.mu.Unlock()

	quote, err := feed.GetPrice(context.Background(), "mint")
	assert.NoError(t, err)
	assert.Equal(t, 1.2, quote.PriceSol)
}

func TestFeed_DecodeMessage(t *testing.T) {
	var msg feedMessage
	raw := `{"type":"price","token_mint":"So11111111111111111111111111111111111111112","price_sol":0.000042,"timestamp":1735689600000}`
	err := json.Unmarshal([]byte(raw), &msg)
	assert.NoError(t, err)
	assert.Equal(t, "price", msg.Type)
	assert.Equal(t, 0.000042, msg.PriceSol)
}
