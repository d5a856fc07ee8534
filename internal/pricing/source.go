// internal/pricing/source.go
package pricing

import (
	"context"
	"errors"
	"time"
)

// ErrPriceUnavailable is returned when a source has no usable price for a
// token. Callers must treat it as "skip this cycle", never as price zero.
var ErrPriceUnavailable = errors.New("price unavailable")

// Quote is a single observed price for a token, in SOL.
type Quote struct {
	TokenMint string
	PriceSol  float64
	AsOf      time.Time
}

// StaleAfter reports whether the quote is older than maxAge.
func (q Quote) StaleAfter(maxAge time.Duration) bool {
	if q.AsOf.IsZero() {
		return true
	}
	return time.Since(q.AsOf) > maxAge
}

// Source provides the current price of a token.
type Source interface {
	GetPrice(ctx context.Context, tokenMint string) (Quote, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, tokenMint string) (Quote, error)

func (f SourceFunc) GetPrice(ctx context.Context, tokenMint string) (Quote, error) {
	return f(ctx, tokenMint)
}
