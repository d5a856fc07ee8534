// internal/executor/executor.go
package executor

import (
	"context"

	"github.com/rovshanmuradov/volume-bot/internal/wallet"
)

// Direction is the side of a trade.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Request describes one trade for one wallet. For buys AmountSol is the SOL
// to spend; for sells AmountTokens is the token quantity to dispose of.
type Request struct {
	Wallet       *wallet.Wallet
	TokenMint    string
	Direction    Direction
	AmountSol    float64
	AmountTokens float64
	SlippageBps  int
	Platform     string
}

// Result is the realized outcome of a trade.
type Result struct {
	Success      bool
	AmountSol    float64 // SOL spent (buy) or received (sell)
	AmountTokens float64 // tokens received (buy) or sold (sell)
	Signature    string
	Err          string
}

// Executor submits a single trade and reports the realized amounts.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
}
