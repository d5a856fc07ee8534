// internal/storage/models/trade.go
package models

import "time"

// TradeRecord is one executed (or attempted) trade as persisted to Postgres.
type TradeRecord struct {
	ID            int64
	SessionID     string
	OwnerID       string
	TokenMint     string
	WalletAddress string
	Direction     string // "buy" or "sell"
	AmountSol     float64
	AmountTokens  float64
	Signature     string
	Success       bool
	ErrorMessage  string
	CreatedAt     time.Time
}
