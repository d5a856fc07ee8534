package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/volume-bot/internal/storage"
	"github.com/rovshanmuradov/volume-bot/internal/storage/models"
)

var tradeColumns = []string{
	"id", "session_id", "owner_id", "token_mint", "wallet_address", "direction",
	"amount_sol", "amount_tokens", "signature", "success", "error_message", "created_at",
}

func sampleTrade() *models.TradeRecord {
	return &models.TradeRecord{
		SessionID:     "session-1",
		OwnerID:       "owner",
		TokenMint:     "mint",
		WalletAddress: "addr1",
		Direction:     "buy",
		AmountSol:     0.1,
		AmountTokens:  100,
		Signature:     "sig-1",
		Success:       true,
		CreatedAt:     time.Now(),
	}
}

func TestTradeRepository_SaveTrade(t *testing.T) {
	db, mock := newMock(t)

	trade := sampleTrade()
	mock.ExpectQuery(`INSERT INTO trades`).
		WithArgs(
			trade.SessionID, trade.OwnerID, trade.TokenMint, trade.WalletAddress,
			trade.Direction, trade.AmountSol, trade.AmountTokens, trade.Signature,
			trade.Success, trade.ErrorMessage, trade.CreatedAt,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	repo := NewTradeRepository(db)
	require.NoError(t, repo.SaveTrade(context.Background(), trade))
	assert.Equal(t, int64(7), trade.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepository_GetTrade(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		mockSetup func(mock sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(tradeColumns).AddRow(
					int64(1), "session-1", "owner", "mint", "addr1", "buy",
					0.1, 100.0, "sig-1", true, "", now,
				)
				mock.ExpectQuery(`SELECT .+ FROM trades WHERE signature = \$1`).
					WithArgs("sig-1").
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM trades WHERE signature = \$1`).
					WithArgs("sig-1").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: storage.ErrTradeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			tt.mockSetup(mock)

			repo := NewTradeRepository(db)
			got, err := repo.GetTrade(context.Background(), "sig-1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "session-1", got.SessionID)
				assert.Equal(t, "buy", got.Direction)
				assert.InDelta(t, 0.1, got.AmountSol, 1e-9)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTradeRepository_ListTrades(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	rows := sqlmock.NewRows(tradeColumns).
		AddRow(int64(2), "session-1", "owner", "mint", "addr2", "sell", 0.2, 200.0, "sig-2", true, "", now).
		AddRow(int64(1), "session-1", "owner", "mint", "addr1", "buy", 0.1, 100.0, "sig-1", false, "venue unavailable", now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT .+ FROM trades WHERE owner_id = \$1 AND token_mint = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("owner", "mint", 10, 0).
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	trades, err := repo.ListTrades(context.Background(), "owner", "mint", 10, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "sell", trades[0].Direction)
	assert.False(t, trades[1].Success)
	assert.Equal(t, "venue unavailable", trades[1].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepository_VolumeBySession(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount_sol\), 0\) FROM trades WHERE session_id = \$1 AND success`).
		WithArgs("session-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1.5))

	repo := NewTradeRepository(db)
	volume, err := repo.VolumeBySession(context.Background(), "session-1")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, volume, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
