package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/volume-bot/internal/smartprofit"
)

var settingsColumns = []string{
	"owner_id", "token_mint", "enabled", "wallet_addresses",
	"average_entry_price", "total_tokens_held", "total_sol_invested",
	"take_profit_enabled", "take_profit_percent", "take_profit_sell_percent",
	"stop_loss_enabled", "stop_loss_percent",
	"trailing_stop_enabled", "trailing_stop_percent", "trailing_stop_activation_percent",
	"emergency_stop_enabled", "emergency_stop_loss_percent",
	"slippage_bps", "platform", "updated_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestSettingsRepository_Load(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		mockSetup func(mock sqlmock.Sqlmock)
		wantErr   error
		check     func(t *testing.T, got *smartprofit.Settings)
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(settingsColumns).AddRow(
					"owner", "mint", true, []byte("{addr1,addr2}"),
					0.001, 1000.0, 1.0,
					true, 50.0, 50.0,
					true, 20.0,
					false, 10.0, 20.0,
					true, 50.0,
					300, "pumpfun", now,
				)
				mock.ExpectQuery(`SELECT .+ FROM smart_profit_settings WHERE owner_id = \$1 AND token_mint = \$2`).
					WithArgs("owner", "mint").
					WillReturnRows(rows)
			},
			check: func(t *testing.T, got *smartprofit.Settings) {
				assert.Equal(t, "owner", got.OwnerID)
				assert.Equal(t, "mint", got.TokenMint)
				assert.True(t, got.Enabled)
				assert.Equal(t, []string{"addr1", "addr2"}, got.WalletAddresses)
				assert.InDelta(t, 0.001, got.AverageEntryPrice, 1e-9)
				assert.InDelta(t, 1000, got.TotalTokensHeld, 1e-9)
				assert.True(t, got.StopLossEnabled)
				assert.InDelta(t, 20, got.StopLossPercent, 1e-9)
				assert.Equal(t, 300, got.SlippageBps)
				assert.Equal(t, "pumpfun", got.Platform)
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM smart_profit_settings`).
					WithArgs("owner", "mint").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: smartprofit.ErrSettingsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			tt.mockSetup(mock)

			repo := NewSettingsRepository(db)
			got, err := repo.Load(context.Background(), "owner", "mint")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				tt.check(t, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSettingsRepository_Save(t *testing.T) {
	db, mock := newMock(t)

	settings := smartprofit.DefaultSettings("owner", "mint")
	settings.WalletAddresses = []string{"addr1"}
	settings.AverageEntryPrice = 0.001
	settings.TotalTokensHeld = 1000
	settings.TotalSolInvested = 1

	mock.ExpectExec(`INSERT INTO smart_profit_settings .+ ON CONFLICT \(owner_id, token_mint\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSettingsRepository(db)
	require.NoError(t, repo.Save(context.Background(), settings))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository_SaveError(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO smart_profit_settings`).
		WillReturnError(sql.ErrConnDone)

	repo := NewSettingsRepository(db)
	err := repo.Save(context.Background(), smartprofit.DefaultSettings("owner", "mint"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository_Delete(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM smart_profit_settings WHERE owner_id = \$1 AND token_mint = \$2`).
		WithArgs("owner", "mint").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSettingsRepository(db)
	require.NoError(t, repo.Delete(context.Background(), "owner", "mint"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
