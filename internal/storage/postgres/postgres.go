// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const migrationLockID = 4217

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("✅ Connected to Postgres")
	return db, nil
}

// RunMigrations creates the schema. An advisory lock keeps concurrent
// instances from migrating at the same time.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	var locked bool
	if err := db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockID).Scan(&locked); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another migration is in progress")
	}
	defer func() {
		_, _ = db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	for _, stmt := range []string{schemaTrades, schemaSmartProfitSettings} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}

const schemaTrades = `
CREATE TABLE IF NOT EXISTS trades (
	id             BIGSERIAL PRIMARY KEY,
	session_id     VARCHAR(36)  NOT NULL,
	owner_id       VARCHAR(64)  NOT NULL,
	token_mint     VARCHAR(44)  NOT NULL,
	wallet_address VARCHAR(44)  NOT NULL,
	direction      VARCHAR(4)   NOT NULL,
	amount_sol     DECIMAL(20,9) NOT NULL,
	amount_tokens  DECIMAL(20,9) NOT NULL,
	signature      VARCHAR(88)  NOT NULL DEFAULT '',
	success        BOOLEAN      NOT NULL,
	error_message  TEXT         NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ  NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_trades_owner_token ON trades (owner_id, token_mint);
CREATE INDEX IF NOT EXISTS idx_trades_session ON trades (session_id);`

const schemaSmartProfitSettings = `
CREATE TABLE IF NOT EXISTS smart_profit_settings (
	owner_id                          VARCHAR(64) NOT NULL,
	token_mint                        VARCHAR(44) NOT NULL,
	enabled                           BOOLEAN NOT NULL,
	wallet_addresses                  TEXT[] NOT NULL DEFAULT '{}',
	average_entry_price               DECIMAL(20,9) NOT NULL,
	total_tokens_held                 DECIMAL(20,9) NOT NULL,
	total_sol_invested                DECIMAL(20,9) NOT NULL,
	take_profit_enabled               BOOLEAN NOT NULL,
	take_profit_percent               DECIMAL(10,4) NOT NULL,
	take_profit_sell_percent          DECIMAL(10,4) NOT NULL,
	stop_loss_enabled                 BOOLEAN NOT NULL,
	stop_loss_percent                 DECIMAL(10,4) NOT NULL,
	trailing_stop_enabled             BOOLEAN NOT NULL,
	trailing_stop_percent             DECIMAL(10,4) NOT NULL,
	trailing_stop_activation_percent  DECIMAL(10,4) NOT NULL,
	emergency_stop_enabled            BOOLEAN NOT NULL,
	emergency_stop_loss_percent       DECIMAL(10,4) NOT NULL,
	slippage_bps                      INTEGER NOT NULL,
	platform                          VARCHAR(32) NOT NULL,
	updated_at                        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_id, token_mint)
);`
