package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS players (
		user_id        text PRIMARY KEY,
		doc            jsonb NOT NULL,
		schema_version int NOT NULL DEFAULT 0,
		needs_review   boolean NOT NULL DEFAULT false,
		updated_at     timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bank_accounts (
		id             uuid PRIMARY KEY,
		user_id        text NOT NULL UNIQUE,
		account_holder text NOT NULL,
		balance        double precision NOT NULL DEFAULT 0,
		created_at     timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bank_transactions (
		id          uuid PRIMARY KEY,
		account_id  uuid NOT NULL REFERENCES bank_accounts(id),
		user_id     text NOT NULL,
		type        text NOT NULL,
		amount      double precision NOT NULL,
		description text NOT NULL DEFAULT '',
		created_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS bank_transactions_user_idx
		ON bank_transactions (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS fixed_deposits (
		id            uuid PRIMARY KEY,
		user_id       text NOT NULL,
		account_id    uuid NOT NULL REFERENCES bank_accounts(id),
		amount        double precision NOT NULL,
		interest_rate double precision NOT NULL,
		start_date    timestamptz NOT NULL,
		duration_days int NOT NULL,
		maturity_date timestamptz NOT NULL,
		status        text NOT NULL DEFAULT 'active',
		matured       boolean NOT NULL DEFAULT false,
		claimed_at    timestamptz
	)`,
	`CREATE INDEX IF NOT EXISTS fixed_deposits_user_idx
		ON fixed_deposits (user_id, start_date DESC)`,
	`CREATE INDEX IF NOT EXISTS fixed_deposits_maturity_idx
		ON fixed_deposits (status, maturity_date)`,
	`CREATE TABLE IF NOT EXISTS stock_portfolios (
		id              uuid PRIMARY KEY,
		user_id         text NOT NULL UNIQUE,
		total_value     double precision NOT NULL DEFAULT 0,
		total_invested  double precision NOT NULL DEFAULT 0,
		total_gain_loss double precision NOT NULL DEFAULT 0,
		updated_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_holdings (
		portfolio_id  uuid NOT NULL REFERENCES stock_portfolios(id),
		user_id       text NOT NULL,
		symbol        text NOT NULL,
		name          text NOT NULL,
		quantity      bigint NOT NULL,
		average_price double precision NOT NULL,
		current_price double precision NOT NULL,
		total_value   double precision NOT NULL,
		gain_loss     double precision NOT NULL,
		gain_loss_pct double precision NOT NULL,
		purchase_date timestamptz NOT NULL,
		PRIMARY KEY (portfolio_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_transactions (
		id           uuid PRIMARY KEY,
		user_id      text NOT NULL,
		portfolio_id uuid NOT NULL,
		stock_id     text NOT NULL,
		stock_name   text NOT NULL,
		type         text NOT NULL,
		price        double precision NOT NULL,
		quantity     bigint NOT NULL,
		total        double precision NOT NULL,
		created_at   timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS stock_transactions_user_idx
		ON stock_transactions (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		user_id    text NOT NULL,
		key        text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, key)
	)`,
}

// EnsureSchema creates the tables the service needs. Statements are
// idempotent, so running it on every startup is safe.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
