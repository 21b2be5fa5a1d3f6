package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the billing schema migration. Monetary values are
// always integer minor-currency units (cents).
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS subscription_plans (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			type                TEXT NOT NULL,
			monthly_price_cents BIGINT NOT NULL DEFAULT 0,
			yearly_price_cents  BIGINT NOT NULL DEFAULT 0,
			max_seats           INT NOT NULL DEFAULT -1,
			max_workspaces      INT NOT NULL DEFAULT -1,
			max_documents       INT NOT NULL DEFAULT -1,
			features            TEXT[] NOT NULL DEFAULT '{}',
			is_active           BOOLEAN NOT NULL DEFAULT TRUE,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS billing_customers (
			id              TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL UNIQUE,
			email           TEXT NOT NULL,
			name            TEXT NOT NULL DEFAULT '',
			address_line1   TEXT NOT NULL DEFAULT '',
			address_line2   TEXT NOT NULL DEFAULT '',
			city            TEXT NOT NULL DEFAULT '',
			state           TEXT NOT NULL DEFAULT '',
			postal_code     TEXT NOT NULL DEFAULT '',
			country         TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS payment_methods (
			id                  TEXT PRIMARY KEY,
			organization_id     TEXT NOT NULL,
			billing_customer_id TEXT NOT NULL REFERENCES billing_customers(id),
			gateway_token       TEXT NOT NULL,
			card_last4          TEXT NOT NULL,
			card_brand          TEXT NOT NULL DEFAULT 'unknown',
			exp_month           INT NOT NULL DEFAULT 0,
			exp_year            INT NOT NULL DEFAULT 0,
			is_default          BOOLEAN NOT NULL DEFAULT FALSE,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payment_methods_org ON payment_methods(organization_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_methods_one_default
			ON payment_methods(organization_id) WHERE is_default;

		CREATE TABLE IF NOT EXISTS subscriptions (
			id                   TEXT PRIMARY KEY,
			organization_id      TEXT NOT NULL UNIQUE,
			plan_id              TEXT NOT NULL REFERENCES subscription_plans(id),
			status               TEXT NOT NULL,
			billing_interval     TEXT NOT NULL DEFAULT 'monthly',
			current_period_start TIMESTAMPTZ NOT NULL,
			current_period_end   TIMESTAMPTZ NOT NULL,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
			canceled_at          TIMESTAMPTZ,
			trial_start          TIMESTAMPTZ,
			trial_end            TIMESTAMPTZ,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS payments (
			id                    TEXT PRIMARY KEY,
			organization_id       TEXT NOT NULL,
			subscription_id       TEXT,
			payment_method_id     TEXT,
			amount_cents          BIGINT NOT NULL,
			currency              TEXT NOT NULL DEFAULT 'USD',
			status                TEXT NOT NULL,
			gateway_txn_id        TEXT NOT NULL DEFAULT '',
			approval_code         TEXT NOT NULL DEFAULT '',
			description           TEXT NOT NULL DEFAULT '',
			failure_reason        TEXT NOT NULL DEFAULT '',
			refunded_amount_cents BIGINT NOT NULL DEFAULT 0,
			metadata              JSONB NOT NULL DEFAULT '{}',
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (refunded_amount_cents >= 0 AND refunded_amount_cents <= amount_cents)
		);
		CREATE INDEX IF NOT EXISTS idx_payments_org ON payments(organization_id);
		CREATE INDEX IF NOT EXISTS idx_payments_org_status ON payments(organization_id, status);

		CREATE TABLE IF NOT EXISTS payment_events (
			id              TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			payment_id      TEXT,
			type            TEXT NOT NULL,
			payload         JSONB NOT NULL DEFAULT '{}',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payment_events_org ON payment_events(organization_id);
		CREATE INDEX IF NOT EXISTS idx_payment_events_payment ON payment_events(payment_id);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
