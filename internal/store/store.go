// Package store is the Postgres persistence layer: token metadata and the
// token list, pool snapshots, OHLCV bars, tracked wallets, and the notifier
// audit log. Consumers define the interfaces; this package satisfies them.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// Store wraps the shared connection pool. All queries run under the
// per-call timeout.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Open connects, configures the pool and verifies the connection.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: dsn is required")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db, timeout: 10 * time.Second}, nil
}

// Ping verifies the connection for health checks.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		mint TEXT PRIMARY KEY,
		symbol TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		decimals INT NOT NULL DEFAULT 0,
		on_token_list BOOLEAN NOT NULL DEFAULT FALSE,
		top_holder_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		risky_authorities BOOLEAN NOT NULL DEFAULT FALSE,
		first_liquidity_ts TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS pool_snapshots (
		pool_id TEXT NOT NULL,
		dex TEXT NOT NULL,
		token_a_mint TEXT NOT NULL,
		token_b_mint TEXT NOT NULL,
		reserve_a DOUBLE PRECISION NOT NULL,
		reserve_b DOUBLE PRECISION NOT NULL,
		tvl_usd DOUBLE PRECISION NOT NULL,
		volume_24h_usd DOUBLE PRECISION NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL,
		snapshot_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (pool_id, snapshot_at)
	)`,
	`CREATE TABLE IF NOT EXISTS ohlcv_bars (
		pool_id TEXT NOT NULL,
		interval_min INT NOT NULL,
		bar_start TIMESTAMPTZ NOT NULL,
		open DOUBLE PRECISION NOT NULL,
		high DOUBLE PRECISION NOT NULL,
		low DOUBLE PRECISION NOT NULL,
		close DOUBLE PRECISION NOT NULL,
		volume_usd DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (pool_id, interval_min, bar_start)
	)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		tg_user_id BIGINT NOT NULL,
		address TEXT NOT NULL,
		added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (tg_user_id, address)
	)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		tg_user_id BIGINT NOT NULL,
		wallet TEXT NOT NULL,
		mint TEXT NOT NULL,
		symbol TEXT NOT NULL DEFAULT '',
		amount DOUBLE PRECISION NOT NULL,
		value_usd DOUBLE PRECISION NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		acquired_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (tg_user_id, wallet, mint)
	)`,
	`CREATE TABLE IF NOT EXISTS notifier_audit_log (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		mint TEXT NOT NULL,
		symbol TEXT NOT NULL,
		severity TEXT NOT NULL,
		confidence INT NOT NULL,
		outcome TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		raw_alert TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_ts ON notifier_audit_log (ts)`,
	`CREATE INDEX IF NOT EXISTS idx_bars_pool ON ohlcv_bars (pool_id, bar_start)`,
}

// Bootstrap creates the schema idempotently.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
