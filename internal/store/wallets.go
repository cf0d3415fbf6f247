package store

import (
	"context"
	"fmt"

	"github.com/soulscout/soulscout/internal/model"
)

// UserWallets returns the tracked wallet addresses for a chat user in
// insertion order. Satisfies the portfolio wallet store.
func (s *Store) UserWallets(ctx context.Context, userID int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var addresses []string
	if err := s.db.SelectContext(ctx, &addresses,
		`SELECT address FROM wallets WHERE tg_user_id = $1 ORDER BY added_at`, userID); err != nil {
		return nil, fmt.Errorf("select wallets: %w", err)
	}
	return addresses, nil
}

// AddWallet tracks an address for a user; re-adding is a no-op.
func (s *Store) AddWallet(ctx context.Context, userID int64, address string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (tg_user_id, address) VALUES ($1, $2)
		ON CONFLICT (tg_user_id, address) DO NOTHING`, userID, address); err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// RemoveWallet stops tracking an address; removing a missing one is not an
// error.
func (s *Store) RemoveWallet(ctx context.Context, userID int64, address string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM wallets WHERE tg_user_id = $1 AND address = $2`, userID, address); err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return nil
}

// SaveHoldings replaces the holdings snapshot for one wallet.
func (s *Store) SaveHoldings(ctx context.Context, userID int64, wallet string, holdings []model.TokenHolding) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin holdings tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM holdings WHERE tg_user_id = $1 AND wallet = $2`, userID, wallet); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}
	for _, h := range holdings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO holdings (tg_user_id, wallet, mint, symbol, amount, value_usd, entry_price, acquired_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			userID, wallet, h.Mint, h.Symbol, h.Amount, h.ValueUSD, h.EntryPrice, h.AcquiredAt); err != nil {
			return fmt.Errorf("insert holding %s: %w", h.Mint, err)
		}
	}
	return tx.Commit()
}

// UserHoldings returns the latest persisted snapshot across a user's
// wallets.
func (s *Store) UserHoldings(ctx context.Context, userID int64) ([]model.TokenHolding, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var holdings []model.TokenHolding
	if err := s.db.SelectContext(ctx, &holdings, `
		SELECT mint, symbol, amount, value_usd, entry_price, acquired_at
		FROM holdings WHERE tg_user_id = $1
		ORDER BY value_usd DESC`, userID); err != nil {
		return nil, fmt.Errorf("select holdings: %w", err)
	}
	return holdings, nil
}
