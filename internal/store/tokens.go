package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/soulscout/soulscout/internal/model"
)

// TokenMetadata returns the metadata row for a mint, or nil when the mint
// is unknown. Satisfies the analytics metadata store.
func (s *Store) TokenMetadata(ctx context.Context, mint string) (*model.TokenMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var meta model.TokenMetadata
	err := s.db.GetContext(ctx, &meta, `
		SELECT mint, symbol, name, decimals, on_token_list, top_holder_pct,
		       risky_authorities, first_liquidity_ts
		FROM tokens WHERE mint = $1`, mint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select token %s: %w", mint, err)
	}
	return &meta, nil
}

// TokenListMints returns the set of mints on the curated token list.
func (s *Store) TokenListMints(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var mints []string
	if err := s.db.SelectContext(ctx, &mints,
		`SELECT mint FROM tokens WHERE on_token_list`); err != nil {
		return nil, fmt.Errorf("select token list: %w", err)
	}
	set := make(map[string]struct{}, len(mints))
	for _, m := range mints {
		set[m] = struct{}{}
	}
	return set, nil
}

// UpsertToken inserts or refreshes one metadata row.
func (s *Store) UpsertToken(ctx context.Context, meta model.TokenMetadata) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (mint, symbol, name, decimals, on_token_list,
		                    top_holder_pct, risky_authorities, first_liquidity_ts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (mint) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			decimals = EXCLUDED.decimals,
			on_token_list = EXCLUDED.on_token_list,
			top_holder_pct = EXCLUDED.top_holder_pct,
			risky_authorities = EXCLUDED.risky_authorities,
			updated_at = NOW()`,
		meta.Mint, meta.Symbol, meta.Name, meta.Decimals, meta.OnTokenList,
		meta.TopHolderPct, meta.RiskyAuthorities, meta.FirstLiquidityTS)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", meta.Mint, err)
	}
	return nil
}
