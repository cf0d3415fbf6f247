package store

import (
	"context"
	"fmt"
	"time"

	"github.com/soulscout/soulscout/internal/ingest"
	"github.com/soulscout/soulscout/internal/model"
)

// SavePoolSnapshot appends one snapshot row per pool in a single
// transaction. Satisfies the ingestor snapshot store.
func (s *Store) SavePoolSnapshot(ctx context.Context, pools []model.PoolInfo) error {
	if len(pools) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pool_snapshots
			(pool_id, dex, token_a_mint, token_b_mint, reserve_a, reserve_b,
			 tvl_usd, volume_24h_usd, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pools {
		if _, err := stmt.ExecContext(ctx,
			p.PoolID, p.Dex, p.TokenAMint, p.TokenBMint, p.ReserveA, p.ReserveB,
			p.TVLUSD, p.Volume24hUSD, p.LastUpdated); err != nil {
			return fmt.Errorf("insert snapshot for %s: %w", p.PoolID, err)
		}
	}
	return tx.Commit()
}

// SaveBars persists completed bars, replacing any earlier write for the
// same (pool, interval, start). Partial bars flushed at shutdown overwrite
// cleanly on restart.
func (s *Store) SaveBars(ctx context.Context, bars []ingest.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bars tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ohlcv_bars (pool_id, interval_min, bar_start, open, high, low, close, volume_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (pool_id, interval_min, bar_start) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume_usd = EXCLUDED.volume_usd`)
	if err != nil {
		return fmt.Errorf("prepare bar insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			b.PoolID, b.IntervalMin, b.Start, b.Open, b.High, b.Low, b.Close, b.VolumeUSD); err != nil {
			return fmt.Errorf("insert bar %s/%dm: %w", b.PoolID, b.IntervalMin, err)
		}
	}
	return tx.Commit()
}

// PruneBars deletes bars older than the retention horizon.
func (s *Store) PruneBars(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ohlcv_bars WHERE bar_start < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("prune bars: %w", err)
	}
	return res.RowsAffected()
}
