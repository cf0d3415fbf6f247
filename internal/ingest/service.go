package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/metrics"
	"github.com/soulscout/soulscout/internal/model"
)

// SnapshotStore persists pool snapshots and completed bars.
type SnapshotStore interface {
	SavePoolSnapshot(ctx context.Context, pools []model.PoolInfo) error
	SaveBars(ctx context.Context, bars []Bar) error
}

// Service runs the ingestor: fetch pools on the global tick, filter by
// TVL/volume, cache them, aggregate bars, publish one MarketUpdate per
// retained pool, and persist snapshots on a slower cadence.
type Service struct {
	cfg   config.Config
	b     bus.Bus
	src   PoolSource
	cache *PoolCache
	agg   *Aggregator
	store SnapshotStore
	now   func() time.Time
}

// NewService wires the ingestor.
func NewService(cfg config.Config, b bus.Bus, src PoolSource, store SnapshotStore) *Service {
	return &Service{
		cfg:   cfg,
		b:     b,
		src:   src,
		cache: NewPoolCache(cfg.Ingestor.PoolCacheMaxSize, time.Duration(cfg.Ingestor.PoolCacheTTLMinutes)*time.Minute),
		agg:   NewAggregator(),
		store: store,
		now:   time.Now,
	}
}

// Aggregator exposes the bar aggregator so a price feed can share it.
func (s *Service) Aggregator() *Aggregator { return s.agg }

// Run schedules the tick, snapshot and cleanup jobs and blocks until ctx is
// done, then persists a final snapshot with the flushed partial bars.
func (s *Service) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %ds", s.cfg.Ingestor.GlobalTickSeconds), func() {
		if err := s.Tick(ctx); err != nil {
			log.Error().Err(err).Msg("ingestor tick failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %dm", s.cfg.Ingestor.SnapshotPersistMinutes), func() {
		if err := s.persistSnapshot(ctx); err != nil {
			log.Error().Err(err).Msg("snapshot persist failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule snapshot: %w", err)
	}
	if _, err := c.AddFunc("@every 1h", func() {
		s.agg.CleanupOld(24 * time.Hour)
	}); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}

	c.Start()
	log.Info().Int("tick_seconds", s.cfg.Ingestor.GlobalTickSeconds).Msg("ingestor started")

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()

	// Final snapshot runs on a fresh context; the root one is already
	// cancelled.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.finalSnapshot(flushCtx); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	}
	return ctx.Err()
}

// Tick is one ingestion pass: fetch, filter, cache, aggregate, publish.
func (s *Service) Tick(ctx context.Context) error {
	started := s.now()

	pools, err := s.src.FetchPools(ctx)
	if err != nil {
		return fmt.Errorf("fetch pools: %w", err)
	}
	metrics.PoolsFetched.Add(float64(len(pools)))

	retained := 0
	for _, pool := range pools {
		if !s.retain(pool) {
			continue
		}
		retained++
		pool.LastUpdated = s.now()
		s.cache.Put(pool)
		s.agg.AddPoint(pool.PoolID, pool.PriceUSD, pool.Volume24hUSD, s.now())

		if err := s.publishUpdate(ctx, pool); err != nil {
			log.Warn().Err(err).Str("pool", pool.PoolID).Msg("publish market update failed")
		}
	}

	if bars := s.agg.DrainCompleted(); len(bars) > 0 {
		if err := s.store.SaveBars(ctx, bars); err != nil {
			log.Warn().Err(err).Int("bars", len(bars)).Msg("persist completed bars failed")
		}
	}

	log.Info().
		Int("fetched", len(pools)).
		Int("retained", retained).
		Dur("took", s.now().Sub(started)).
		Msg("ingestor tick")
	return nil
}

// retain keeps a pool when either threshold is met.
func (s *Service) retain(pool model.PoolInfo) bool {
	return pool.TVLUSD >= s.cfg.Ingestor.MinTVLThreshold ||
		pool.Volume24hUSD >= s.cfg.Ingestor.MinVolumeThreshold
}

func (s *Service) publishUpdate(ctx context.Context, pool model.PoolInfo) error {
	u := s.buildUpdate(pool)
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal market update: %w", err)
	}
	return s.b.Publish(ctx, s.cfg.StreamMarket, u.ID, payload)
}

func (s *Service) buildUpdate(pool model.PoolInfo) model.MarketUpdate {
	u := model.MarketUpdate{
		ID:         uuid.NewString(),
		PoolID:     pool.PoolID,
		MintBase:   pool.TokenAMint,
		MintQuote:  pool.TokenBMint,
		Symbol:     pool.SymbolBase,
		PriceUSD:   pool.PriceUSD,
		LiqUSD:     pool.TVLUSD,
		Vol24hUSD:  pool.Volume24hUSD,
		SpreadPct:  pool.SpreadPct,
		Impact1Pct: pool.Impact1Pct,
		AgeHours:   pool.AgeHours,
		Route:      pool.Route,
		Bars:       make(map[string]model.OHLCVBar),
		Timestamp:  s.now().UTC(),
	}
	for _, interval := range barIntervals {
		if bar, ok := s.agg.CurrentBar(pool.PoolID, interval); ok {
			u.Bars[bar.IntervalLabel()] = bar.OHLCVBar
		}
	}
	return u
}

func (s *Service) persistSnapshot(ctx context.Context) error {
	pools := s.cache.All()
	if len(pools) == 0 {
		return nil
	}
	if err := s.store.SavePoolSnapshot(ctx, pools); err != nil {
		return fmt.Errorf("save pool snapshot: %w", err)
	}
	log.Info().Int("pools", len(pools)).Float64("cache_hit_rate", s.cache.HitRate()).Msg("pool snapshot saved")
	return nil
}

func (s *Service) finalSnapshot(ctx context.Context) error {
	if bars := s.agg.Flush(); len(bars) > 0 {
		if err := s.store.SaveBars(ctx, bars); err != nil {
			return fmt.Errorf("persist flushed bars: %w", err)
		}
	}
	return s.persistSnapshot(ctx)
}
