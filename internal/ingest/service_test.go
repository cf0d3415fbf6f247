package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

type fakeSource struct {
	pools []model.PoolInfo
	err   error
}

func (s *fakeSource) FetchPools(context.Context) ([]model.PoolInfo, error) {
	return s.pools, s.err
}

type memSnapshots struct {
	snapshots [][]model.PoolInfo
	bars      [][]Bar
}

func (m *memSnapshots) SavePoolSnapshot(_ context.Context, pools []model.PoolInfo) error {
	m.snapshots = append(m.snapshots, pools)
	return nil
}

func (m *memSnapshots) SaveBars(_ context.Context, bars []Bar) error {
	m.bars = append(m.bars, bars)
	return nil
}

func richPool(id string, tvl, vol float64) model.PoolInfo {
	return model.PoolInfo{
		PoolID:       id,
		Dex:          "raydium",
		TokenAMint:   "mint" + id,
		TokenBMint:   "So11111111111111111111111111111111111111112",
		SymbolBase:   "TOK" + id,
		PriceUSD:     1.5,
		TVLUSD:       tvl,
		Volume24hUSD: vol,
		SpreadPct:    0.4,
		Impact1Pct:   0.2,
		AgeHours:     100,
		Route:        model.RouteInfo{OK: true, Hops: 2, DeviationPct: 0.1},
	}
}

func newTestIngestor(pools ...model.PoolInfo) (*Service, *bus.MemoryBus, *memSnapshots) {
	cfg := config.Default()
	b := bus.NewMemory()
	store := &memSnapshots{}
	s := NewService(cfg, b, &fakeSource{pools: pools}, store)
	fixed := time.Date(2026, 8, 24, 12, 1, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.agg.now = s.now
	return s, b, store
}

func TestTickPublishesRetainedPools(t *testing.T) {
	s, b, _ := newTestIngestor(
		richPool("a", 100000, 10000), // retained on TVL
		richPool("b", 1000, 80000),   // retained on volume
		richPool("c", 1000, 1000),    // below both thresholds
	)

	require.NoError(t, s.Tick(context.Background()))
	require.Equal(t, 2, b.Len(s.cfg.StreamMarket))

	var u model.MarketUpdate
	require.NoError(t, json.Unmarshal(b.Entry(s.cfg.StreamMarket, 0), &u))
	assert.Equal(t, "a", u.PoolID)
	assert.Equal(t, "minta", u.MintBase)
	assert.Equal(t, "TOKa", u.Symbol)
	assert.Equal(t, 100000.0, u.LiqUSD)
	assert.NotEmpty(t, u.ID)
	assert.True(t, u.Route.OK)
}

func TestTickAttachesCurrentBars(t *testing.T) {
	s, b, _ := newTestIngestor(richPool("a", 100000, 10000))

	require.NoError(t, s.Tick(context.Background()))

	var u model.MarketUpdate
	require.NoError(t, json.Unmarshal(b.Entry(s.cfg.StreamMarket, 0), &u))
	bar, ok := u.Bar("5m")
	require.True(t, ok, "the tick's own price point seeds the 5m bar")
	assert.Equal(t, 1.5, bar.Close)
	_, ok = u.Bar("15m")
	assert.True(t, ok)
}

func TestTickCachesRetainedPools(t *testing.T) {
	s, _, _ := newTestIngestor(richPool("a", 100000, 10000), richPool("c", 1, 1))

	require.NoError(t, s.Tick(context.Background()))

	_, ok := s.cache.Get("a")
	assert.True(t, ok)
	_, ok = s.cache.Get("c")
	assert.False(t, ok, "filtered pool never cached")
}

func TestTickPropagatesFetchFailure(t *testing.T) {
	cfg := config.Default()
	s := NewService(cfg, bus.NewMemory(), &fakeSource{err: errors.New("dex down")}, &memSnapshots{})

	err := s.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch pools")
}

func TestPersistSnapshotSavesCachedPools(t *testing.T) {
	s, _, store := newTestIngestor(richPool("a", 100000, 10000))
	ctx := context.Background()

	require.NoError(t, s.persistSnapshot(ctx), "empty cache persists nothing")
	assert.Empty(t, store.snapshots)

	require.NoError(t, s.Tick(ctx))
	require.NoError(t, s.persistSnapshot(ctx))
	require.Len(t, store.snapshots, 1)
	assert.Equal(t, "a", store.snapshots[0][0].PoolID)
}

func TestFinalSnapshotFlushesPartialBars(t *testing.T) {
	s, _, store := newTestIngestor(richPool("a", 100000, 10000))
	ctx := context.Background()

	require.NoError(t, s.Tick(ctx))
	require.NoError(t, s.finalSnapshot(ctx))

	require.NotEmpty(t, store.bars, "partial bars flushed on shutdown")
	require.Len(t, store.snapshots, 1)
}

func TestRetainThresholds(t *testing.T) {
	s, _, _ := newTestIngestor()

	assert.True(t, s.retain(richPool("x", 25000, 0)))
	assert.True(t, s.retain(richPool("x", 0, 50000)))
	assert.False(t, s.retain(richPool("x", 24999, 49999)))
}
