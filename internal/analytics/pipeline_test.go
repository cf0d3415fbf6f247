package analytics

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

type fakeStore struct {
	meta map[string]*model.TokenMetadata
	list map[string]struct{}
}

func (s *fakeStore) TokenMetadata(_ context.Context, mint string) (*model.TokenMetadata, error) {
	return s.meta[mint], nil
}

func (s *fakeStore) TokenListMints(context.Context) (map[string]struct{}, error) {
	return s.list, nil
}

func newTestPipeline() (*Pipeline, *bus.MemoryBus, *fakeStore) {
	cfg := config.Default()
	b := bus.NewMemory()
	store := &fakeStore{meta: map[string]*model.TokenMetadata{}, list: map[string]struct{}{}}
	return NewPipeline(cfg, b, store), b, store
}

func TestPipelineCleanActionableEmitsOneAlert(t *testing.T) {
	p, b, _ := newTestPipeline()
	ctx := context.Background()
	u := cleanUpdate()

	p.Process(ctx, u)

	require.Equal(t, 1, b.Len(p.cfg.StreamAlerts), "exactly one alert published")

	var alert model.Alert
	require.NoError(t, json.Unmarshal(b.Entry(p.cfg.StreamAlerts, 0), &alert))
	assert.Equal(t, model.BandActionable, alert.Severity)
	assert.Equal(t, "A", alert.Mint)
	assert.Equal(t, 76, alert.Confidence)
	assert.NotEmpty(t, alert.Lines)

	res, ok := p.CachedSignals("A")
	require.True(t, ok)
	assert.True(t, res.EntryConfirmed)
	assert.True(t, res.NetEdgeOK)
	assert.GreaterOrEqual(t, res.Confidence, 70)

	assert.True(t, p.Throttle().ShouldThrottle("A", model.BandActionable),
		"same mint throttled immediately after the publish")

	// A repeat of the same update inside the cooldown emits nothing new.
	p.Process(ctx, cleanUpdate())
	assert.Equal(t, 1, b.Len(p.cfg.StreamAlerts))
}

func TestPipelineYoungRiskyStaysSilent(t *testing.T) {
	p, b, store := newTestPipeline()
	u := cleanUpdate()
	u.AgeHours = 24
	store.meta["A"] = &model.TokenMetadata{
		Mint: "A", TopHolderPct: 30, RiskyAuthorities: true,
	}

	p.Process(context.Background(), u)

	assert.Zero(t, b.Len(p.cfg.StreamAlerts), "young risky token must not alert")
	res, ok := p.CachedSignals("A")
	require.True(t, ok)
	assert.LessOrEqual(t, res.Confidence, 65)
	assert.Equal(t, model.BandWatch, res.Band)
	assert.False(t, res.EntryConfirmed)
}

func TestPipelineSolUpdateMovesRegimeOnly(t *testing.T) {
	p, b, _ := newTestPipeline()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u := cleanUpdate()
		u.MintBase = p.cfg.SolMint
		u.PriceUSD = 100 + float64(i*10)
		u.Bars["15m"] = model.OHLCVBar{Open: 100, Close: 105, High: 106, Low: 99}
		p.Process(ctx, u)
	}

	assert.True(t, p.Regime().IsRiskOn())
	assert.Zero(t, b.Len(p.cfg.StreamAlerts), "reference mint is never scored")
	_, ok := p.CachedSignals(p.cfg.SolMint)
	assert.False(t, ok)
}

func TestPipelineRiskOffBoostPushesBorderlineOverThreshold(t *testing.T) {
	p, _, _ := newTestPipeline()

	// With default config the clean update lands at 66 before adjustment
	// and the risk-off regime adds 10.
	res, ok := func() (model.SignalResult, bool) {
		p.Process(context.Background(), cleanUpdate())
		return p.CachedSignals("A")
	}()
	require.True(t, ok)
	assert.Equal(t, 76, res.Confidence)
}

func TestPipelineUpdateCacheServesSignalsCommand(t *testing.T) {
	p, _, _ := newTestPipeline()
	ctx := context.Background()

	p.Process(ctx, cleanUpdate())

	res, ok := p.SignalsFor(ctx, "A")
	require.True(t, ok)
	assert.Equal(t, model.BandActionable, res.Band)

	_, ok = p.SignalsFor(ctx, "unknown-mint")
	assert.False(t, ok)
}

func TestPipelineCachesStayBoundedUnderSweep(t *testing.T) {
	p, _, _ := newTestPipeline()
	ctx := context.Background()

	// Drive enough inserts to trigger several sweeps; all entries are
	// fresh so nothing is evicted, but sizes stay at one per mint.
	for i := 0; i < 250; i++ {
		u := cleanUpdate()
		p.Process(ctx, u)
	}
	updates, _, signals := p.CacheSizes()
	assert.Equal(t, 1, updates)
	assert.Equal(t, 1, signals)
}

func TestResponderSignalsCommand(t *testing.T) {
	p, b, _ := newTestPipeline()
	ctx := context.Background()
	p.Process(ctx, cleanUpdate())

	r := NewResponder(p.cfg, b, p)

	reply, handled := r.Handle(ctx, &model.CommandRequest{
		Cmd: "signals", Args: map[string]string{"mint": "A"}, CorrID: "c-1",
	})
	require.True(t, handled)
	assert.True(t, reply.OK)
	assert.Equal(t, "c-1", reply.CorrID)
	assert.Equal(t, 76, reply.Data["confidence"])
	assert.Equal(t, "actionable", reply.Data["band"])

	reply, handled = r.Handle(ctx, &model.CommandRequest{
		Cmd: "signals", Args: map[string]string{"mint": "nope"}, CorrID: "c-2",
	})
	require.True(t, handled)
	assert.False(t, reply.OK)

	_, handled = r.Handle(ctx, &model.CommandRequest{Cmd: "balance", CorrID: "c-3"})
	assert.False(t, handled, "portfolio commands belong to another service")
}

func TestResponderHealthCommand(t *testing.T) {
	p, b, _ := newTestPipeline()
	r := NewResponder(p.cfg, b, p)

	reply, handled := r.Handle(context.Background(), &model.CommandRequest{Cmd: "health", CorrID: "c-h"})
	require.True(t, handled)
	assert.True(t, reply.OK)
	assert.Contains(t, reply.Message, "bus up")
}
