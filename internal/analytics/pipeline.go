// Package analytics turns raw market updates into scored signals and
// throttled alerts. A single worker drains a bounded queue so all scoring
// state is touched from one goroutine.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/metrics"
	"github.com/soulscout/soulscout/internal/model"
)

// MetadataStore is the slice of the data store the pipeline needs.
type MetadataStore interface {
	TokenMetadata(ctx context.Context, mint string) (*model.TokenMetadata, error)
	TokenListMints(ctx context.Context) (map[string]struct{}, error)
}

type cachedUpdate struct {
	update   model.MarketUpdate
	cachedAt time.Time
}

type cachedMeta struct {
	meta     *model.TokenMetadata
	cachedAt time.Time
}

// Pipeline owns the queue, the caches and the scoring chain for one
// analytics process.
type Pipeline struct {
	cfg      config.Config
	b        bus.Bus
	store    MetadataStore
	calc     *SignalCalculator
	scorer   *Scorer
	gate     *EntryGate
	regime   *RegimeDetector
	throttle *AlertThrottle
	now      func() time.Time

	queue chan *model.MarketUpdate

	mu          sync.Mutex
	updates     map[string]cachedUpdate
	meta        map[string]cachedMeta
	signals     map[string]model.SignalResult
	tokenList   TokenListSet
	tokenListAt time.Time
	inserts     int
}

// NewPipeline wires the scoring chain over one bus and store.
func NewPipeline(cfg config.Config, b bus.Bus, store MetadataStore) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		b:        b,
		store:    store,
		calc:     NewSignalCalculator(cfg.Thresholds),
		scorer:   NewScorer(cfg.Thresholds),
		gate:     NewEntryGate(cfg.Thresholds),
		regime:   NewRegimeDetector(cfg.Thresholds),
		throttle: NewAlertThrottle(cfg.Throttle),
		now:      time.Now,
		queue:    make(chan *model.MarketUpdate, cfg.Analytics.QueueCapacity),
		updates:  make(map[string]cachedUpdate),
		meta:     make(map[string]cachedMeta),
		signals:  make(map[string]model.SignalResult),
	}
}

// Regime exposes the detector for the command responder.
func (p *Pipeline) Regime() *RegimeDetector { return p.regime }

// Throttle exposes the throttle for the command responder.
func (p *Pipeline) Throttle() *AlertThrottle { return p.throttle }

// Run consumes the market stream and drains the queue until ctx is done.
// The consume handler blocks when the queue is full, which stops reads
// from the stream and gives natural back-pressure.
func (p *Pipeline) Run(ctx context.Context, consumer string) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.worker(ctx)
	}()

	err := p.b.Consume(ctx, p.cfg.StreamMarket, "analytics", consumer, func(ctx context.Context, msg *bus.Message) error {
		var u model.MarketUpdate
		if jerr := json.Unmarshal(msg.Data, &u); jerr != nil {
			log.Warn().Err(jerr).Str("id", msg.ID).Msg("dropping unparseable market update")
			return nil
		}
		select {
		case p.queue <- &u:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	wg.Wait()
	return err
}

func (p *Pipeline) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case u := <-p.queue:
					p.Process(context.Background(), u)
				default:
					return
				}
			}
		case u := <-p.queue:
			p.Process(ctx, u)
		}
	}
}

// Process scores one update and decides whether to emit an alert. Exported
// so the command responder can score on demand.
func (p *Pipeline) Process(ctx context.Context, u *model.MarketUpdate) {
	metrics.UpdatesProcessed.Inc()

	if u.MintBase == p.cfg.SolMint {
		// Reference-mint updates only move the regime window. The 24h
		// change is approximated from the 15m bar.
		change := 0.0
		if bar, ok := u.Bar("15m"); ok {
			change = momentumPct(bar)
		}
		p.regime.Update(u.PriceUSD, change)
		return
	}

	p.cacheUpdate(u)

	meta, err := p.resolveMetadata(ctx, u.MintBase)
	if err != nil {
		log.Warn().Err(err).Str("mint", u.MintBase).Msg("metadata lookup failed, scoring without it")
	}
	list, err := p.resolveTokenList(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("token list lookup failed, treating as empty")
		list = TokenListSet{}
	}

	res := p.score(u, meta, list)
	p.cacheSignals(u.MintBase, res)
	p.emitAlert(ctx, u, &res)
}

func (p *Pipeline) score(u *model.MarketUpdate, meta *model.TokenMetadata, list TokenListSet) model.SignalResult {
	res := p.calc.Calculate(u, meta, list)
	res.Confidence = p.scorer.Confidence(&res)
	res.Confidence = p.scorer.ApplyRiskAdjustment(res.Confidence, p.regime.IsRiskOn())
	res.EntryConfirmed = p.gate.CheckEntryConditions(u, &res, res.Confidence)
	res.NetEdgeOK = p.gate.CheckNetEdge(u)
	res.Band = p.scorer.DetermineBand(res.Confidence, res.EntryConfirmed, res.NetEdgeOK)
	res.CachedAt = p.now()
	return res
}

func (p *Pipeline) emitAlert(ctx context.Context, u *model.MarketUpdate, res *model.SignalResult) {
	if res.Band == model.BandWatch {
		return
	}
	if p.throttle.ShouldThrottle(u.MintBase, res.Band) {
		log.Debug().Str("mint", u.MintBase).Str("band", string(res.Band)).Msg("alert throttled")
		return
	}

	alert := model.Alert{
		Severity:     res.Band,
		Mint:         u.MintBase,
		Symbol:       u.Symbol,
		Price:        u.PriceUSD,
		Confidence:   res.Confidence,
		Lines:        res.Reasons,
		EstImpactPct: u.Impact1Pct,
		Timestamp:    p.now().UTC(),
	}
	if u.Route.OK {
		alert.SolPath = fmt.Sprintf("%d-hop route, dev %.2f%%", u.Route.Hops, u.Route.DeviationPct)
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		log.Error().Err(err).Str("mint", u.MintBase).Msg("marshal alert")
		return
	}
	if err := p.b.Publish(ctx, p.cfg.StreamAlerts, uuid.NewString(), payload); err != nil {
		log.Error().Err(err).Str("mint", u.MintBase).Msg("publish alert")
		return
	}
	p.throttle.RecordAlert(u.MintBase, res.Band)
	metrics.AlertsEmitted.WithLabelValues(string(res.Band)).Inc()
	log.Info().
		Str("mint", u.MintBase).
		Str("symbol", u.Symbol).
		Str("band", string(res.Band)).
		Int("confidence", res.Confidence).
		Msg("alert published")
}

func (p *Pipeline) cacheUpdate(u *model.MarketUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates[u.MintBase] = cachedUpdate{update: *u, cachedAt: p.now()}
	p.inserts++
	if p.inserts%p.cfg.Analytics.CacheSweepEvery == 0 {
		p.sweepLocked()
	}
}

// CachedUpdate returns the freshest cached update for a mint, if its TTL
// has not lapsed.
func (p *Pipeline) CachedUpdate(mint string) (*model.MarketUpdate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.updates[mint]
	if !ok || p.now().Sub(e.cachedAt) > p.updateTTL() {
		return nil, false
	}
	u := e.update
	return &u, true
}

// CachedSignals returns the most recent score for a mint within TTL.
func (p *Pipeline) CachedSignals(mint string) (model.SignalResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.signals[mint]
	if !ok || p.now().Sub(res.CachedAt) > p.signalTTL() {
		return model.SignalResult{}, false
	}
	return res, true
}

func (p *Pipeline) cacheSignals(mint string, res model.SignalResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals[mint] = res
}

func (p *Pipeline) resolveMetadata(ctx context.Context, mint string) (*model.TokenMetadata, error) {
	p.mu.Lock()
	if e, ok := p.meta[mint]; ok && p.now().Sub(e.cachedAt) <= p.metaTTL() {
		p.mu.Unlock()
		return e.meta, nil
	}
	p.mu.Unlock()

	meta, err := p.store.TokenMetadata(ctx, mint)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.meta[mint] = cachedMeta{meta: meta, cachedAt: p.now()}
	p.mu.Unlock()
	return meta, nil
}

func (p *Pipeline) resolveTokenList(ctx context.Context) (TokenListSet, error) {
	p.mu.Lock()
	if p.tokenList != nil && p.now().Sub(p.tokenListAt) <= p.metaTTL() {
		list := p.tokenList
		p.mu.Unlock()
		return list, nil
	}
	p.mu.Unlock()

	mints, err := p.store.TokenListMints(ctx)
	if err != nil {
		return nil, err
	}
	list := TokenListSet(mints)
	p.mu.Lock()
	p.tokenList = list
	p.tokenListAt = p.now()
	p.mu.Unlock()
	return list, nil
}

// sweepLocked drops cache entries past their TTL. Caller holds the mutex.
func (p *Pipeline) sweepLocked() {
	now := p.now()
	for mint, e := range p.updates {
		if now.Sub(e.cachedAt) > p.updateTTL() {
			delete(p.updates, mint)
		}
	}
	for mint, e := range p.meta {
		if now.Sub(e.cachedAt) > p.metaTTL() {
			delete(p.meta, mint)
		}
	}
	for mint, res := range p.signals {
		if now.Sub(res.CachedAt) > p.signalTTL() {
			delete(p.signals, mint)
		}
	}
}

// SignalsFor returns the score for a mint: the cached result when fresh,
// otherwise a recomputation from the cached market update. The second
// return is false when no usable update exists.
func (p *Pipeline) SignalsFor(ctx context.Context, mint string) (model.SignalResult, bool) {
	if res, ok := p.CachedSignals(mint); ok {
		return res, true
	}
	u, ok := p.CachedUpdate(mint)
	if !ok {
		return model.SignalResult{}, false
	}
	meta, err := p.resolveMetadata(ctx, mint)
	if err != nil {
		log.Warn().Err(err).Str("mint", mint).Msg("metadata lookup failed, scoring without it")
	}
	list, err := p.resolveTokenList(ctx)
	if err != nil {
		list = TokenListSet{}
	}
	res := p.score(u, meta, list)
	p.cacheSignals(mint, res)
	return res, true
}

// QueueDepth reports how many updates await the worker.
func (p *Pipeline) QueueDepth() int { return len(p.queue) }

// CacheSizes reports entry counts, a test and diagnostics convenience.
func (p *Pipeline) CacheSizes() (updates, meta, signals int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates), len(p.meta), len(p.signals)
}

func (p *Pipeline) updateTTL() time.Duration {
	return time.Duration(p.cfg.Analytics.UpdateCacheTTLMin) * time.Minute
}

func (p *Pipeline) metaTTL() time.Duration {
	return time.Duration(p.cfg.Analytics.MetadataCacheTTLMin) * time.Minute
}

func (p *Pipeline) signalTTL() time.Duration {
	return time.Duration(p.cfg.Analytics.SignalCacheTTLMin) * time.Minute
}
