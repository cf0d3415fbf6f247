package analytics

import (
	"math"

	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

// EntryGate applies the hard thresholds that separate advisory watch
// signals from entries worth acting on.
type EntryGate struct {
	cfg config.Thresholds
}

// NewEntryGate builds the gate over the configured thresholds.
func NewEntryGate(cfg config.Thresholds) *EntryGate {
	return &EntryGate{cfg: cfg}
}

// CheckEntryConditions is an AND of every hard gate. Confidence is needed
// only for the young-risky exception, which demands a higher bar when the
// token is younger than young_token_hours and S7 flags risk.
func (g *EntryGate) CheckEntryConditions(u *model.MarketUpdate, res *model.SignalResult, confidence int) bool {
	if u.AgeHours < g.cfg.MinAgeHours {
		return false
	}
	if u.LiqUSD < g.cfg.MinLiquidityActionable {
		return false
	}
	if u.Vol24hUSD < g.cfg.MinVolumeActionable {
		return false
	}
	if u.SpreadPct > g.cfg.MaxSpreadPct {
		return false
	}
	if u.Impact1Pct > g.cfg.MaxImpactPct {
		return false
	}
	if !u.Route.OK || u.Route.Hops > g.cfg.MaxRouteHops || u.Route.DeviationPct > g.cfg.MaxRouteDeviation {
		return false
	}

	bar5, ok := u.Bar("5m")
	if !ok {
		return false
	}
	m1h := momentumPct(bar5)
	if m1h < g.cfg.MinM1hPct || m1h > g.cfg.MaxM1hPct {
		return false
	}

	bar15, ok := u.Bar("15m")
	if !ok {
		return false
	}
	m24h := momentumPct(bar15)
	if m24h < g.cfg.MinM24hPct || m24h > g.cfg.MaxM24hPct {
		return false
	}

	if res.DataQuality < g.cfg.MinDQForActionable {
		return false
	}

	if u.AgeHours < g.cfg.YoungTokenHours && res.S7RugRisk < 0.5 && confidence < g.cfg.MinCYoungRisky {
		return false
	}
	return true
}

// CheckNetEdge estimates whether expected upside clears the round-trip
// cost by the configured safety factor.
func (g *EntryGate) CheckNetEdge(u *model.MarketUpdate) bool {
	upside := 0.0
	if bar, ok := u.Bar("5m"); ok {
		upside = math.Min(2*momentumPct(bar), g.cfg.MaxUpsideCap)
	}
	downside := 2*u.Impact1Pct + u.SpreadPct + g.cfg.LagPenalty
	return upside-g.cfg.NetEdgeKFactor*downside > 0
}
