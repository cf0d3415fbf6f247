package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

func TestEntryConditionsCleanUpdatePasses(t *testing.T) {
	g := NewEntryGate(config.Default().Thresholds)
	u := cleanUpdate()
	res := &model.SignalResult{DataQuality: 1.0, S7RugRisk: 0.5}
	assert.True(t, g.CheckEntryConditions(u, res, 76))
}

func TestEntryConditionsEachGateRejects(t *testing.T) {
	g := NewEntryGate(config.Default().Thresholds)
	res := &model.SignalResult{DataQuality: 1.0, S7RugRisk: 0.5}

	mutations := map[string]func(*model.MarketUpdate){
		"too young":      func(u *model.MarketUpdate) { u.AgeHours = 10 },
		"thin liquidity": func(u *model.MarketUpdate) { u.LiqUSD = 100_000 },
		"thin volume":    func(u *model.MarketUpdate) { u.Vol24hUSD = 400_000 },
		"wide spread":    func(u *model.MarketUpdate) { u.SpreadPct = 3.0 },
		"deep impact":    func(u *model.MarketUpdate) { u.Impact1Pct = 2.0 },
		"bad route":      func(u *model.MarketUpdate) { u.Route.OK = false },
		"no 5m bar":      func(u *model.MarketUpdate) { delete(u.Bars, "5m") },
		"no 15m bar":     func(u *model.MarketUpdate) { delete(u.Bars, "15m") },
		"m1h too hot": func(u *model.MarketUpdate) {
			u.Bars["5m"] = model.OHLCVBar{Open: 1, Close: 1.20, High: 1.2, Low: 1}
		},
		"m24h negative": func(u *model.MarketUpdate) {
			u.Bars["15m"] = model.OHLCVBar{Open: 1, Close: 0.9, High: 1, Low: 0.9}
		},
	}
	for name, mutate := range mutations {
		u := cleanUpdate()
		mutate(u)
		assert.False(t, g.CheckEntryConditions(u, res, 76), name)
	}
}

func TestEntryConditionsLowDataQualityRejects(t *testing.T) {
	g := NewEntryGate(config.Default().Thresholds)
	u := cleanUpdate()
	res := &model.SignalResult{DataQuality: 0.5, S7RugRisk: 0.5}
	assert.False(t, g.CheckEntryConditions(u, res, 76))
}

func TestEntryConditionsYoungRiskyNeedsHigherConfidence(t *testing.T) {
	g := NewEntryGate(config.Default().Thresholds)
	u := cleanUpdate()
	u.AgeHours = 30 // past min age, still young
	res := &model.SignalResult{DataQuality: 1.0, S7RugRisk: 0.2}

	assert.False(t, g.CheckEntryConditions(u, res, 79))
	assert.True(t, g.CheckEntryConditions(u, res, 80))

	// Safe S7 skips the young-token exception.
	res.S7RugRisk = 0.6
	assert.True(t, g.CheckEntryConditions(u, res, 65))
}

func TestNetEdge(t *testing.T) {
	g := NewEntryGate(config.Default().Thresholds)

	u := cleanUpdate()
	// upside min(10, 15); downside 2*0.3+0.5+0.3 = 1.4; 10 - 2*1.4 > 0.
	assert.True(t, g.CheckNetEdge(u))

	costly := cleanUpdate()
	costly.Impact1Pct = 1.4
	costly.SpreadPct = 2.4
	// downside 2*1.4+2.4+0.3 = 5.5; 10 - 11 < 0.
	assert.False(t, g.CheckNetEdge(costly))

	noBar := cleanUpdate()
	delete(noBar.Bars, "5m")
	assert.False(t, g.CheckNetEdge(noBar), "no 5m bar means zero upside")
}
