package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

func strongSignals() model.SignalResult {
	return model.SignalResult{
		S1Liquidity: 0.82, S2Volume: 0.8333, S3Momentum1h: 0.86, S4Momentum24h: 0.9,
		S5Volatility: 1.0, S6PriceDiscovery: 0.8133, S7RugRisk: 0.5, S8Tradability: 0.8,
		S9RelativeStrength: 0.7, S10RouteQuality: 0.675,
		N1Hygiene: 0, DataQuality: 1.0,
	}
}

func TestConfidenceWeightedSumWithHygienePenalty(t *testing.T) {
	s := NewScorer(config.Default().Thresholds)
	res := strongSignals()
	// Weighted sum lands at 76; missing hygiene subtracts 10.
	assert.Equal(t, 66, s.Confidence(&res))

	res.N1Hygiene = 1
	assert.Equal(t, 76, s.Confidence(&res))
}

func TestConfidenceLowDataQualityShortCircuits(t *testing.T) {
	s := NewScorer(config.Default().Thresholds)

	res := strongSignals()
	res.DataQuality = 0.6
	assert.Equal(t, 50, s.Confidence(&res), "strong signals cannot rescue weak data")

	res.DataQuality = 0.3
	assert.Equal(t, 30, s.Confidence(&res))
}

func TestConfidenceRugCap(t *testing.T) {
	s := NewScorer(config.Default().Thresholds)
	res := strongSignals()
	res.N1Hygiene = 1
	res.S7RugRisk = 0.1
	got := s.Confidence(&res)
	assert.LessOrEqual(t, got, 55, "risky S7 caps confidence")
}

func TestRiskAdjustmentAndClamping(t *testing.T) {
	s := NewScorer(config.Default().Thresholds)
	assert.Equal(t, 40, s.ApplyRiskAdjustment(50, true))
	assert.Equal(t, 60, s.ApplyRiskAdjustment(50, false))
	assert.Equal(t, 0, s.ApplyRiskAdjustment(3, true))
	assert.Equal(t, 100, s.ApplyRiskAdjustment(97, false))
}

func TestDetermineBand(t *testing.T) {
	s := NewScorer(config.Default().Thresholds)

	assert.Equal(t, model.BandWatch, s.DetermineBand(95, false, true))
	assert.Equal(t, model.BandWatch, s.DetermineBand(95, true, false))
	assert.Equal(t, model.BandHighConviction, s.DetermineBand(85, true, true))
	assert.Equal(t, model.BandActionable, s.DetermineBand(70, true, true))
	assert.Equal(t, model.BandActionable, s.DetermineBand(84, true, true))
	assert.Equal(t, model.BandHeadsUp, s.DetermineBand(60, true, true))
	assert.Equal(t, model.BandHeadsUp, s.DetermineBand(69, true, true))
	assert.Equal(t, model.BandWatch, s.DetermineBand(59, true, true))
}

func TestDetermineBandIsPure(t *testing.T) {
	s := NewScorer(config.Default().Thresholds)
	for i := 0; i < 5; i++ {
		assert.Equal(t, s.DetermineBand(72, true, true), s.DetermineBand(72, true, true))
	}
}

func TestConfidenceAlwaysInRange(t *testing.T) {
	s := NewScorer(config.Default().Thresholds)
	extremes := []model.SignalResult{
		{},
		{DataQuality: 1, S1Liquidity: 1, S2Volume: 1, S3Momentum1h: 1, S4Momentum24h: 1,
			S5Volatility: 1, S6PriceDiscovery: 1, S7RugRisk: 1, S8Tradability: 1,
			S9RelativeStrength: 1, S10RouteQuality: 1, N1Hygiene: 1},
	}
	for _, res := range extremes {
		c := s.Confidence(&res)
		assert.GreaterOrEqual(t, c, 0)
		assert.LessOrEqual(t, c, 100)
	}
}
