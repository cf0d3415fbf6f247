package analytics

import (
	"math"

	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

// signalWeights for S1..S10, summing to 1.0. S7 rug risk carries the most
// weight because a safe pool is worth more than a fast one.
var signalWeights = [10]float64{0.15, 0.15, 0.10, 0.10, 0.05, 0.05, 0.20, 0.10, 0.05, 0.05}

// Scorer folds sub-signals into a single confidence and classifies bands.
type Scorer struct {
	cfg config.Thresholds
}

// NewScorer builds a scorer over the configured thresholds.
func NewScorer(cfg config.Thresholds) *Scorer {
	return &Scorer{cfg: cfg}
}

// Confidence computes the 0..100 confidence from a signal result. Low data
// quality short-circuits to a capped score, missing hygiene subtracts a
// penalty, and a risky S7 caps the ceiling.
func (s *Scorer) Confidence(res *model.SignalResult) int {
	if res.DataQuality < s.cfg.MinDQForActionable {
		return int(math.Min(50, math.Round(res.DataQuality*100)))
	}

	signals := [10]float64{
		res.S1Liquidity, res.S2Volume, res.S3Momentum1h, res.S4Momentum24h,
		res.S5Volatility, res.S6PriceDiscovery, res.S7RugRisk, res.S8Tradability,
		res.S9RelativeStrength, res.S10RouteQuality,
	}
	sum := 0.0
	for i, v := range signals {
		sum += signalWeights[i] * v
	}
	conf := int(math.Round(sum * 100))

	if res.N1Hygiene < 0.5 {
		conf -= s.cfg.HygienePenalty
	}
	if res.S7RugRisk < 0.5 && conf > s.cfg.MaxRugCap {
		conf = s.cfg.MaxRugCap
	}
	return clampConfidence(conf)
}

// ApplyRiskAdjustment shifts confidence by the regime adjustment and
// re-clamps.
func (s *Scorer) ApplyRiskAdjustment(confidence int, riskOn bool) int {
	if riskOn {
		confidence += s.cfg.RiskOnAdj
	} else {
		confidence += s.cfg.RiskOffAdj
	}
	return clampConfidence(confidence)
}

// DetermineBand is a pure function of the (confidence, gates) triple. A
// failed entry or edge gate forces watch regardless of confidence.
func (s *Scorer) DetermineBand(confidence int, entryConfirmed, netEdgeOK bool) model.Band {
	if !entryConfirmed || !netEdgeOK {
		return model.BandWatch
	}
	switch {
	case confidence >= s.cfg.HighConvictionMin:
		return model.BandHighConviction
	case confidence >= s.cfg.ActionableBaseThreshold:
		return model.BandActionable
	case confidence >= s.cfg.HeadsUpMin && confidence <= s.cfg.HeadsUpMax:
		return model.BandHeadsUp
	default:
		return model.BandWatch
	}
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
