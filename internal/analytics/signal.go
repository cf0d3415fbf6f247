package analytics

import (
	"fmt"
	"math"

	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

// TokenListSet is the set of mints on a widely mirrored token list.
type TokenListSet map[string]struct{}

// Contains reports membership.
func (s TokenListSet) Contains(mint string) bool {
	_, ok := s[mint]
	return ok
}

// SignalCalculator derives the eleven normalized sub-signals and the data
// quality factor from one market update. It is a pure computation: no I/O,
// no failure, everything clamps to [0,1].
type SignalCalculator struct {
	cfg config.Thresholds
}

// NewSignalCalculator builds a calculator over the configured breakpoints.
func NewSignalCalculator(cfg config.Thresholds) *SignalCalculator {
	return &SignalCalculator{cfg: cfg}
}

// Calculate computes S1..S10, N1, the data-quality factor and the reason
// list. Confidence, band and the gate outcomes are filled in later by the
// scorer and entry gate.
func (c *SignalCalculator) Calculate(u *model.MarketUpdate, meta *model.TokenMetadata, list TokenListSet) model.SignalResult {
	res := model.SignalResult{
		S1Liquidity:        c.s1Liquidity(u),
		S2Volume:           c.s2Volume(u),
		S3Momentum1h:       c.s3Momentum1h(u),
		S4Momentum24h:      c.s4Momentum24h(u),
		S5Volatility:       c.s5Volatility(u),
		S7RugRisk:          c.s7RugRisk(u, meta),
		S8Tradability:      c.s8Tradability(u),
		S9RelativeStrength: c.s9RelativeStrength(),
		S10RouteQuality:    c.s10RouteQuality(u),
		N1Hygiene:          c.n1Hygiene(u.MintBase, list),
		DataQuality:        c.dataQuality(u),
	}
	res.S6PriceDiscovery = 0.4*res.S2Volume + 0.6*math.Min(res.S5Volatility, 0.8)
	res.Reasons = c.reasons(u, meta, &res)
	return res
}

// s1Liquidity: 0 below the heads-up floor, 0.5 at the actionable floor,
// 0.8 at $500k, 0.9 at $1M, 1.0 from $2M.
func (c *SignalCalculator) s1Liquidity(u *model.MarketUpdate) float64 {
	liq := u.LiqUSD
	switch {
	case liq <= 0:
		return 0
	case liq < c.cfg.MinLiquidityHeadsUp:
		return 0
	case liq < c.cfg.MinLiquidityActionable:
		return 0.3 + 0.2*(liq-c.cfg.MinLiquidityHeadsUp)/(c.cfg.MinLiquidityActionable-c.cfg.MinLiquidityHeadsUp)
	case liq < 500_000:
		return 0.5 + 0.3*(liq-c.cfg.MinLiquidityActionable)/(500_000-c.cfg.MinLiquidityActionable)
	case liq < 1_000_000:
		return 0.8 + 0.1*(liq-500_000)/500_000
	case liq < 2_000_000:
		return 0.9 + 0.1*(liq-1_000_000)/1_000_000
	default:
		return 1
	}
}

// s2Volume: 0 below the heads-up floor, 0.5 at the actionable floor,
// 0.8 at $2M, 0.9 at $5M, 1.0 from $10M.
func (c *SignalCalculator) s2Volume(u *model.MarketUpdate) float64 {
	vol := u.Vol24hUSD
	switch {
	case vol <= 0:
		return 0
	case vol < c.cfg.MinVolumeHeadsUp:
		return 0
	case vol < c.cfg.MinVolumeActionable:
		return 0.3 + 0.2*(vol-c.cfg.MinVolumeHeadsUp)/(c.cfg.MinVolumeActionable-c.cfg.MinVolumeHeadsUp)
	case vol < 2_000_000:
		return 0.5 + 0.3*(vol-c.cfg.MinVolumeActionable)/(2_000_000-c.cfg.MinVolumeActionable)
	case vol < 5_000_000:
		return 0.8 + 0.1*(vol-2_000_000)/3_000_000
	case vol < 10_000_000:
		return 0.9 + 0.1*(vol-5_000_000)/5_000_000
	default:
		return 1
	}
}

// momentumPct returns the close/open change of a bar as a percentage.
func momentumPct(bar model.OHLCVBar) float64 {
	if bar.Open == 0 {
		return 0
	}
	return (bar.Close/bar.Open - 1) * 100
}

// s3Momentum1h maps the "5m" bar momentum; neutral 0.5 when the bar is
// missing.
func (c *SignalCalculator) s3Momentum1h(u *model.MarketUpdate) float64 {
	bar, ok := u.Bar("5m")
	if !ok {
		return 0.5
	}
	m := momentumPct(bar)
	switch {
	case m <= -10:
		return 0
	case m <= -5:
		return 0.3 * (m + 10) / 5
	case m <= 0:
		return 0.3 + 0.2*(m+5)/5
	case m < c.cfg.MinM1hPct:
		return 0.5 + 0.2*m/c.cfg.MinM1hPct
	case m <= 6:
		return 0.7 + 0.2*(m-c.cfg.MinM1hPct)/(6-c.cfg.MinM1hPct)
	case m <= c.cfg.MaxM1hPct:
		return 0.9 + 0.1*(m-6)/(c.cfg.MaxM1hPct-6)
	default:
		return 1
	}
}

// s4Momentum24h maps the "15m" bar momentum with wider anchors; 0.5 when
// the bar is missing (momentum treated as flat).
func (c *SignalCalculator) s4Momentum24h(u *model.MarketUpdate) float64 {
	m := 0.0
	if bar, ok := u.Bar("15m"); ok {
		m = momentumPct(bar)
	}
	switch {
	case m <= -30:
		return 0
	case m <= -10:
		return 0.3 * (m + 30) / 20
	case m <= 0:
		return 0.3 + 0.2*(m+10)/10
	case m < c.cfg.MinM24hPct:
		return 0.5 + 0.2*m/c.cfg.MinM24hPct
	case m <= 20:
		return 0.7 + 0.2*(m-c.cfg.MinM24hPct)/(20-c.cfg.MinM24hPct)
	case m <= c.cfg.MaxM24hPct:
		return 0.9 + 0.1*(m-20)/(c.cfg.MaxM24hPct-20)
	default:
		return 1
	}
}

// s5Volatility maps (high-low)/low of the "15m" bar: 0.5 at 5%, 0.8 at
// 10%, 1.0 from 20%. Neutral 0.5 when the bar is missing.
func (c *SignalCalculator) s5Volatility(u *model.MarketUpdate) float64 {
	bar, ok := u.Bar("15m")
	if !ok || bar.Low <= 0 {
		return 0.5
	}
	v := (bar.High - bar.Low) / bar.Low * 100
	switch {
	case v <= 0:
		return 0
	case v <= 5:
		return 0.5 * v / 5
	case v <= 10:
		return 0.5 + 0.3*(v-5)/5
	case v <= 20:
		return 0.8 + 0.2*(v-10)/10
	default:
		return 1
	}
}

// s7RugRisk scores safety (higher is safer): base 0.7 scaled by age,
// holder concentration and the authority flag, capped at 0.9. Without
// metadata the score is a conservative 0.5.
func (c *SignalCalculator) s7RugRisk(u *model.MarketUpdate, meta *model.TokenMetadata) float64 {
	if meta == nil {
		return 0.5
	}
	ageFactor := math.Min(1, u.AgeHours/720) // 30 days
	holderFactor := 1.0
	if meta.TopHolderPct > 0 {
		holderFactor = math.Max(0, 1-meta.TopHolderPct/100)
	}
	authFactor := 1.0
	if meta.RiskyAuthorities {
		authFactor = 0.7
	}
	return math.Min(0.9, 0.7*ageFactor*holderFactor*authFactor)
}

// s8Tradability is 0 outside the spread/impact gates, otherwise a weighted
// blend of how far inside each gate the pool sits.
func (c *SignalCalculator) s8Tradability(u *model.MarketUpdate) float64 {
	if u.SpreadPct > c.cfg.MaxSpreadPct || u.Impact1Pct > c.cfg.MaxImpactPct {
		return 0
	}
	spreadScore := 1 - u.SpreadPct/c.cfg.MaxSpreadPct
	impactScore := 1 - u.Impact1Pct/c.cfg.MaxImpactPct
	return 0.4*spreadScore + 0.6*impactScore
}

// s9RelativeStrength is a pinned constant until a reference-basket feed
// exists to compute a true ratio against.
func (c *SignalCalculator) s9RelativeStrength() float64 {
	return 0.7
}

// s10RouteQuality is 0 for an invalid route, otherwise a weighted blend of
// hop count and price deviation.
func (c *SignalCalculator) s10RouteQuality(u *model.MarketUpdate) float64 {
	r := u.Route
	if !r.OK || r.Hops > c.cfg.MaxRouteHops || r.DeviationPct > c.cfg.MaxRouteDeviation {
		return 0
	}
	hopsScore := 1 - (float64(r.Hops)-1)/float64(c.cfg.MaxRouteHops-1)
	devScore := 1 - r.DeviationPct/c.cfg.MaxRouteDeviation
	return 0.3*hopsScore + 0.7*devScore
}

// n1Hygiene is 1 iff the mint is on the token list.
func (c *SignalCalculator) n1Hygiene(mint string, list TokenListSet) float64 {
	if list.Contains(mint) {
		return 1
	}
	return 0
}

// dataQuality starts at dq_start and loses a fixed penalty per missing or
// non-positive input, floored at 0.
func (c *SignalCalculator) dataQuality(u *model.MarketUpdate) float64 {
	dq := c.cfg.DQStart
	penalize := func(missing bool) {
		if missing {
			dq -= c.cfg.DQPenaltyPerMissing
		}
	}
	_, has5m := u.Bar("5m")
	_, has15m := u.Bar("15m")
	penalize(u.LiqUSD <= 0)
	penalize(u.Vol24hUSD <= 0)
	penalize(!has5m)
	penalize(!has15m)
	penalize(u.SpreadPct <= 0)
	penalize(u.Impact1Pct <= 0)
	return math.Max(0, dq)
}

// reasons builds the ordered human-readable reason list that rides on
// alerts and feeds the dedup fingerprint.
func (c *SignalCalculator) reasons(u *model.MarketUpdate, meta *model.TokenMetadata, res *model.SignalResult) []string {
	var out []string

	if u.LiqUSD >= c.cfg.MinLiquidityActionable {
		out = append(out, fmt.Sprintf("Liq $%.1fk", u.LiqUSD/1000))
	} else if u.LiqUSD >= c.cfg.MinLiquidityHeadsUp {
		out = append(out, fmt.Sprintf("Liq $%.1fk (low)", u.LiqUSD/1000))
	}

	if u.Vol24hUSD >= c.cfg.MinVolumeActionable {
		out = append(out, fmt.Sprintf("Vol24h $%.1fM", u.Vol24hUSD/1_000_000))
	} else if u.Vol24hUSD >= c.cfg.MinVolumeHeadsUp {
		out = append(out, fmt.Sprintf("Vol24h $%.1fk (low)", u.Vol24hUSD/1000))
	}

	if bar, ok := u.Bar("5m"); ok {
		m := momentumPct(bar)
		if m >= c.cfg.MinM1hPct {
			out = append(out, fmt.Sprintf("m1h +%.1f%%", m))
		} else if m <= -5 {
			out = append(out, fmt.Sprintf("m1h %.1f%%", m))
		}
	}
	if bar, ok := u.Bar("15m"); ok {
		m := momentumPct(bar)
		if m >= c.cfg.MinM24hPct {
			out = append(out, fmt.Sprintf("m24h +%.1f%%", m))
		} else if m <= -10 {
			out = append(out, fmt.Sprintf("m24h %.1f%%", m))
		}
	}

	if u.AgeHours < c.cfg.YoungTokenHours {
		out = append(out, fmt.Sprintf("age %.1fh (young)", u.AgeHours))
	} else {
		out = append(out, fmt.Sprintf("age %dd", int(u.AgeHours/24)))
	}

	if res.S8Tradability >= 0.8 {
		out = append(out, fmt.Sprintf("spread %.2f%%, impact %.2f%%", u.SpreadPct, u.Impact1Pct))
	} else if u.SpreadPct > c.cfg.MaxSpreadPct || u.Impact1Pct > c.cfg.MaxImpactPct {
		out = append(out, fmt.Sprintf("poor liquidity: spread %.2f%%, impact %.2f%%", u.SpreadPct, u.Impact1Pct))
	}

	if u.Route.OK && u.Route.Hops <= c.cfg.MaxRouteHops && u.Route.DeviationPct <= c.cfg.MaxRouteDeviation {
		out = append(out, fmt.Sprintf("route %d hops, dev %.2f%%", u.Route.Hops, u.Route.DeviationPct))
	} else {
		out = append(out, "route issues")
	}

	if meta != nil {
		if u.LiqUSD > 0 {
			// MarketUpdate carries no market-cap field; the ratio is a
			// best-effort placeholder until one exists.
			fdvLiq := 10.0
			switch {
			case fdvLiq > c.cfg.MaxFDVLiq:
				out = append(out, fmt.Sprintf("FDV/Liq %.1f (high)", fdvLiq))
			case fdvLiq < c.cfg.MinFDVLiq:
				out = append(out, fmt.Sprintf("FDV/Liq %.1f (low)", fdvLiq))
			case fdvLiq >= c.cfg.PreferredMinFDVLiq && fdvLiq <= c.cfg.PreferredMaxFDVLiq:
				out = append(out, fmt.Sprintf("FDV/Liq %.1f (good)", fdvLiq))
			}
		}
		if meta.TopHolderPct > c.cfg.MaxTopHolderPct {
			out = append(out, fmt.Sprintf("top holder %.1f%% (high)", meta.TopHolderPct))
		}
		if meta.RiskyAuthorities {
			out = append(out, "risky authorities")
		}
		if !meta.OnTokenList {
			out = append(out, "not on token list")
		}
	}

	if res.DataQuality < c.cfg.MinDQForActionable {
		out = append(out, fmt.Sprintf("DQ %.2f (low)", res.DataQuality))
	}

	return out
}
