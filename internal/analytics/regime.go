package analytics

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/config"
)

type regimePoint struct {
	solPrice    float64
	change24Pct float64
	at          time.Time
}

// RegimeDetector classifies the market as risk-on or risk-off from a
// sliding 24h window of SOL observations. Risk-off is the default until at
// least three points exist.
type RegimeDetector struct {
	cfg config.Thresholds
	now func() time.Time

	mu     sync.Mutex
	points []regimePoint
	riskOn bool
}

// NewRegimeDetector starts in risk-off.
func NewRegimeDetector(cfg config.Thresholds) *RegimeDetector {
	return &RegimeDetector{cfg: cfg, now: time.Now}
}

// IsRiskOn reports the current classification.
func (d *RegimeDetector) IsRiskOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.riskOn
}

// String renders the regime for command replies.
func (d *RegimeDetector) String() string {
	if d.IsRiskOn() {
		return "RISK-ON"
	}
	return "RISK-OFF"
}

// Update records one SOL observation, drops points older than 24h, and
// reclassifies. Risk-on requires both the average 24h change and the price
// momentum against the window average to clear their thresholds.
func (d *RegimeDetector) Update(solPrice, sol24hChangePct float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.points = append(d.points, regimePoint{solPrice: solPrice, change24Pct: sol24hChangePct, at: now})

	kept := d.points[:0]
	for _, p := range d.points {
		if now.Sub(p.at) <= 24*time.Hour {
			kept = append(kept, p)
		}
	}
	d.points = kept

	if len(d.points) < 3 {
		d.riskOn = false
		return
	}

	avgChange := 0.0
	for _, p := range d.points {
		avgChange += p.change24Pct
	}
	avgChange /= float64(len(d.points))

	// Momentum of the latest price against the average of the earlier
	// points in the window.
	current := d.points[len(d.points)-1].solPrice
	avgPrice := 0.0
	for _, p := range d.points[:len(d.points)-1] {
		avgPrice += p.solPrice
	}
	avgPrice /= float64(len(d.points) - 1)
	momentum := (current/avgPrice - 1) * 100

	riskOn := avgChange > d.cfg.RiskOnSolChangeThreshold && momentum > d.cfg.RiskOnMomentumThreshold
	if riskOn != d.riskOn {
		log.Info().
			Bool("risk_on", riskOn).
			Float64("avg_change_pct", avgChange).
			Float64("momentum_pct", momentum).
			Msg("risk regime changed")
	}
	d.riskOn = riskOn
}
