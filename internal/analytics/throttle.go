package analytics

import (
	"sync"
	"time"

	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

type alertRecord struct {
	mint string
	band model.Band
	at   time.Time
}

// AlertThrottle bounds alert emission with per-mint cooldowns plus
// per-band and global caps within a sliding window. History never grows
// past the maximum configured cooldown.
type AlertThrottle struct {
	cfg config.ThrottleConfig
	now func() time.Time

	mu      sync.Mutex
	history []alertRecord
}

// NewAlertThrottle builds an empty throttle.
func NewAlertThrottle(cfg config.ThrottleConfig) *AlertThrottle {
	return &AlertThrottle{cfg: cfg, now: time.Now}
}

// ShouldThrottle reports whether an alert for (mint, band) must be
// suppressed right now.
func (t *AlertThrottle) ShouldThrottle(mint string, band model.Band) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cooldown := t.cooldown(band)
	window := time.Duration(t.cfg.RateLimitWindowMin) * time.Minute

	total := 0
	inBand := 0
	for _, r := range t.history {
		if r.mint == mint && now.Sub(r.at) < cooldown {
			return true
		}
		if now.Sub(r.at) < window {
			total++
			if r.band == band {
				inBand++
			}
		}
	}
	if total >= t.cfg.MaxAlertsPerWindow {
		return true
	}
	return inBand >= t.bandCap(band)
}

// RecordAlert appends a record and prunes everything older than the
// longest cooldown.
func (t *AlertThrottle) RecordAlert(mint string, band model.Band) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.history = append(t.history, alertRecord{mint: mint, band: band, at: now})

	max := t.maxCooldown()
	kept := t.history[:0]
	for _, r := range t.history {
		if now.Sub(r.at) <= max {
			kept = append(kept, r)
		}
	}
	t.history = kept
}

// HistoryLen reports how many records survive pruning.
func (t *AlertThrottle) HistoryLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history)
}

func (t *AlertThrottle) cooldown(band model.Band) time.Duration {
	minutes := t.cfg.CooldownWatchMin
	switch band {
	case model.BandHighConviction:
		minutes = t.cfg.CooldownHighConvictionMin
	case model.BandActionable:
		minutes = t.cfg.CooldownActionableMin
	case model.BandHeadsUp:
		minutes = t.cfg.CooldownHeadsUpMin
	}
	return time.Duration(minutes) * time.Minute
}

func (t *AlertThrottle) bandCap(band model.Band) int {
	switch band {
	case model.BandHighConviction:
		return t.cfg.MaxHighConvictionPerWindow
	case model.BandActionable:
		return t.cfg.MaxActionablePerWindow
	case model.BandHeadsUp:
		return t.cfg.MaxHeadsUpPerWindow
	default:
		return t.cfg.MaxWatchPerWindow
	}
}

func (t *AlertThrottle) maxCooldown() time.Duration {
	minutes := t.cfg.CooldownWatchMin
	for _, m := range []int{t.cfg.CooldownHighConvictionMin, t.cfg.CooldownActionableMin, t.cfg.CooldownHeadsUpMin} {
		if m > minutes {
			minutes = m
		}
	}
	return time.Duration(minutes) * time.Minute
}
