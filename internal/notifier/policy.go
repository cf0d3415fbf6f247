// Package notifier gates inbound alerts through mute, global-throttle and
// dedup checks before forwarding them to the chat gateway. Every decision
// lands in a persistent audit log.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/metrics"
	"github.com/soulscout/soulscout/internal/model"
)

// Policy outcomes recorded in the audit log.
const (
	OutcomeSent          = "SENT"
	OutcomeMuted         = "MUTED"
	OutcomeThrottled     = "THROTTLED"
	OutcomeDuplicate     = "DUPLICATE"
	OutcomePublishFailed = "PUBLISH_FAILED"
)

const (
	muteKey           = "notifier:mute_status"
	globalThrottleKey = "notifier:global_throttle:actionable"
	dedupeKeyPrefix   = "notifier:dedupe"
)

// AuditEntry is one appended audit row.
type AuditEntry struct {
	Timestamp  time.Time
	Mint       string
	Symbol     string
	Severity   string
	Confidence int
	Outcome    string
	Details    string
	RawAlert   string
}

// AuditLog is the persistent append-only decision record.
type AuditLog interface {
	Append(ctx context.Context, e AuditEntry) error
	Healthy(ctx context.Context) bool
}

// Policy evaluates the gate chain for one inbound alert. When the bus is
// unreachable during a gate check the policy fails closed: silence over
// noise.
type Policy struct {
	cfg   config.Config
	b     bus.Bus
	audit AuditLog
	now   func() time.Time
}

// NewPolicy wires the gate chain.
func NewPolicy(cfg config.Config, b bus.Bus, audit AuditLog) *Policy {
	return &Policy{cfg: cfg, b: b, audit: audit, now: time.Now}
}

// HandleAlert runs the chain and returns the recorded outcome.
func (p *Policy) HandleAlert(ctx context.Context, alert *model.Alert) string {
	raw, _ := json.Marshal(alert)
	entry := AuditEntry{
		Timestamp:  p.now().UTC(),
		Mint:       alert.Mint,
		Symbol:     alert.Symbol,
		Severity:   string(alert.Severity),
		Confidence: alert.Confidence,
		RawAlert:   string(raw),
	}

	switch {
	case p.isMuted(ctx):
		entry.Outcome = OutcomeMuted
		entry.Details = "global mute is active"
	case p.isGloballyThrottled(ctx, alert.Severity):
		entry.Outcome = OutcomeThrottled
		entry.Details = "global throttle for actionable alerts is active"
	case p.isDuplicate(ctx, alert):
		entry.Outcome = OutcomeDuplicate
		entry.Details = fmt.Sprintf("duplicate alert within %ds", p.cfg.Notifier.DedupePeriodSec)
	default:
		entry.Outcome, entry.Details = p.forward(ctx, alert)
	}

	metrics.PolicyOutcomes.WithLabelValues(entry.Outcome).Inc()
	if err := p.audit.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("mint", alert.Mint).Msg("append audit entry")
	}
	return entry.Outcome
}

func (p *Policy) forward(ctx context.Context, alert *model.Alert) (outcome, details string) {
	outbound := model.OutboundAlert{
		To:        p.cfg.Notifier.TelegramChatID,
		Text:      FormatAlert(alert),
		Timestamp: p.now().UTC(),
		Meta: map[string]string{
			"severity": string(alert.Severity),
			"mint":     alert.Mint,
		},
	}
	payload, err := json.Marshal(outbound)
	if err != nil {
		return OutcomePublishFailed, fmt.Sprintf("marshal outbound alert: %v", err)
	}
	if err := p.b.Publish(ctx, p.cfg.StreamOutbound, "", payload); err != nil {
		log.Error().Err(err).Str("symbol", alert.Symbol).Msg("publish outbound alert")
		return OutcomePublishFailed, "failed to publish outbound alert"
	}
	if alert.Severity == model.BandActionable {
		p.recordActionable(ctx)
	}
	log.Info().Str("severity", string(alert.Severity)).Str("symbol", alert.Symbol).Msg("alert forwarded to gateway")
	return OutcomeSent, "alert sent to gateway"
}

func (p *Policy) isMuted(ctx context.Context) bool {
	muted, err := p.b.Exists(ctx, muteKey)
	if err != nil {
		// Fail closed.
		return true
	}
	return muted
}

func (p *Policy) isGloballyThrottled(ctx context.Context, severity model.Band) bool {
	if severity != model.BandActionable {
		return false
	}
	v, ok, err := p.b.Get(ctx, globalThrottleKey)
	if err != nil {
		return true
	}
	if !ok {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false
	}
	return n >= p.cfg.Notifier.GlobalThrottleLimit
}

func (p *Policy) isDuplicate(ctx context.Context, alert *model.Alert) bool {
	key := fmt.Sprintf("%s:%s:%s", dedupeKeyPrefix, alert.Mint, ReasonHash(alert.Lines))
	set, err := p.b.SetNX(ctx, key, "1", time.Duration(p.cfg.Notifier.DedupePeriodSec)*time.Second)
	if err != nil {
		return true
	}
	return !set
}

func (p *Policy) recordActionable(ctx context.Context) {
	window := time.Duration(p.cfg.Notifier.GlobalThrottleWindow) * time.Second
	if _, err := p.b.IncrWindow(ctx, globalThrottleKey, window); err != nil {
		log.Error().Err(err).Msg("increment global throttle counter")
	}
}

// SetMute installs the mute key for the given duration.
func (p *Policy) SetMute(ctx context.Context, minutes int) error {
	return p.b.SetTTL(ctx, muteKey, "1", time.Duration(minutes)*time.Minute)
}

// ClearMute removes the mute key; clearing an absent key is fine.
func (p *Policy) ClearMute(ctx context.Context) error {
	return p.b.Delete(ctx, muteKey)
}

// Muted reports the gate state without failing closed, for status replies.
func (p *Policy) Muted(ctx context.Context) (bool, error) {
	return p.b.Exists(ctx, muteKey)
}

// ReasonHash fingerprints the ordered reason lines.
func ReasonHash(lines []string) string {
	h := fnv.New64a()
	for _, line := range lines {
		h.Write([]byte(line))
	}
	return strconv.FormatUint(h.Sum64(), 10)
}
