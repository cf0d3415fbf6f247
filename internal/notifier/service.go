package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

// Service runs the two notifier consumers: inbound alerts through the
// policy chain, and the command responder.
type Service struct {
	cfg    config.Config
	b      bus.Bus
	policy *Policy
	audit  AuditLog
	now    func() time.Time
}

// NewService wires the notifier over one bus and audit log.
func NewService(cfg config.Config, b bus.Bus, audit AuditLog) *Service {
	return &Service{
		cfg:    cfg,
		b:      b,
		policy: NewPolicy(cfg, b, audit),
		audit:  audit,
		now:    time.Now,
	}
}

// Policy exposes the gate chain, mostly for tests.
func (s *Service) Policy() *Policy { return s.policy }

// Run blocks until ctx is done.
func (s *Service) Run(ctx context.Context, consumer string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.b.Consume(ctx, s.cfg.StreamAlerts, "notifier", consumer, s.onAlert)
	})
	g.Go(func() error {
		return s.b.Consume(ctx, s.cfg.StreamRequests, "notifier", consumer, s.onCommand)
	})
	return g.Wait()
}

func (s *Service) onAlert(ctx context.Context, msg *bus.Message) error {
	var alert model.Alert
	if err := json.Unmarshal(msg.Data, &alert); err != nil {
		log.Warn().Err(err).Str("id", msg.ID).Msg("dropping unparseable alert")
		return nil
	}
	s.policy.HandleAlert(ctx, &alert)
	return nil
}

func (s *Service) onCommand(ctx context.Context, msg *bus.Message) error {
	var req model.CommandRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Warn().Err(err).Str("id", msg.ID).Msg("dropping unparseable command request")
		return nil
	}
	reply, handled := s.Handle(ctx, &req)
	if !handled {
		return nil
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		log.Error().Err(err).Str("corr_id", req.CorrID).Msg("marshal command reply")
		return nil
	}
	if err := s.b.Publish(ctx, s.cfg.StreamReplies, req.CorrID, payload); err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}

// Handle answers the notifier-owned commands. The silence/resume pair are
// the owner-chat aliases for mute/unmute.
func (s *Service) Handle(ctx context.Context, req *model.CommandRequest) (model.CommandReply, bool) {
	reply := model.CommandReply{CorrID: req.CorrID, OK: true, Timestamp: s.now().UTC()}

	switch req.Cmd {
	case "status":
		reply.Message = s.statusReport(ctx)
	case "mute", "silence":
		minutes := s.cfg.Notifier.DefaultMuteMinutes
		if v, err := strconv.Atoi(req.Args["minutes"]); err == nil && v > 0 {
			minutes = v
		}
		if err := s.policy.SetMute(ctx, minutes); err != nil {
			reply.OK = false
			reply.Message = "failed to set mute"
		} else {
			reply.Message = fmt.Sprintf("🔇 Notifications muted for %d minutes.", minutes)
		}
	case "unmute", "resume":
		if err := s.policy.ClearMute(ctx); err != nil {
			reply.OK = false
			reply.Message = "failed to clear mute"
		} else {
			reply.Message = "🔊 Notifications have been unmuted."
		}
	default:
		return model.CommandReply{}, false
	}
	return reply, true
}

func (s *Service) statusReport(ctx context.Context) string {
	muteState := "🔊 Active"
	if muted, err := s.policy.Muted(ctx); err == nil && muted {
		muteState = "🔇 Muted"
	}
	busState := "✅ OK"
	if err := s.b.Ping(ctx); err != nil {
		busState = "❌ Error"
	}
	storeState := "✅ OK"
	if !s.audit.Healthy(ctx) {
		storeState = "❌ Error"
	}
	return fmt.Sprintf("Notifier status\nMute: %s\nBus: %s\nStore: %s", muteState, busState, storeState)
}
