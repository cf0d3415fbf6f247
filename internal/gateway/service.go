package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
	"github.com/soulscout/soulscout/internal/telegram"
)

type pendingCommand struct {
	chatID  int64
	created time.Time
}

const pendingExpiry = 5 * time.Minute

// Service is the gateway core: it polls the chat API, routes commands over
// the bus with correlation IDs, and delivers replies and outbound alerts.
type Service struct {
	cfg     config.Config
	b       bus.Bus
	tg      telegram.Client
	auth    *Auth
	limiter *RateLimiter
	pins    *Pins
	now     func() time.Time

	mu           sync.Mutex
	pending      map[string]pendingCommand
	lastUpdateID int64
}

// NewService wires the gateway.
func NewService(cfg config.Config, b bus.Bus, tg telegram.Client) *Service {
	return &Service{
		cfg:     cfg,
		b:       b,
		tg:      tg,
		auth:    NewAuth(cfg.Gateway.OwnerTelegramID),
		limiter: NewRateLimiter(cfg.Gateway.RateLimitMsgsPerMin, cfg.Gateway.GlobalActionableMaxPerHour),
		pins:    NewPins(b),
		now:     time.Now,
		pending: make(map[string]pendingCommand),
	}
}

// Run starts the poll loop, the two bus consumers and the housekeeping
// tick, blocking until ctx is done.
func (s *Service) Run(ctx context.Context, consumer string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.pollLoop(ctx) })
	g.Go(func() error {
		return s.b.Consume(ctx, s.cfg.StreamReplies, "gateway", consumer, s.onReply)
	})
	g.Go(func() error {
		return s.b.Consume(ctx, s.cfg.StreamOutbound, "gateway", consumer, s.onOutboundAlert)
	})
	g.Go(func() error { return s.housekeeping(ctx) })
	return g.Wait()
}

func (s *Service) pollLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := s.tg.GetUpdates(ctx, s.lastUpdateID+1, s.cfg.Gateway.PollTimeoutSec)
		if err != nil {
			log.Error().Err(err).Msg("poll updates")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for i := range updates {
			if updates[i].UpdateID > s.lastUpdateID {
				s.lastUpdateID = updates[i].UpdateID
			}
			s.HandleUpdate(ctx, &updates[i])
		}
	}
}

// HandleUpdate runs the full inbound pipeline for one chat update.
func (s *Service) HandleUpdate(ctx context.Context, upd *telegram.Update) {
	if upd.Message == nil || upd.Message.Text == "" {
		return
	}
	userID := upd.Message.From.ID
	chatID := upd.Message.Chat.ID

	if !s.limiter.AllowUser(userID) {
		s.send(ctx, chatID, "Rate limit exceeded. Please slow down.")
		return
	}

	cmd, ok := ParseCommand(upd.Message.Text)
	if !ok {
		s.send(ctx, chatID, "Invalid command format. Use /help for available commands.")
		return
	}

	// /start <PIN> redeems guest access before any role check.
	if cmd.Cmd == "start" && len(cmd.Args) == 1 {
		s.handleGuestLogin(ctx, cmd.Arg(0), userID, chatID)
		return
	}

	role := s.auth.Role(userID)
	if role == RoleUnknown {
		s.send(ctx, chatID, "Access denied. Contact the owner for access.")
		s.audit(ctx, "auth_denied", userID, role, fmt.Sprintf("access denied for user %d", userID))
		return
	}
	if !s.auth.Allowed(cmd.Cmd, role) {
		s.send(ctx, chatID, "You don't have permission to use this command.")
		s.audit(ctx, "auth_denied", userID, role, fmt.Sprintf("command %s denied", cmd.Cmd))
		return
	}

	if s.handleLocal(ctx, cmd, userID, chatID, role) {
		return
	}

	s.forward(ctx, cmd, userID, chatID, role)
}

func (s *Service) handleLocal(ctx context.Context, cmd *ParsedCommand, userID, chatID int64, role Role) bool {
	switch cmd.Cmd {
	case "start":
		s.send(ctx, chatID, "Welcome to SoulScout! Use /help for available commands.")
		return true
	case "help":
		s.send(ctx, chatID, helpText(role))
		return true
	case "guest":
		if role != RoleOwner {
			return false
		}
		minutes := s.cfg.Gateway.GuestDefaultMinutes
		if n, ok := cmd.IntArg(0); ok && n > 0 {
			minutes = n
		}
		pin, err := s.pins.Issue(ctx, userID, time.Duration(minutes)*time.Minute)
		if err != nil {
			log.Error().Err(err).Msg("issue guest pin")
			s.send(ctx, chatID, "Failed to generate guest PIN")
			return true
		}
		s.send(ctx, chatID, fmt.Sprintf("Guest PIN: %s\nValid for %d minutes", pin, minutes))
		return true
	}
	return false
}

func (s *Service) handleGuestLogin(ctx context.Context, pin string, userID, chatID int64) {
	residual, ok, err := s.pins.Redeem(ctx, pin)
	if err != nil {
		log.Error().Err(err).Msg("redeem guest pin")
	}
	if !ok {
		s.send(ctx, chatID, "Invalid or expired PIN")
		return
	}
	s.auth.GrantGuest(userID, residual)
	s.send(ctx, chatID, "Guest access granted! Use /help for available commands.")
	s.audit(ctx, "guest_login", userID, RoleGuest, "guest session granted via PIN")
}

func (s *Service) forward(ctx context.Context, cmd *ParsedCommand, userID, chatID int64, role Role) {
	req := model.CommandRequest{
		Type:      "command",
		Cmd:       cmd.Cmd,
		Args:      commandArgs(cmd),
		From:      model.CommandOrigin{TgUserID: userID, Role: role.String()},
		CorrID:    uuid.NewString(),
		Timestamp: s.now().UTC(),
	}

	payload, err := json.Marshal(req)
	if err != nil {
		log.Error().Err(err).Str("cmd", cmd.Cmd).Msg("marshal command request")
		return
	}

	s.mu.Lock()
	s.pending[req.CorrID] = pendingCommand{chatID: chatID, created: s.now()}
	s.mu.Unlock()

	if err := s.b.Publish(ctx, s.cfg.StreamRequests, req.CorrID, payload); err != nil {
		s.mu.Lock()
		delete(s.pending, req.CorrID)
		s.mu.Unlock()
		log.Error().Err(err).Str("cmd", cmd.Cmd).Msg("publish command request")
		s.send(ctx, chatID, "Service temporarily unavailable, try again shortly.")
		return
	}
	s.audit(ctx, "command_used", userID, role, cmd.Cmd)
}

// commandArgs maps positional chat arguments onto named request fields.
func commandArgs(cmd *ParsedCommand) map[string]string {
	args := make(map[string]string)
	switch cmd.Cmd {
	case "signals":
		if a := cmd.Arg(0); a != "" {
			if _, err := strconv.Atoi(a); err == nil {
				args["window"] = a
			} else {
				args["mint"] = a
			}
		}
	case "add_wallet", "remove_wallet", "balance", "holdings":
		if a := cmd.Arg(0); a != "" {
			args["address"] = a
		}
	case "mute", "silence":
		if _, ok := cmd.IntArg(0); ok {
			args["minutes"] = cmd.Arg(0)
		}
	}
	if len(args) == 0 {
		return nil
	}
	return args
}

func (s *Service) onReply(ctx context.Context, msg *bus.Message) error {
	var reply model.CommandReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		log.Warn().Err(err).Str("id", msg.ID).Msg("dropping unparseable command reply")
		return nil
	}

	s.mu.Lock()
	p, ok := s.pending[reply.CorrID]
	if ok {
		delete(s.pending, reply.CorrID)
	}
	s.mu.Unlock()
	if !ok {
		log.Warn().Str("corr_id", reply.CorrID).Msg("reply for unknown or expired correlation id")
		return nil
	}

	text := reply.Message
	if !reply.OK && text == "" {
		text = "Command failed."
	}
	s.send(ctx, p.chatID, text)
	return nil
}

func (s *Service) onOutboundAlert(ctx context.Context, msg *bus.Message) error {
	var alert model.OutboundAlert
	if err := json.Unmarshal(msg.Data, &alert); err != nil {
		log.Warn().Err(err).Str("id", msg.ID).Msg("dropping unparseable outbound alert")
		return nil
	}

	severity := alert.Meta["severity"]
	if severity == string(model.BandActionable) || severity == string(model.BandHighConviction) {
		if !s.limiter.AllowActionable() {
			log.Warn().Str("severity", severity).Msg("global actionable budget exhausted, alert dropped")
			return nil
		}
		s.limiter.RecordActionable()
	}

	to := alert.To
	if to == 0 {
		to = s.cfg.Gateway.OwnerTelegramID
	}
	s.send(ctx, to, alert.Text)
	return nil
}

func (s *Service) housekeeping(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.auth.SweepExpired()
			s.limiter.Sweep()
			s.sweepPending()
		}
	}
}

func (s *Service) sweepPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for corrID, p := range s.pending {
		if now.Sub(p.created) > pendingExpiry {
			delete(s.pending, corrID)
		}
	}
}

// PendingCount reports outstanding correlated commands.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Service) send(ctx context.Context, chatID int64, text string) {
	if err := s.tg.SendMessage(ctx, chatID, text); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("send chat message")
	}
}

func (s *Service) audit(ctx context.Context, event string, userID int64, role Role, detail string) {
	e := model.AuditEvent{
		Event:     event,
		Actor:     model.AuditActor{TgUserID: userID, Role: role.String()},
		Detail:    detail,
		Timestamp: s.now().UTC(),
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.b.Publish(ctx, s.cfg.StreamAudit, "", payload); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("publish audit event")
	}
}

func helpText(role Role) string {
	text := "Available commands:\n" +
		"/balance - Show wallet balances\n" +
		"/holdings - Show current positions\n" +
		"/signals [mint|window] - Show signals\n" +
		"/health - System health check\n"
	if role == RoleOwner {
		text += "/status - Notifier status\n" +
			"/silence [minutes] - Silence alerts\n" +
			"/resume - Resume alerts\n" +
			"/add_wallet <address> - Add wallet to monitor\n" +
			"/remove_wallet <address> - Remove wallet\n" +
			"/guest [minutes] - Generate guest PIN\n"
	}
	return text
}
