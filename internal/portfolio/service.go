package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

// WalletStore is the slice of the data store the service needs.
type WalletStore interface {
	UserWallets(ctx context.Context, userID int64) ([]string, error)
	AddWallet(ctx context.Context, userID int64, address string) error
	RemoveWallet(ctx context.Context, userID int64, address string) error
	SaveHoldings(ctx context.Context, userID int64, wallet string, holdings []model.TokenHolding) error
}

// Service answers the portfolio-owned commands.
type Service struct {
	cfg    config.Config
	b      bus.Bus
	store  WalletStore
	solana SolanaClient
	prices PriceClient
	now    func() time.Time
}

// NewService wires the portfolio responder.
func NewService(cfg config.Config, b bus.Bus, store WalletStore, solana SolanaClient, prices PriceClient) *Service {
	return &Service{cfg: cfg, b: b, store: store, solana: solana, prices: prices, now: time.Now}
}

// Run consumes the command request stream until ctx is done.
func (s *Service) Run(ctx context.Context, consumer string) error {
	return s.b.Consume(ctx, s.cfg.StreamRequests, "portfolio", consumer, func(ctx context.Context, msg *bus.Message) error {
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
	})
}

// Handle routes one request; handled is false for foreign commands.
func (s *Service) Handle(ctx context.Context, req *model.CommandRequest) (model.CommandReply, bool) {
	switch req.Cmd {
	case "balance":
		return s.handleBalance(ctx, req), true
	case "holdings":
		return s.handleHoldings(ctx, req), true
	case "add_wallet":
		return s.handleAddWallet(ctx, req), true
	case "remove_wallet":
		return s.handleRemoveWallet(ctx, req), true
	default:
		return model.CommandReply{}, false
	}
}

func (s *Service) reply(corrID string, ok bool, message string) model.CommandReply {
	return model.CommandReply{CorrID: corrID, OK: ok, Message: message, Timestamp: s.now().UTC()}
}

func (s *Service) handleBalance(ctx context.Context, req *model.CommandRequest) model.CommandReply {
	wallets, err := s.store.UserWallets(ctx, req.From.TgUserID)
	if err != nil {
		log.Error().Err(err).Msg("load user wallets")
		return s.reply(req.CorrID, false, "❌ Failed to get balances. Please try again.")
	}
	if len(wallets) == 0 {
		return s.reply(req.CorrID, true, "No wallets tracked. Use /add_wallet <address> to add one.")
	}

	solPrice, err := s.prices.SOLPrice(ctx)
	if err != nil {
		log.Error().Err(err).Msg("fetch SOL price")
		return s.reply(req.CorrID, false, "❌ Failed to get balances. Please try again.")
	}

	var b strings.Builder
	b.WriteString("💰 Wallet Balances\n\n")
	totalSOL := 0.0
	totalUSD := 0.0

	for _, wallet := range wallets {
		solBalance, err := s.solana.SOLBalance(ctx, wallet)
		if err != nil {
			log.Warn().Err(err).Str("wallet", shorten(wallet)).Msg("fetch SOL balance")
			continue
		}
		solUSD := solBalance * solPrice
		totalSOL += solBalance
		totalUSD += solUSD

		tokenUSD := 0.0
		accounts, err := s.solana.TokenAccounts(ctx, wallet)
		if err != nil {
			log.Warn().Err(err).Str("wallet", shorten(wallet)).Msg("fetch token accounts")
		}
		for _, acct := range accounts {
			if acct.Amount <= 0 {
				continue
			}
			price, err := s.prices.TokenPrice(ctx, acct.Mint)
			if err != nil {
				continue
			}
			tokenUSD += acct.Amount * price
		}
		totalUSD += tokenUSD

		fmt.Fprintf(&b, "📍 %s\n", shorten(wallet))
		fmt.Fprintf(&b, "  SOL: %.4f ($%.2f)\n", solBalance, solUSD)
		fmt.Fprintf(&b, "  Tokens: $%.2f\n", tokenUSD)
		fmt.Fprintf(&b, "  Total: $%.2f\n\n", solUSD+tokenUSD)
	}

	b.WriteString("📊 Portfolio Summary\n")
	fmt.Fprintf(&b, "Total SOL: %.4f\n", totalSOL)
	fmt.Fprintf(&b, "Total Value: $%.2f", totalUSD)

	s.audit(ctx, "balance_check", req.From, fmt.Sprintf("$%.2f total value", totalUSD))
	return s.reply(req.CorrID, true, b.String())
}

func (s *Service) handleHoldings(ctx context.Context, req *model.CommandRequest) model.CommandReply {
	wallets, err := s.store.UserWallets(ctx, req.From.TgUserID)
	if err != nil {
		log.Error().Err(err).Msg("load user wallets")
		return s.reply(req.CorrID, false, "❌ Failed to get holdings. Please try again.")
	}
	if len(wallets) == 0 {
		return s.reply(req.CorrID, true, "No wallets tracked. Use /add_wallet <address> to add one.")
	}

	var all []model.TokenHolding
	for _, wallet := range wallets {
		accounts, err := s.solana.TokenAccounts(ctx, wallet)
		if err != nil {
			log.Warn().Err(err).Str("wallet", shorten(wallet)).Msg("fetch token accounts")
			continue
		}
		var perWallet []model.TokenHolding
		for _, acct := range accounts {
			if acct.Amount <= 0 {
				continue
			}
			price, _ := s.prices.TokenPrice(ctx, acct.Mint)
			perWallet = append(perWallet, model.TokenHolding{
				Mint:       acct.Mint,
				Amount:     acct.Amount,
				ValueUSD:   acct.Amount * price,
				AcquiredAt: s.now().UTC(),
			})
		}
		if err := s.store.SaveHoldings(ctx, req.From.TgUserID, wallet, perWallet); err != nil {
			log.Warn().Err(err).Str("wallet", shorten(wallet)).Msg("persist holdings snapshot")
		}
		all = append(all, perWallet...)
	}
	if len(all) == 0 {
		return s.reply(req.CorrID, true, "No token positions found.")
	}

	var b strings.Builder
	b.WriteString("📈 Current Holdings\n\n")
	const maxDisplay = 15
	for i, h := range all {
		if i == maxDisplay {
			fmt.Fprintf(&b, "\n... and %d more positions", len(all)-maxDisplay)
			break
		}
		fmt.Fprintf(&b, "%s: %.4f ($%.2f)\n", shorten(h.Mint), h.Amount, h.ValueUSD)
	}

	s.audit(ctx, "holdings_check", req.From, fmt.Sprintf("%d positions", len(all)))
	return s.reply(req.CorrID, true, b.String())
}

func (s *Service) handleAddWallet(ctx context.Context, req *model.CommandRequest) model.CommandReply {
	address := req.Args["address"]
	if address == "" {
		return s.reply(req.CorrID, false, "❌ Missing wallet address. Usage: /add_wallet <address>")
	}
	if !ValidAddress(address) {
		return s.reply(req.CorrID, false, "❌ Invalid wallet address format.")
	}

	existing, err := s.store.UserWallets(ctx, req.From.TgUserID)
	if err != nil {
		return s.reply(req.CorrID, false, "❌ Failed to add wallet. Please try again.")
	}
	for _, w := range existing {
		if w == address {
			return s.reply(req.CorrID, true, "⚠️ Wallet already being tracked.")
		}
	}

	solBalance, err := s.solana.SOLBalance(ctx, address)
	if err != nil {
		return s.reply(req.CorrID, false, "❌ Unable to access wallet. Please check the address.")
	}

	if err := s.store.AddWallet(ctx, req.From.TgUserID, address); err != nil {
		log.Error().Err(err).Msg("add wallet")
		return s.reply(req.CorrID, false, "❌ Failed to add wallet. Please try again.")
	}

	s.audit(ctx, "wallet_added", req.From, "added wallet "+address)
	return s.reply(req.CorrID, true, fmt.Sprintf("✅ Wallet added successfully!\nAddress: %s\nSOL Balance: %.4f", shorten(address), solBalance))
}

func (s *Service) handleRemoveWallet(ctx context.Context, req *model.CommandRequest) model.CommandReply {
	address := req.Args["address"]
	if address == "" {
		return s.reply(req.CorrID, false, "❌ Missing wallet address. Usage: /remove_wallet <address>")
	}

	existing, err := s.store.UserWallets(ctx, req.From.TgUserID)
	if err != nil {
		return s.reply(req.CorrID, false, "❌ Failed to remove wallet. Please try again.")
	}
	found := false
	for _, w := range existing {
		if w == address {
			found = true
			break
		}
	}
	if !found {
		return s.reply(req.CorrID, true, "⚠️ Wallet not found in your tracked wallets.")
	}

	if err := s.store.RemoveWallet(ctx, req.From.TgUserID, address); err != nil {
		log.Error().Err(err).Msg("remove wallet")
		return s.reply(req.CorrID, false, "❌ Failed to remove wallet. Please try again.")
	}

	s.audit(ctx, "wallet_removed", req.From, "removed wallet "+address)
	return s.reply(req.CorrID, true, fmt.Sprintf("✅ Wallet removed successfully!\nAddress: %s", shorten(address)))
}

func (s *Service) audit(ctx context.Context, event string, from model.CommandOrigin, detail string) {
	e := model.AuditEvent{
		Event:     event,
		Actor:     model.AuditActor{TgUserID: from.TgUserID, Role: from.Role},
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

// ValidAddress is a shape check for base58 Solana addresses.
func ValidAddress(address string) bool {
	if len(address) < 32 || len(address) > 44 {
		return false
	}
	for _, c := range address {
		switch {
		case c >= '1' && c <= '9', c >= 'A' && c <= 'H', c >= 'J' && c <= 'N',
			c >= 'P' && c <= 'Z', c >= 'a' && c <= 'k', c >= 'm' && c <= 'z':
		default:
			return false
		}
	}
	return true
}

func shorten(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}
