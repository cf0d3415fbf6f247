package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

// Responder answers the command requests owned by the analytics service.
// Requests for other services' commands are acked and ignored; every
// service reads the shared request stream through its own group.
type Responder struct {
	cfg      config.Config
	b        bus.Bus
	pipeline *Pipeline
	now      func() time.Time
}

// NewResponder builds a responder over a running pipeline.
func NewResponder(cfg config.Config, b bus.Bus, p *Pipeline) *Responder {
	return &Responder{cfg: cfg, b: b, pipeline: p, now: time.Now}
}

// Run consumes the request stream until ctx is done.
func (r *Responder) Run(ctx context.Context, consumer string) error {
	return r.b.Consume(ctx, r.cfg.StreamRequests, "analytics", consumer, func(ctx context.Context, msg *bus.Message) error {
		var req model.CommandRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Warn().Err(err).Str("id", msg.ID).Msg("dropping unparseable command request")
			return nil
		}
		reply, handled := r.Handle(ctx, &req)
		if !handled {
			return nil
		}
		payload, err := json.Marshal(reply)
		if err != nil {
			log.Error().Err(err).Str("corr_id", req.CorrID).Msg("marshal command reply")
			return nil
		}
		if err := r.b.Publish(ctx, r.cfg.StreamReplies, req.CorrID, payload); err != nil {
			return fmt.Errorf("publish reply: %w", err)
		}
		return nil
	})
}

// Handle routes one request; handled is false when the command belongs to
// another service.
func (r *Responder) Handle(ctx context.Context, req *model.CommandRequest) (model.CommandReply, bool) {
	switch req.Cmd {
	case "signals":
		return r.handleSignals(ctx, req), true
	case "health":
		return r.handleHealth(req), true
	default:
		return model.CommandReply{}, false
	}
}

func (r *Responder) handleSignals(ctx context.Context, req *model.CommandRequest) model.CommandReply {
	reply := model.CommandReply{CorrID: req.CorrID, Timestamp: r.now().UTC()}

	mint := req.Args["mint"]
	if mint == "" {
		reply.OK = true
		reply.Message = fmt.Sprintf("regime %s, %d alerts in history, queue depth %d",
			r.pipeline.Regime().String(), r.pipeline.Throttle().HistoryLen(), r.pipeline.QueueDepth())
		return reply
	}

	res, ok := r.pipeline.SignalsFor(ctx, mint)
	if !ok {
		reply.OK = false
		reply.Message = fmt.Sprintf("no signals available for %s", mint)
		return reply
	}

	reply.OK = true
	reply.Message = fmt.Sprintf("%s: confidence %d, band %s", mint, res.Confidence, res.Band)
	reply.Data = map[string]any{
		"mint":        mint,
		"confidence":  res.Confidence,
		"band":        string(res.Band),
		"risk_regime": r.pipeline.Regime().String(),
		"signals": map[string]float64{
			"s1_liquidity":         res.S1Liquidity,
			"s2_volume":            res.S2Volume,
			"s3_momentum_1h":       res.S3Momentum1h,
			"s4_momentum_24h":      res.S4Momentum24h,
			"s5_volatility":        res.S5Volatility,
			"s6_price_discovery":   res.S6PriceDiscovery,
			"s7_rug_risk":          res.S7RugRisk,
			"s8_tradability":       res.S8Tradability,
			"s9_relative_strength": res.S9RelativeStrength,
			"s10_route_quality":    res.S10RouteQuality,
			"n1_hygiene":           res.N1Hygiene,
		},
		"data_quality":    res.DataQuality,
		"entry_confirmed": res.EntryConfirmed,
		"net_edge_ok":     res.NetEdgeOK,
		"reasons":         res.Reasons,
	}
	return reply
}

func (r *Responder) handleHealth(req *model.CommandRequest) model.CommandReply {
	busOK := "up"
	if err := r.b.Ping(context.Background()); err != nil {
		busOK = "down"
	}
	return model.CommandReply{
		CorrID:    req.CorrID,
		OK:        true,
		Message:   fmt.Sprintf("analytics: bus %s, regime %s, queue depth %d", busOK, r.pipeline.Regime().String(), r.pipeline.QueueDepth()),
		Timestamp: r.now().UTC(),
	}
}
