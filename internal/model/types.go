package model

import "time"

// Band is the qualitative severity derived from confidence plus the entry
// and net-edge gates.
type Band string

const (
	BandWatch          Band = "watch"
	BandHeadsUp        Band = "heads_up"
	BandActionable     Band = "actionable"
	BandHighConviction Band = "high_conviction"
)

// OHLCVBar is a single aggregated bar for one interval.
type OHLCVBar struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	VolumeUSD float64 `json:"v"`
}

// RouteInfo describes the best swap route for a pool's base mint.
type RouteInfo struct {
	OK           bool    `json:"ok"`
	Hops         int     `json:"hops"`
	DeviationPct float64 `json:"deviation_pct"`
}

// MarketUpdate is the per-pool snapshot the ingestor publishes on the
// market updates stream. Producers own each instance; consumers keep only
// cached copies.
type MarketUpdate struct {
	ID           string              `json:"id"`
	PoolID       string              `json:"pool_id"`
	MintBase     string              `json:"mint_base"`
	MintQuote    string              `json:"mint_quote"`
	Symbol       string              `json:"symbol"`
	PriceUSD     float64             `json:"price_usd"`
	LiqUSD       float64             `json:"liq_usd"`
	Vol24hUSD    float64             `json:"vol24h_usd"`
	SpreadPct    float64             `json:"spread_pct"`
	Impact1Pct   float64             `json:"impact_1pct_pct"`
	AgeHours     float64             `json:"age_hours"`
	Route        RouteInfo           `json:"route"`
	Bars         map[string]OHLCVBar `json:"bars"`
	Timestamp    time.Time           `json:"ts"`
}

// Bar returns the bar for an interval label ("5m", "15m") if present.
func (u *MarketUpdate) Bar(interval string) (OHLCVBar, bool) {
	b, ok := u.Bars[interval]
	return b, ok
}

// TokenMetadata is mint-keyed token information resolved from the store and
// cached with a minutes-scale TTL.
type TokenMetadata struct {
	Mint             string    `json:"mint" db:"mint"`
	Symbol           string    `json:"symbol" db:"symbol"`
	Name             string    `json:"name" db:"name"`
	Decimals         int       `json:"decimals" db:"decimals"`
	OnTokenList      bool      `json:"on_token_list" db:"on_token_list"`
	TopHolderPct     float64   `json:"top_holder_pct" db:"top_holder_pct"`
	RiskyAuthorities bool      `json:"risky_authorities" db:"risky_authorities"`
	FirstLiquidityTS time.Time `json:"first_liquidity_ts" db:"first_liquidity_ts"`
}

// SignalResult carries the eleven normalized sub-signals, the derived
// confidence and band, and the gate outcomes for one market update.
type SignalResult struct {
	S1Liquidity        float64 `json:"s1_liquidity"`
	S2Volume           float64 `json:"s2_volume"`
	S3Momentum1h       float64 `json:"s3_momentum_1h"`
	S4Momentum24h      float64 `json:"s4_momentum_24h"`
	S5Volatility       float64 `json:"s5_volatility"`
	S6PriceDiscovery   float64 `json:"s6_price_discovery"`
	S7RugRisk          float64 `json:"s7_rug_risk"`
	S8Tradability      float64 `json:"s8_tradability"`
	S9RelativeStrength float64 `json:"s9_relative_strength"`
	S10RouteQuality    float64 `json:"s10_route_quality"`
	N1Hygiene          float64 `json:"n1_hygiene"`

	DataQuality    float64  `json:"data_quality"`
	Confidence     int      `json:"confidence"`
	Reasons        []string `json:"reasons"`
	Band           Band     `json:"band"`
	EntryConfirmed bool     `json:"entry_confirmed"`
	NetEdgeOK      bool     `json:"net_edge_ok"`

	CachedAt time.Time `json:"-"`
}

// Alert is published by analytics on the alerts stream.
type Alert struct {
	Severity     Band      `json:"severity"`
	Mint         string    `json:"mint"`
	Symbol       string    `json:"symbol"`
	Price        float64   `json:"price"`
	Confidence   int       `json:"confidence"`
	Lines        []string  `json:"lines"`
	Plan         string    `json:"plan,omitempty"`
	SolPath      string    `json:"sol_path,omitempty"`
	EstImpactPct float64   `json:"est_impact_pct"`
	Timestamp    time.Time `json:"ts"`
}

// OutboundAlert is the formatted message the notifier hands to the gateway.
type OutboundAlert struct {
	To        int64             `json:"to"`
	Text      string            `json:"text"`
	Timestamp time.Time         `json:"ts"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// CommandOrigin identifies the chat user a command request came from.
type CommandOrigin struct {
	TgUserID int64  `json:"tg_user_id"`
	Role     string `json:"role"`
}

// CommandRequest is published by the gateway on the command request stream
// and consumed by analytics, notifier and portfolio.
type CommandRequest struct {
	Type      string            `json:"type"`
	Cmd       string            `json:"cmd"`
	Args      map[string]string `json:"args,omitempty"`
	From      CommandOrigin     `json:"from"`
	CorrID    string            `json:"corr_id"`
	Timestamp time.Time         `json:"ts"`
}

// CommandReply answers exactly one CommandRequest, correlated by CorrID.
type CommandReply struct {
	CorrID    string         `json:"corr_id"`
	OK        bool           `json:"ok"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"ts"`
}

// AuditActor identifies who triggered an audit event.
type AuditActor struct {
	TgUserID int64  `json:"tg_user_id"`
	Role     string `json:"role"`
}

// AuditEvent is an append-only record on the audit stream.
type AuditEvent struct {
	Event     string     `json:"event"`
	Actor     AuditActor `json:"actor"`
	Detail    string     `json:"detail"`
	Timestamp time.Time  `json:"ts"`
}

// PoolInfo is one liquidity pool as returned by a DEX endpoint.
type PoolInfo struct {
	PoolID       string    `json:"pool_id" db:"pool_id"`
	Dex          string    `json:"dex" db:"dex"`
	TokenAMint   string    `json:"token_a_mint" db:"token_a_mint"`
	TokenBMint   string    `json:"token_b_mint" db:"token_b_mint"`
	SymbolBase   string    `json:"symbol_base" db:"-"`
	ReserveA     float64   `json:"reserve_a" db:"reserve_a"`
	ReserveB     float64   `json:"reserve_b" db:"reserve_b"`
	PriceUSD     float64   `json:"price_usd" db:"-"`
	TVLUSD       float64   `json:"tvl_usd" db:"tvl_usd"`
	Volume24hUSD float64   `json:"volume_24h_usd" db:"volume_24h_usd"`
	SpreadPct    float64   `json:"spread_pct" db:"-"`
	Impact1Pct   float64   `json:"impact_1pct_pct" db:"-"`
	AgeHours     float64   `json:"age_hours" db:"-"`
	Route        RouteInfo `json:"route" db:"-"`
	LastUpdated  time.Time `json:"last_updated" db:"last_updated"`
}

// TokenHolding is a single position inside a tracked wallet.
type TokenHolding struct {
	Mint       string    `json:"mint" db:"mint"`
	Symbol     string    `json:"symbol" db:"symbol"`
	Amount     float64   `json:"amount" db:"amount"`
	ValueUSD   float64   `json:"value_usd" db:"value_usd"`
	EntryPrice float64   `json:"entry_price" db:"entry_price"`
	AcquiredAt time.Time `json:"acquired_at" db:"acquired_at"`
}
