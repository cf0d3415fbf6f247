package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/backoff"
)

// tradeMessage is one live trade event on the price feed.
type tradeMessage struct {
	PoolID    string  `json:"pool_id"`
	Price     float64 `json:"price"`
	VolumeUSD float64 `json:"volume_usd"`
	TS        int64   `json:"ts"` // unix ms
}

// PriceFeed streams live trades over a websocket into the bar aggregator.
// The feed is optional; the tick loop alone still produces one price point
// per pool per tick.
type PriceFeed struct {
	url  string
	agg  *Aggregator
	dial func(ctx context.Context, url string) (wsConn, error)
}

// wsConn is the slice of *websocket.Conn the feed uses, split out so tests
// can substitute a scripted connection.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

// NewPriceFeed builds a feed for one websocket URL.
func NewPriceFeed(url string, agg *Aggregator) *PriceFeed {
	return &PriceFeed{
		url: url,
		agg: agg,
		dial: func(ctx context.Context, url string) (wsConn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		},
	}
}

// Run connects and reads trades until ctx is done, reconnecting with
// exponential backoff on any error.
func (f *PriceFeed) Run(ctx context.Context) error {
	tracker := backoff.NewTracker(backoff.DefaultPolicy())
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := f.dial(ctx, f.url)
		if err != nil {
			delay := tracker.Failure()
			log.Warn().Err(err).Str("url", f.url).Dur("retry_in", delay).Msg("price feed dial failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		tracker.Success()
		log.Info().Str("url", f.url).Msg("price feed connected")

		err = f.readLoop(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay := tracker.Failure()
		log.Warn().Err(err).Dur("retry_in", delay).Msg("price feed disconnected")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (f *PriceFeed) readLoop(ctx context.Context, conn wsConn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handleMessage(raw)
	}
}

func (f *PriceFeed) handleMessage(raw []byte) {
	var trade tradeMessage
	if err := json.Unmarshal(raw, &trade); err != nil {
		log.Debug().Err(err).Msg("dropping unparseable trade")
		return
	}
	if trade.PoolID == "" {
		return
	}
	f.agg.AddPoint(trade.PoolID, trade.Price, trade.VolumeUSD, time.UnixMilli(trade.TS))
}
