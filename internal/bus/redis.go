package bus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/backoff"
	"github.com/soulscout/soulscout/internal/metrics"
)

const (
	fieldData      = "data"
	fieldCorrID    = "corr_id"
	fieldTimestamp = "timestamp"

	blockInterval = time.Second
	readBatch     = 16
)

// RedisBus implements Bus over Redis streams with consumer groups.
//
// A single client is shared; its health is re-checked under the connection
// mutex before every publish so that writers fail fast during an outage
// instead of piling up. Reconnection attempts are gated by a shared backoff
// tracker so concurrent consumers do not hammer the endpoint.
type RedisBus struct {
	client *redis.Client

	connMu  sync.Mutex
	healthy bool
	retry   *backoff.Tracker
}

// NewRedis connects to the given redis URL and verifies it with a ping.
func NewRedis(ctx context.Context, url string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	b := &RedisBus{
		client: redis.NewClient(opts),
		retry:  backoff.NewTracker(backoff.DefaultPolicy()),
	}
	if err := b.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	b.healthy = true
	log.Info().Str("addr", opts.Addr).Msg("connected to redis")
	return b, nil
}

// Ping verifies the connection and resets the backoff on success.
func (b *RedisBus) Ping(ctx context.Context) error {
	err := b.client.Ping(ctx).Err()
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if err != nil {
		b.healthy = false
		return err
	}
	if !b.healthy {
		log.Info().Msg("redis connection restored")
	}
	b.healthy = true
	b.retry.Success()
	return nil
}

// ensureConnection re-checks health under the mutex, pinging at most once
// per backoff interval during an outage.
func (b *RedisBus) ensureConnection(ctx context.Context) bool {
	b.connMu.Lock()
	healthy := b.healthy
	b.connMu.Unlock()
	if healthy {
		return true
	}
	if !b.retry.Ready(time.Now()) {
		return false
	}
	if err := b.Ping(ctx); err != nil {
		delay := b.retry.Failure()
		log.Warn().Err(err).
			Int("attempt", b.retry.Attempts()).
			Dur("next_retry_in", delay).
			Msg("redis reconnect failed")
		return false
	}
	return true
}

// Publish appends one entry to a stream. During an outage it fails fast
// with ErrUnavailable after at most one bounded reconnection attempt.
func (b *RedisBus) Publish(ctx context.Context, stream, corrID string, payload []byte) error {
	if !b.ensureConnection(ctx) {
		return ErrUnavailable
	}
	values := map[string]any{
		fieldData:      string(payload),
		fieldTimestamp: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	if corrID != "" {
		values[fieldCorrID] = corrID
	}
	if err := b.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err(); err != nil {
		b.connMu.Lock()
		b.healthy = false
		b.connMu.Unlock()
		return fmt.Errorf("%w: xadd %s: %v", ErrUnavailable, stream, err)
	}
	metrics.PublishedMessages.WithLabelValues(stream).Inc()
	return nil
}

// Consume reads a stream on behalf of a consumer group until ctx is done.
// Delivery is at-least-once: a message is acked only after the handler
// returns nil. Unparseable entries are acked and logged so they cannot
// block the group.
func (b *RedisBus) Consume(ctx context.Context, stream, group, consumer string, h Handler) error {
	if err := b.createGroup(ctx, stream, group); err != nil {
		return err
	}
	log.Info().Str("stream", stream).Str("group", group).Str("consumer", consumer).
		Msg("stream consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("stream", stream).Str("group", group).Msg("stream consumer stopped")
			return ctx.Err()
		default:
		}

		res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    readBatch,
			Block:    blockInterval,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			b.connMu.Lock()
			b.healthy = false
			b.connMu.Unlock()
			if !b.ensureConnection(ctx) {
				select {
				case <-ctx.Done():
				case <-time.After(blockInterval):
				}
			}
			continue
		}

		for _, str := range res {
			for _, entry := range str.Messages {
				b.dispatch(ctx, stream, group, entry, h)
			}
		}
	}
}

func (b *RedisBus) dispatch(ctx context.Context, stream, group string, entry redis.XMessage, h Handler) {
	msg, ok := decodeEntry(stream, entry)
	if !ok {
		// Poison entry: ack so the group keeps moving.
		log.Error().Str("stream", stream).Str("id", entry.ID).Msg("dropping unparseable stream entry")
		b.client.XAck(ctx, stream, group, entry.ID)
		return
	}

	if err := h(ctx, msg); err != nil {
		// Leave unacked for redelivery; bounding repeated failures is the
		// handler's responsibility.
		log.Error().Err(err).Str("stream", stream).Str("id", entry.ID).Msg("handler failed, message left pending")
		return
	}
	b.client.XAck(ctx, stream, group, entry.ID)
	metrics.ConsumedMessages.WithLabelValues(stream).Inc()
}

func decodeEntry(stream string, entry redis.XMessage) (*Message, bool) {
	raw, ok := entry.Values[fieldData]
	if !ok {
		return nil, false
	}
	data, ok := raw.(string)
	if !ok {
		return nil, false
	}
	msg := &Message{Stream: stream, ID: entry.ID, Data: []byte(data)}
	if v, ok := entry.Values[fieldCorrID].(string); ok {
		msg.CorrID = v
	}
	if v, ok := entry.Values[fieldTimestamp].(string); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			msg.Timestamp = time.UnixMilli(ms)
		}
	}
	return msg, true
}

func (b *RedisBus) createGroup(ctx context.Context, stream, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

// Close releases the underlying client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// SetTTL implements KV.
func (b *RedisBus) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

// SetNX implements KV.
func (b *RedisBus) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return b.client.SetNX(ctx, key, value, ttl).Result()
}

// Get implements KV.
func (b *RedisBus) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Exists implements KV.
func (b *RedisBus) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete implements KV.
func (b *RedisBus) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// IncrWindow implements KV: the TTL is attached when the counter is created
// so the window expires as a unit.
func (b *RedisBus) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := b.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := b.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}
