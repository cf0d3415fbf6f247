// Package bus is a thin contract over an append-only, consumer-group
// capable stream log plus the small set of TTL'd key operations the policy
// gates need. The production implementation runs on Redis streams; an
// in-memory implementation backs tests.
package bus

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrUnavailable is returned by Publish when the bus is unreachable after a
// bounded reconnection attempt. Callers must not block on it.
var ErrUnavailable = errors.New("bus unavailable")

// ErrTimeout is returned by a Requester when no reply arrives in time.
var ErrTimeout = errors.New("request timed out")

// Message is one stream entry: a JSON payload plus opaque metadata.
type Message struct {
	Stream    string
	ID        string
	CorrID    string
	Timestamp time.Time
	Data      []byte
}

// Handler processes one delivered message. A nil return acks the message;
// an error leaves it pending so the group redelivers it.
type Handler func(ctx context.Context, msg *Message) error

// Bus is the event and command fabric shared by all services.
//
// Consume runs until ctx is cancelled, reading with ~1s blocking calls and
// acking after the handler returns nil. Consumer groups are created
// idempotently. Messages that cannot be parsed at all are acked and logged
// so poison entries never block the group.
type Bus interface {
	Publish(ctx context.Context, stream string, corrID string, payload []byte) error
	Consume(ctx context.Context, stream, group, consumer string, h Handler) error
	Ping(ctx context.Context) error
	Close() error

	KV
}

// KV is the key-value slice of the bus used by the notifier gates and the
// gateway guest PINs. All keys are TTL-bounded.
type KV interface {
	// SetTTL writes key=value with a TTL, overwriting any prior value.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes key=value with a TTL only if the key is absent and
	// reports whether it was set.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Exists reports key presence.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes a key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// IncrWindow increments a counter, attaching the TTL when the counter
	// is created, and returns the new count.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// ConsumerName builds the stable per-process consumer name so pending
// messages are redelivered to the restarted process.
func ConsumerName(service string, pid int) string {
	return service + "_" + strconv.Itoa(pid)
}
