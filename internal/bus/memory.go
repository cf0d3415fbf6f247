package bus

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// MemoryBus is an in-process Bus used by tests and local development. It
// preserves the contract that matters to callers: append-order delivery per
// group, ack-after-handler, redelivery on handler failure, TTL'd keys, and
// fail-fast publishes while marked unavailable.
type MemoryBus struct {
	mu          sync.Mutex
	streams     map[string][]memEntry
	cursors     map[string]int
	kv          map[string]kvEntry
	unavailable bool
	closed      bool
}

type memEntry struct {
	id     string
	corrID string
	ts     time.Time
	data   []byte
}

type kvEntry struct {
	value   string
	expires time.Time
}

// NewMemory returns an empty in-memory bus.
func NewMemory() *MemoryBus {
	return &MemoryBus{
		streams: make(map[string][]memEntry),
		cursors: make(map[string]int),
		kv:      make(map[string]kvEntry),
	}
}

// SetUnavailable toggles simulated outage: publishes fail fast and KV
// operations error, which is what the fail-closed policy tests exercise.
func (b *MemoryBus) SetUnavailable(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unavailable = down
}

var errMemDown = errors.New("memory bus marked unavailable")

// Publish implements Bus.
func (b *MemoryBus) Publish(_ context.Context, stream, corrID string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return ErrUnavailable
	}
	if b.closed {
		return ErrUnavailable
	}
	entry := memEntry{
		id:     strconv.Itoa(len(b.streams[stream]) + 1),
		corrID: corrID,
		ts:     time.Now(),
		data:   append([]byte(nil), payload...),
	}
	b.streams[stream] = append(b.streams[stream], entry)
	return nil
}

// Consume implements Bus. Each (stream, group) pair shares one cursor, so
// within a group every entry is delivered once in append order; a failed
// handler leaves the cursor in place and the entry is redelivered.
func (b *MemoryBus) Consume(ctx context.Context, stream, group, _ string, h Handler) error {
	key := stream + "|" + group
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b.mu.Lock()
		entries := b.streams[stream]
		cursor := b.cursors[key]
		var next *memEntry
		if cursor < len(entries) {
			e := entries[cursor]
			next = &e
		}
		b.mu.Unlock()

		if next == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}

		msg := &Message{
			Stream:    stream,
			ID:        next.id,
			CorrID:    next.corrID,
			Timestamp: next.ts,
			Data:      next.data,
		}
		if err := h(ctx, msg); err != nil {
			// Redeliver after a short pause.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}

		b.mu.Lock()
		b.cursors[key] = cursor + 1
		b.mu.Unlock()
	}
}

// Ping implements Bus.
func (b *MemoryBus) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return errMemDown
	}
	return nil
}

// Close implements Bus.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Len returns how many entries a stream holds; a test convenience.
func (b *MemoryBus) Len(stream string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams[stream])
}

// Entry returns the i-th entry payload of a stream; a test convenience.
func (b *MemoryBus) Entry(stream string, i int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.streams[stream]
	if i < 0 || i >= len(entries) {
		return nil
	}
	return entries[i].data
}

// SetTTL implements KV.
func (b *MemoryBus) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return errMemDown
	}
	b.kv[key] = kvEntry{value: value, expires: expiry(ttl)}
	return nil
}

// SetNX implements KV.
func (b *MemoryBus) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return false, errMemDown
	}
	if e, ok := b.kv[key]; ok && !expired(e) {
		return false, nil
	}
	b.kv[key] = kvEntry{value: value, expires: expiry(ttl)}
	return true, nil
}

// Get implements KV.
func (b *MemoryBus) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return "", false, errMemDown
	}
	e, ok := b.kv[key]
	if !ok || expired(e) {
		delete(b.kv, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Exists implements KV.
func (b *MemoryBus) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

// Delete implements KV.
func (b *MemoryBus) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return errMemDown
	}
	delete(b.kv, key)
	return nil
}

// IncrWindow implements KV.
func (b *MemoryBus) IncrWindow(_ context.Context, key string, ttl time.Duration) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return 0, errMemDown
	}
	e, ok := b.kv[key]
	if !ok || expired(e) {
		b.kv[key] = kvEntry{value: "1", expires: expiry(ttl)}
		return 1, nil
	}
	n, _ := strconv.ParseInt(e.value, 10, 64)
	n++
	e.value = strconv.FormatInt(n, 10)
	b.kv[key] = e
	return n, nil
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func expired(e kvEntry) bool {
	return !e.expires.IsZero() && time.Now().After(e.expires)
}
