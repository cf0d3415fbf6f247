package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversInAppendOrder(t *testing.T) {
	b := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, b.Publish(ctx, "s", "", []byte("one")))
	require.NoError(t, b.Publish(ctx, "s", "", []byte("two")))
	require.NoError(t, b.Publish(ctx, "s", "", []byte("three")))

	got := make(chan string, 3)
	go b.Consume(ctx, "s", "g", "c_1", func(_ context.Context, msg *Message) error {
		got <- string(msg.Data)
		return nil
	})

	for _, want := range []string{"one", "two", "three"} {
		select {
		case v := <-got:
			assert.Equal(t, want, v)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestMemoryBusRedeliversOnHandlerError(t *testing.T) {
	b := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, b.Publish(ctx, "s", "", []byte("poison-ish")))

	var calls atomic.Int32
	done := make(chan struct{})
	go b.Consume(ctx, "s", "g", "c_1", func(_ context.Context, _ *Message) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("message was not redelivered after handler failures")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestMemoryBusPublishFailsFastWhenUnavailable(t *testing.T) {
	b := NewMemory()
	b.SetUnavailable(true)

	start := time.Now()
	err := b.Publish(context.Background(), "s", "", []byte("x"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "publish must not block during outage")
}

func TestKVWindowCounter(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	n, err := b.IncrWindow(ctx, "w", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = b.IncrWindow(ctx, "w", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	time.Sleep(60 * time.Millisecond)
	n, err = b.IncrWindow(ctx, "w", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "window counter must reset after TTL")
}

func TestKVSetNXSuppressesSecondWriter(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	set, err := b.SetNX(ctx, "dedupe:mint:hash", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = b.SetNX(ctx, "dedupe:mint:hash", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, set, "second identical fingerprint must be suppressed")
}

func TestRequesterRoundTrip(t *testing.T) {
	b := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := NewRequester(b, "req", "rep")
	go req.Run(ctx, "gw", "gw_1")

	// Echo responder.
	go b.Consume(ctx, "req", "svc", "svc_1", func(_ context.Context, msg *Message) error {
		return b.Publish(ctx, "rep", msg.CorrID, msg.Data)
	})

	msg, err := req.Request(ctx, "corr-42", []byte(`{"cmd":"balance"}`), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "corr-42", msg.CorrID)
	assert.JSONEq(t, `{"cmd":"balance"}`, string(msg.Data))
	assert.Equal(t, 0, req.Pending(), "pending map must shrink once the reply arrives")
}

func TestRequesterTimeoutClearsPending(t *testing.T) {
	b := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := NewRequester(b, "req", "rep")
	go req.Run(ctx, "gw", "gw_1")

	_, err := req.Request(ctx, "corr-silent", []byte("{}"), 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, req.Pending())
}

func TestConsumerNameIsStablePerProcess(t *testing.T) {
	assert.Equal(t, "analytics_1234", ConsumerName("analytics", 1234))
}
