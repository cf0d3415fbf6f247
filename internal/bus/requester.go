package bus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Requester implements correlation-ID request/reply on top of the two
// stream primitives: it publishes to a request stream and holds a pending
// map of corr-id to reply channel, fed by a single consumer on the reply
// stream. Replies for unknown correlation IDs are logged and dropped.
type Requester struct {
	bus           Bus
	requestStream string
	replyStream   string

	mu      sync.Mutex
	pending map[string]chan *Message
}

// NewRequester builds a requester; Run must be started for replies to flow.
func NewRequester(b Bus, requestStream, replyStream string) *Requester {
	return &Requester{
		bus:           b,
		requestStream: requestStream,
		replyStream:   replyStream,
		pending:       make(map[string]chan *Message),
	}
}

// Run consumes the reply stream until ctx is done, dispatching replies to
// waiting callers by correlation ID.
func (r *Requester) Run(ctx context.Context, group, consumer string) error {
	return r.bus.Consume(ctx, r.replyStream, group, consumer, func(_ context.Context, msg *Message) error {
		r.mu.Lock()
		ch, ok := r.pending[msg.CorrID]
		if ok {
			delete(r.pending, msg.CorrID)
		}
		r.mu.Unlock()
		if !ok {
			log.Warn().Str("corr_id", msg.CorrID).Msg("reply for unknown correlation id dropped")
			return nil
		}
		ch <- msg
		return nil
	})
}

// Request publishes the payload with the given correlation ID and blocks
// until the matching reply arrives or the timeout elapses.
func (r *Requester) Request(ctx context.Context, corrID string, payload []byte, timeout time.Duration) (*Message, error) {
	ch := make(chan *Message, 1)
	r.mu.Lock()
	r.pending[corrID] = ch
	r.mu.Unlock()

	if err := r.bus.Publish(ctx, r.requestStream, corrID, payload); err != nil {
		r.drop(corrID)
		return nil, err
	}

	select {
	case msg := <-ch:
		return msg, nil
	case <-time.After(timeout):
		r.drop(corrID)
		return nil, ErrTimeout
	case <-ctx.Done():
		r.drop(corrID)
		return nil, ctx.Err()
	}
}

// Pending returns how many requests are awaiting replies.
func (r *Requester) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Requester) drop(corrID string) {
	r.mu.Lock()
	delete(r.pending, corrID)
	r.mu.Unlock()
}
