// Package backoff implements the exponential backoff with jitter used by
// every outbound I/O call (bus, DEX, price, Solana, store, chat).
package backoff

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Policy describes one endpoint's retry behavior. A success resets the
// attempt counter.
type Policy struct {
	Base        time.Duration
	Factor      float64
	Cap         time.Duration
	Jitter      float64 // fraction of the delay, e.g. 0.3 for ±30%
	MaxAttempts int
}

// DefaultPolicy matches the bus reconnection contract: 1s base, doubling,
// 30s cap, ±30% jitter, five attempts per call.
func DefaultPolicy() Policy {
	return Policy{
		Base:        time.Second,
		Factor:      2.0,
		Cap:         30 * time.Second,
		Jitter:      0.3,
		MaxAttempts: 5,
	}
}

// Delay returns the jittered delay for a zero-based attempt number.
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.Base)
	for i := 0; i < attempt; i++ {
		d *= p.Factor
		if d >= float64(p.Cap) {
			d = float64(p.Cap)
			break
		}
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Retry runs fn up to MaxAttempts times, sleeping the policy delay between
// failures. The context cancels the sleep.
func (p Policy) Retry(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return err
}

// Tracker keeps per-endpoint backoff state for long-lived reconnect loops:
// the current delay grows on Failure, resets on Success, and Ready reports
// whether enough time has passed since the last attempt so that concurrent
// callers do not hammer the endpoint.
type Tracker struct {
	mu          sync.Mutex
	policy      Policy
	attempt     int
	delay       time.Duration
	lastAttempt time.Time
}

// NewTracker returns a tracker starting at the policy base delay.
func NewTracker(p Policy) *Tracker {
	return &Tracker{policy: p, delay: p.Base}
}

// Ready reports whether a new attempt is due and, if so, stamps it.
func (t *Tracker) Ready(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attempt > 0 && now.Sub(t.lastAttempt) < t.delay {
		return false
	}
	t.lastAttempt = now
	return true
}

// Failure advances the backoff and returns the delay before the next try.
func (t *Tracker) Failure() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempt++
	d := t.policy.Delay(t.attempt - 1)
	next := time.Duration(float64(t.delay) * t.policy.Factor)
	if next > t.policy.Cap {
		next = t.policy.Cap
	}
	t.delay = next
	return d
}

// Success resets the tracker to its base state.
func (t *Tracker) Success() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempt = 0
	t.delay = t.policy.Base
}

// Attempts returns how many consecutive failures have been recorded.
func (t *Tracker) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempt
}
