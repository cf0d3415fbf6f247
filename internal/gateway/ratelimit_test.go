package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter() (*RateLimiter, *time.Time) {
	l := NewRateLimiter(3, 2)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestUserRateLimitRollingWindow(t *testing.T) {
	l, now := newTestLimiter()

	assert.True(t, l.AllowUser(1))
	assert.True(t, l.AllowUser(1))
	assert.True(t, l.AllowUser(1))
	assert.False(t, l.AllowUser(1), "fourth message within a minute is rejected")
	assert.True(t, l.AllowUser(2), "limits are per user")

	// The window rolls: one minute after the first message, one slot frees.
	*now = now.Add(61 * time.Second)
	assert.True(t, l.AllowUser(1))
}

func TestGlobalActionableBudget(t *testing.T) {
	l, now := newTestLimiter()

	assert.True(t, l.AllowActionable())
	l.RecordActionable()
	assert.True(t, l.AllowActionable())
	l.RecordActionable()
	assert.False(t, l.AllowActionable(), "budget of 2 per hour exhausted")

	*now = now.Add(61 * time.Minute)
	assert.True(t, l.AllowActionable(), "budget refills after the hour")
}

func TestSweepDropsIdleUsers(t *testing.T) {
	l, now := newTestLimiter()

	l.AllowUser(1)
	l.AllowUser(2)
	*now = now.Add(3 * time.Minute)
	l.Sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.perUser)
}
