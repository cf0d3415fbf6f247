package gateway

import (
	"sync"
	"time"
)

// RateLimiter enforces a rolling per-user messages-per-minute window and a
// global hourly budget for actionable alert deliveries.
type RateLimiter struct {
	perMin        int
	globalPerHour int
	now           func() time.Time

	mu         sync.Mutex
	perUser    map[int64][]time.Time
	actionable []time.Time
}

// NewRateLimiter builds an empty limiter.
func NewRateLimiter(msgsPerMin, globalActionablePerHour int) *RateLimiter {
	return &RateLimiter{
		perMin:        msgsPerMin,
		globalPerHour: globalActionablePerHour,
		now:           time.Now,
		perUser:       make(map[int64][]time.Time),
	}
}

// AllowUser consumes one slot in the user's rolling minute window,
// reporting false when the window is full.
func (l *RateLimiter) AllowUser(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-time.Minute)
	recent := trimBefore(l.perUser[userID], cutoff)
	if len(recent) >= l.perMin {
		l.perUser[userID] = recent
		return false
	}
	l.perUser[userID] = append(recent, now)
	return true
}

// AllowActionable reports whether the hourly actionable budget has room.
func (l *RateLimiter) AllowActionable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actionable = trimBefore(l.actionable, l.now().Add(-time.Hour))
	return len(l.actionable) < l.globalPerHour
}

// RecordActionable consumes one slot of the hourly budget.
func (l *RateLimiter) RecordActionable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actionable = append(l.actionable, l.now())
}

// Sweep drops stale windows so idle users don't accumulate.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, stamps := range l.perUser {
		recent := trimBefore(stamps, now.Add(-2*time.Minute))
		if len(recent) == 0 {
			delete(l.perUser, id)
		} else {
			l.perUser[id] = recent
		}
	}
	l.actionable = trimBefore(l.actionable, now.Add(-time.Hour))
}

func trimBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && stamps[i].Before(cutoff) {
		i++
	}
	return append([]time.Time(nil), stamps[i:]...)
}
