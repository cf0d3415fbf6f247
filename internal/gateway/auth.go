// Package gateway bridges the chat surface to the bus: it authenticates
// and rate-limits inbound commands, relays them with correlation IDs, and
// delivers outbound alerts and replies.
package gateway

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Role is the resolved privilege level of a chat user.
type Role int

const (
	RoleUnknown Role = iota
	RoleGuest
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleGuest:
		return "guest"
	default:
		return "unknown"
	}
}

var guestCommands = map[string]struct{}{
	"start": {}, "help": {}, "balance": {}, "holdings": {}, "signals": {}, "health": {},
}

// Auth resolves roles and tracks guest sessions. The owner is configured;
// guests exist only while their session TTL holds.
type Auth struct {
	ownerID int64
	now     func() time.Time

	mu       sync.Mutex
	sessions map[int64]time.Time
}

// NewAuth builds an auth manager for one configured owner.
func NewAuth(ownerID int64) *Auth {
	return &Auth{ownerID: ownerID, now: time.Now, sessions: make(map[int64]time.Time)}
}

// Role resolves a user id.
func (a *Auth) Role(userID int64) Role {
	if userID == a.ownerID {
		return RoleOwner
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if exp, ok := a.sessions[userID]; ok && a.now().Before(exp) {
		return RoleGuest
	}
	return RoleUnknown
}

// Allowed reports whether a role may run a command.
func (a *Auth) Allowed(cmd string, role Role) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleGuest:
		_, ok := guestCommands[cmd]
		return ok
	default:
		return false
	}
}

// GrantGuest installs or refreshes a guest session.
func (a *Auth) GrantGuest(userID int64, d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[userID] = a.now().Add(d)
	log.Info().Int64("user_id", userID).Dur("ttl", d).Msg("guest session created")
}

// SweepExpired drops lapsed sessions.
func (a *Auth) SweepExpired() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	for id, exp := range a.sessions {
		if !now.Before(exp) {
			delete(a.sessions, id)
		}
	}
}

// SessionCount reports live sessions, expired ones included until sweep.
func (a *Auth) SessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}
