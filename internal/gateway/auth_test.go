package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoleResolution(t *testing.T) {
	a := NewAuth(100)

	assert.Equal(t, RoleOwner, a.Role(100))
	assert.Equal(t, RoleUnknown, a.Role(200))

	a.GrantGuest(200, time.Hour)
	assert.Equal(t, RoleGuest, a.Role(200))
}

func TestGuestSessionExpires(t *testing.T) {
	a := NewAuth(100)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	a.GrantGuest(200, 30*time.Minute)
	assert.Equal(t, RoleGuest, a.Role(200))

	now = now.Add(31 * time.Minute)
	assert.Equal(t, RoleUnknown, a.Role(200))

	a.SweepExpired()
	assert.Zero(t, a.SessionCount())
}

func TestCommandACL(t *testing.T) {
	a := NewAuth(100)

	for _, cmd := range []string{"start", "help", "balance", "holdings", "signals", "health"} {
		assert.True(t, a.Allowed(cmd, RoleGuest), cmd)
	}
	for _, cmd := range []string{"mute", "guest", "add_wallet", "silence", "status"} {
		assert.False(t, a.Allowed(cmd, RoleGuest), cmd)
		assert.True(t, a.Allowed(cmd, RoleOwner), cmd)
	}
	assert.False(t, a.Allowed("help", RoleUnknown))
}
