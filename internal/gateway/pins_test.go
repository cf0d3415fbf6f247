package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulscout/soulscout/internal/bus"
)

func TestPinIssueAndRedeem(t *testing.T) {
	p := NewPins(bus.NewMemory())
	ctx := context.Background()

	pin, err := p.Issue(ctx, 100, 30*time.Minute)
	require.NoError(t, err)
	assert.Len(t, pin, 6)

	residual, ok, err := p.Redeem(ctx, pin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 30*time.Minute, residual, float64(2*time.Second))
}

func TestPinIsSingleUse(t *testing.T) {
	p := NewPins(bus.NewMemory())
	ctx := context.Background()

	pin, err := p.Issue(ctx, 100, time.Hour)
	require.NoError(t, err)

	_, ok, err := p.Redeem(ctx, pin)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = p.Redeem(ctx, pin)
	require.NoError(t, err)
	assert.False(t, ok, "a redeemed PIN is spent")
}

func TestUnknownPinRejected(t *testing.T) {
	p := NewPins(bus.NewMemory())
	_, ok, err := p.Redeem(context.Background(), "000000")
	require.NoError(t, err)
	assert.False(t, ok)
}
