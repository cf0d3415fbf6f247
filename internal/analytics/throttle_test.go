package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

func newTestThrottle() (*AlertThrottle, *time.Time) {
	th := NewAlertThrottle(config.Default().Throttle)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }
	return th, &now
}

func TestThrottleCooldownPerMint(t *testing.T) {
	th, now := newTestThrottle()

	assert.False(t, th.ShouldThrottle("A", model.BandActionable))
	th.RecordAlert("A", model.BandActionable)
	assert.True(t, th.ShouldThrottle("A", model.BandActionable), "immediately after recording")
	assert.False(t, th.ShouldThrottle("B", model.BandActionable), "other mints unaffected")

	*now = now.Add(359 * time.Minute)
	assert.True(t, th.ShouldThrottle("A", model.BandActionable), "still inside the 360m cooldown")

	*now = now.Add(2 * time.Minute)
	assert.False(t, th.ShouldThrottle("A", model.BandActionable))
}

func TestThrottlePerBandCapWithinWindow(t *testing.T) {
	th, _ := newTestThrottle()

	// Actionable cap is 5 per 60m window.
	for i := 0; i < 5; i++ {
		mint := fmt.Sprintf("mint-%d", i)
		assert.False(t, th.ShouldThrottle(mint, model.BandActionable))
		th.RecordAlert(mint, model.BandActionable)
	}
	assert.True(t, th.ShouldThrottle("mint-new", model.BandActionable))
}

func TestThrottleGlobalCapWithinWindow(t *testing.T) {
	th, _ := newTestThrottle()

	// 10 alerts across bands exhaust the global window cap.
	for i := 0; i < 5; i++ {
		th.RecordAlert(fmt.Sprintf("a-%d", i), model.BandActionable)
	}
	for i := 0; i < 5; i++ {
		th.RecordAlert(fmt.Sprintf("h-%d", i), model.BandHeadsUp)
	}
	assert.True(t, th.ShouldThrottle("fresh", model.BandHighConviction))
}

func TestThrottleHistoryPrunedPastMaxCooldown(t *testing.T) {
	th, now := newTestThrottle()

	th.RecordAlert("A", model.BandHeadsUp)
	th.RecordAlert("B", model.BandActionable)
	assert.Equal(t, 2, th.HistoryLen())

	// Max cooldown is 360m (actionable); anything older must be pruned on
	// the next record.
	*now = now.Add(361 * time.Minute)
	th.RecordAlert("C", model.BandHeadsUp)
	assert.Equal(t, 1, th.HistoryLen())
}
