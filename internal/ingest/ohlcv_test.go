package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorBuildsBarFromPoints(t *testing.T) {
	a := NewAggregator()
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	now := base
	a.now = func() time.Time { return now }

	a.AddPoint("p1", 1.00, 100, base)
	a.AddPoint("p1", 1.20, 50, base.Add(time.Minute))
	a.AddPoint("p1", 0.90, 25, base.Add(2*time.Minute))
	a.AddPoint("p1", 1.10, 10, base.Add(3*time.Minute))

	bar, ok := a.CurrentBar("p1", 5)
	require.True(t, ok)
	assert.Equal(t, 1.00, bar.Open)
	assert.Equal(t, 1.20, bar.High)
	assert.Equal(t, 0.90, bar.Low)
	assert.Equal(t, 1.10, bar.Close)
	assert.Equal(t, 185.0, bar.VolumeUSD)
}

func TestAggregatorCompletesBarAfterInterval(t *testing.T) {
	a := NewAggregator()
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	now := base
	a.now = func() time.Time { return now }

	a.AddPoint("p1", 1.0, 10, base)
	assert.Empty(t, a.DrainCompleted(), "bar still open inside the interval")

	now = base.Add(5 * time.Minute)
	a.AddPoint("p1", 1.5, 10, now)

	bars := a.DrainCompleted()
	require.Len(t, bars, 1, "only the 5m bar has closed")
	assert.Equal(t, 5, bars[0].IntervalMin)
	assert.Equal(t, base, bars[0].Start)
	assert.Equal(t, 1.0, bars[0].Close)

	assert.Empty(t, a.DrainCompleted(), "drain clears the batch")
}

func TestAggregatorKeysBarsPerPool(t *testing.T) {
	a := NewAggregator()
	ts := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	a.AddPoint("p1", 1.0, 10, ts)
	a.AddPoint("p2", 2.0, 20, ts)

	b1, ok := a.CurrentBar("p1", 5)
	require.True(t, ok)
	b2, ok := a.CurrentBar("p2", 5)
	require.True(t, ok)
	assert.Equal(t, 1.0, b1.Close)
	assert.Equal(t, 2.0, b2.Close)
}

func TestAggregatorRejectsInvalidPoints(t *testing.T) {
	a := NewAggregator()
	ts := time.Now()

	a.AddPoint("p1", 0, 10, ts)
	a.AddPoint("p1", -1, 10, ts)
	a.AddPoint("p1", 1.0, -5, ts)

	_, ok := a.CurrentBar("p1", 5)
	assert.False(t, ok)
}

func TestAggregatorFlushEmitsPartialBars(t *testing.T) {
	a := NewAggregator()
	ts := time.Date(2026, 8, 24, 12, 1, 0, 0, time.UTC)

	a.AddPoint("p1", 1.0, 10, ts)
	bars := a.Flush()
	require.Len(t, bars, 2, "one partial bar per interval")

	intervals := map[int]bool{}
	for _, b := range bars {
		intervals[b.IntervalMin] = true
	}
	assert.True(t, intervals[5])
	assert.True(t, intervals[15])

	_, ok := a.CurrentBar("p1", 5)
	assert.False(t, ok, "flush resets the aggregator")
}

func TestAggregatorCleanupDropsOldBars(t *testing.T) {
	a := NewAggregator()
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	now := base
	a.now = func() time.Time { return now }

	a.AddPoint("p1", 1.0, 10, base.Add(-30*time.Hour))
	a.AddPoint("p2", 1.0, 10, base)

	a.CleanupOld(24 * time.Hour)

	assert.Empty(t, a.DrainCompleted(), "stale completed bar dropped")
	_, ok := a.CurrentBar("p2", 5)
	assert.True(t, ok, "fresh bar survives cleanup")
}

func TestBarIntervalLabel(t *testing.T) {
	assert.Equal(t, "5m", Bar{IntervalMin: 5}.IntervalLabel())
	assert.Equal(t, "15m", Bar{IntervalMin: 15}.IntervalLabel())
}
