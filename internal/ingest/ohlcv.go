package ingest

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/soulscout/soulscout/internal/metrics"
	"github.com/soulscout/soulscout/internal/model"
)

// barIntervals are the intervals every price point is aggregated into.
var barIntervals = []int{5, 15}

// Bar is one aggregated OHLCV bar for a pool and interval.
type Bar struct {
	PoolID      string
	IntervalMin int
	Start       time.Time
	model.OHLCVBar
}

// IntervalLabel is the bar map key consumers use ("5m", "15m").
func (b Bar) IntervalLabel() string {
	return strconv.Itoa(b.IntervalMin) + "m"
}

type barBuilder struct {
	poolID      string
	intervalMin int
	start       time.Time
	open        float64
	high        float64
	low         float64
	close       float64
	volume      float64
	hasData     bool
}

func (bb *barBuilder) add(price, volume float64) {
	if !bb.hasData {
		bb.open = price
		bb.high = price
		bb.low = price
		bb.hasData = true
	} else {
		if price > bb.high {
			bb.high = price
		}
		if price < bb.low {
			bb.low = price
		}
	}
	bb.close = price
	bb.volume += volume
}

func (bb *barBuilder) complete(now time.Time) bool {
	return !now.Before(bb.start.Add(time.Duration(bb.intervalMin) * time.Minute))
}

func (bb *barBuilder) bar() Bar {
	return Bar{
		PoolID:      bb.poolID,
		IntervalMin: bb.intervalMin,
		Start:       bb.start,
		OHLCVBar: model.OHLCVBar{
			Open:      bb.open,
			High:      bb.high,
			Low:       bb.low,
			Close:     bb.close,
			VolumeUSD: bb.volume,
		},
	}
}

// Aggregator builds 5m and 15m OHLCV bars from a stream of price points.
// Bars are keyed (pool, interval, bar start); a bar completes once the
// clock passes its end, at which point it moves to the completed batch.
type Aggregator struct {
	mu        sync.Mutex
	now       func() time.Time
	active    map[string]*barBuilder
	completed []Bar
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		now:    time.Now,
		active: make(map[string]*barBuilder),
	}
}

// AddPoint folds one price point into the active bars for every interval
// and closes any bars the clock has passed. Non-positive prices and
// negative volumes are dropped.
func (a *Aggregator) AddPoint(poolID string, price, volume float64, ts time.Time) {
	if price <= 0 || volume < 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, interval := range barIntervals {
		start := ts.Truncate(time.Duration(interval) * time.Minute)
		key := barKey(poolID, interval, start)
		bb, ok := a.active[key]
		if !ok {
			bb = &barBuilder{poolID: poolID, intervalMin: interval, start: start}
			a.active[key] = bb
		}
		bb.add(price, volume)
	}

	a.closeCompletedLocked(a.now())
}

// CurrentBar returns the in-progress bar for a pool and interval, if it has
// data.
func (a *Aggregator) CurrentBar(poolID string, intervalMin int) (Bar, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.now().Truncate(time.Duration(intervalMin) * time.Minute)
	bb, ok := a.active[barKey(poolID, intervalMin, start)]
	if !ok || !bb.hasData {
		return Bar{}, false
	}
	return bb.bar(), true
}

// DrainCompleted returns and clears every completed bar.
func (a *Aggregator) DrainCompleted() []Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closeCompletedLocked(a.now())
	bars := a.completed
	a.completed = nil
	return bars
}

// Flush closes everything, partial bars included, and resets the
// aggregator. Called on shutdown so in-flight bars are not lost.
func (a *Aggregator) Flush() []Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	bars := a.completed
	for _, bb := range a.active {
		if bb.hasData {
			bars = append(bars, bb.bar())
		}
	}
	a.completed = nil
	a.active = make(map[string]*barBuilder)
	return bars
}

// CleanupOld drops active and completed bars older than maxAge.
func (a *Aggregator) CleanupOld(maxAge time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-maxAge)
	for key, bb := range a.active {
		if bb.start.Before(cutoff) {
			delete(a.active, key)
		}
	}
	kept := a.completed[:0]
	for _, b := range a.completed {
		if !b.Start.Before(cutoff) {
			kept = append(kept, b)
		}
	}
	a.completed = kept
}

func (a *Aggregator) closeCompletedLocked(now time.Time) {
	for key, bb := range a.active {
		if bb.complete(now) {
			if bb.hasData {
				a.completed = append(a.completed, bb.bar())
				metrics.BarsCompleted.WithLabelValues(bb.bar().IntervalLabel()).Inc()
			}
			delete(a.active, key)
		}
	}
}

func barKey(poolID string, intervalMin int, start time.Time) string {
	return fmt.Sprintf("%s:%d:%d", poolID, intervalMin, start.Unix())
}
