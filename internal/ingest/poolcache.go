package ingest

import (
	"container/list"
	"sync"
	"time"

	"github.com/soulscout/soulscout/internal/metrics"
	"github.com/soulscout/soulscout/internal/model"
)

// PoolCache is an LRU cache of pool snapshots with a per-entry TTL. Reads
// past the TTL behave as misses and evict the entry.
type PoolCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	entries map[string]*list.Element
	order   *list.List // front = most recently used

	hits   int64
	misses int64
}

type poolEntry struct {
	id      string
	pool    model.PoolInfo
	touched time.Time
}

// NewPoolCache builds a cache bounded by maxSize entries and ttl.
func NewPoolCache(maxSize int, ttl time.Duration) *PoolCache {
	return &PoolCache{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Put inserts or refreshes a pool, evicting the least recently used entry
// when full.
func (c *PoolCache) Put(pool model.PoolInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[pool.PoolID]; ok {
		e := el.Value.(*poolEntry)
		e.pool = pool
		e.touched = c.now()
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.maxSize {
		c.evictLocked()
	}
	el := c.order.PushFront(&poolEntry{id: pool.PoolID, pool: pool, touched: c.now()})
	c.entries[pool.PoolID] = el
}

// Get returns the pool if present and fresh, refreshing its LRU position.
func (c *PoolCache) Get(poolID string) (model.PoolInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[poolID]
	if !ok {
		c.misses++
		metrics.PoolCacheLookups.WithLabelValues("miss").Inc()
		return model.PoolInfo{}, false
	}
	e := el.Value.(*poolEntry)
	if c.now().Sub(e.touched) > c.ttl {
		c.removeLocked(el)
		c.misses++
		metrics.PoolCacheLookups.WithLabelValues("miss").Inc()
		return model.PoolInfo{}, false
	}
	c.order.MoveToFront(el)
	c.hits++
	metrics.PoolCacheLookups.WithLabelValues("hit").Inc()
	return e.pool, true
}

// All returns every fresh pool in the cache, evicting stale entries as it
// goes. Used by the snapshot persister.
func (c *PoolCache) All() []model.PoolInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	pools := make([]model.PoolInfo, 0, c.order.Len())
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*poolEntry)
		if e.touched.Before(cutoff) {
			c.removeLocked(el)
		} else {
			pools = append(pools, e.pool)
		}
		el = next
	}
	return pools
}

// Len reports the number of cached entries, stale included.
func (c *PoolCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// HitRate reports hits/(hits+misses), zero before any lookup.
func (c *PoolCache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

func (c *PoolCache) evictLocked() {
	if el := c.order.Back(); el != nil {
		c.removeLocked(el)
	}
}

func (c *PoolCache) removeLocked(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*poolEntry).id)
}
