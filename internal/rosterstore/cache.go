package rosterstore

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/duelhq/rosterdb/internal/observability"
	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

// DefaultRecentCapacity bounds the LRU tier when no capacity is configured.
const DefaultRecentCapacity = 100

// memoryCache is the read-through cache in front of the backend. The pinned
// tier's membership is controlled entirely by the caller and is never evicted
// by policy; the recent tier is a bounded LRU. Both tiers hold the same
// record instances handed to callers, not copies — callers must treat cached
// records as immutable and mutate only via re-save.
type memoryCache struct {
	mu      sync.RWMutex
	pinned  map[string]*physical.Record
	recent  *lru.Cache[string, *physical.Record]
	metrics *observability.Metrics
}

func newMemoryCache(capacity int, metrics *observability.Metrics) (*memoryCache, error) {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}

	c := &memoryCache{
		pinned:  make(map[string]*physical.Record),
		metrics: metrics,
	}

	recent, err := lru.NewWithEvict(capacity, func(string, *physical.Record) {
		c.event("recent", "eviction")
	})
	if err != nil {
		return nil, err
	}
	c.recent = recent
	return c, nil
}

func (c *memoryCache) event(tier, event string) {
	if c.metrics != nil {
		c.metrics.CacheEvents.WithLabelValues(tier, event).Inc()
	}
}

// get checks pinned, then recent.
func (c *memoryCache) get(id string) (*physical.Record, bool) {
	c.mu.RLock()
	rec, ok := c.pinned[id]
	c.mu.RUnlock()
	if ok {
		c.event("pinned", "hit")
		return rec, true
	}

	if rec, ok := c.recent.Get(id); ok {
		c.event("recent", "hit")
		return rec, true
	}
	c.event("recent", "miss")
	return nil, false
}

// pinnedGet checks only the pinned tier.
func (c *memoryCache) pinnedGet(id string) (*physical.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.pinned[id]
	return rec, ok
}

// put refreshes both tiers after a successful write.
func (c *memoryCache) put(rec *physical.Record) {
	c.mu.Lock()
	if _, ok := c.pinned[rec.ID]; ok {
		c.pinned[rec.ID] = rec
	}
	c.mu.Unlock()
	c.recent.Add(rec.ID, rec)
}

// populate inserts into the recent tier after a backend read.
func (c *memoryCache) populate(rec *physical.Record) {
	c.recent.Add(rec.ID, rec)
}

// delete invalidates both tiers.
func (c *memoryCache) delete(id string) {
	c.mu.Lock()
	delete(c.pinned, id)
	c.mu.Unlock()
	c.recent.Remove(id)
}

// pin adds a record to the pinned tier. Pinned entries survive any amount of
// recent-tier churn.
func (c *memoryCache) pin(rec *physical.Record) {
	c.mu.Lock()
	c.pinned[rec.ID] = rec
	c.mu.Unlock()
}

// unpin removes an entry from the pinned tier only.
func (c *memoryCache) unpin(id string) {
	c.mu.Lock()
	delete(c.pinned, id)
	c.mu.Unlock()
}

func (c *memoryCache) pinnedLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pinned)
}

func (c *memoryCache) recentLen() int {
	return c.recent.Len()
}

// clear drops both tiers. Clearing caches never touches persisted records.
func (c *memoryCache) clear() {
	c.mu.Lock()
	c.pinned = make(map[string]*physical.Record)
	c.mu.Unlock()
	c.recent.Purge()
}
