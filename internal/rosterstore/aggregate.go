package rosterstore

import (
	"sync"
	"time"
)

// DefaultAggregationTTL is the cache lifetime for rank summaries.
const DefaultAggregationTTL = 60 * time.Second

// RankSummary is the grouped power/count aggregate over the target rank
// buckets below the caller's current rank. Partial marks a best-effort result
// where one or more per-rank fetches failed; partial results are never cached
// so a retry can self-heal.
type RankSummary struct {
	TotalPower float64
	TotalCount int
	Ranks      []string
	Partial    bool
	ComputedAt time.Time
}

// aggregationCache holds the last complete summary for its TTL. A cached
// summary younger than the TTL is returned unconditionally, even when the
// underlying records have changed in the meantime; there is no background
// refresh. This is the only time-based invalidation in the store.
type aggregationCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	summary RankSummary
	valid   bool
}

func newAggregationCache(ttl time.Duration) *aggregationCache {
	if ttl <= 0 {
		ttl = DefaultAggregationTTL
	}
	return &aggregationCache{ttl: ttl}
}

func (c *aggregationCache) get(now time.Time) (RankSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || now.Sub(c.summary.ComputedAt) >= c.ttl {
		return RankSummary{}, false
	}
	return c.summary, true
}

func (c *aggregationCache) put(s RankSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = s
	c.valid = true
}
