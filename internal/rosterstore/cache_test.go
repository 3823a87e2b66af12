package rosterstore

import (
	"fmt"
	"testing"
)

func TestMemoryCacheEviction(t *testing.T) {
	c, err := newMemoryCache(3, nil)
	if err != nil {
		t.Fatalf("newMemoryCache: %v", err)
	}

	for i := 0; i < 5; i++ {
		c.populate(testRecord(fmt.Sprintf("r%d", i), "B", 100))
	}

	if got := c.recentLen(); got != 3 {
		t.Fatalf("recent tier holds %d entries, want 3", got)
	}
	if _, ok := c.get("r0"); ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := c.get("r4"); !ok {
		t.Error("newest entry missing")
	}
}

func TestMemoryCachePinnedSurvivesChurn(t *testing.T) {
	c, err := newMemoryCache(2, nil)
	if err != nil {
		t.Fatalf("newMemoryCache: %v", err)
	}

	pinned := testRecord("fav", "S", 999)
	c.pin(pinned)

	for i := 0; i < 50; i++ {
		c.populate(testRecord(fmt.Sprintf("r%d", i), "B", 100))
	}

	got, ok := c.get("fav")
	if !ok {
		t.Fatal("pinned entry evicted by recent-tier churn")
	}
	if got != pinned {
		t.Error("pinned tier returned a different instance")
	}
}

func TestMemoryCachePutRefreshesPinnedEntry(t *testing.T) {
	c, err := newMemoryCache(2, nil)
	if err != nil {
		t.Fatalf("newMemoryCache: %v", err)
	}

	c.pin(testRecord("r1", "B", 100))
	updated := testRecord("r1", "A", 500)
	c.put(updated)

	got, ok := c.pinnedGet("r1")
	if !ok {
		t.Fatal("pinned entry lost on put")
	}
	if got != updated {
		t.Error("pinned tier still serves the stale instance")
	}

	// put never pins by itself.
	c.put(testRecord("r2", "B", 100))
	if _, ok := c.pinnedGet("r2"); ok {
		t.Error("put added an entry to the pinned tier")
	}
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	c, err := newMemoryCache(4, nil)
	if err != nil {
		t.Fatalf("newMemoryCache: %v", err)
	}

	c.pin(testRecord("r1", "B", 100))
	c.populate(testRecord("r1", "B", 100))
	c.populate(testRecord("r2", "B", 100))

	c.delete("r1")
	if _, ok := c.get("r1"); ok {
		t.Error("deleted entry still served")
	}
	if got := c.pinnedLen(); got != 0 {
		t.Errorf("pinned tier holds %d entries after delete, want 0", got)
	}

	c.pin(testRecord("r3", "B", 100))
	c.clear()
	if c.pinnedLen() != 0 || c.recentLen() != 0 {
		t.Errorf("clear left %d pinned / %d recent entries", c.pinnedLen(), c.recentLen())
	}
}
