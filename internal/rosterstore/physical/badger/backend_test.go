package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

func newTestBackend(t *testing.T) physical.Backend {
	t.Helper()
	b, err := NewFactory(context.Background(), map[string]string{KeyInMemory: "true"})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return b
}

func testRecord(id, rank, role string, level int, power float64) *physical.Record {
	return &physical.Record{
		ID:        id,
		Rank:      rank,
		Role:      role,
		Level:     level,
		Power:     power,
		CreatedAt: 1700000000000 + int64(level),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	rec := testRecord("r1", "B", "tank", 12, 340.5)
	rec.Attrs = map[string]string{"guild": "ember", "region": "eu"}

	if err := b.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := b.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != rec.ID || got.Rank != rec.Rank || got.Role != rec.Role {
		t.Errorf("got %+v, want %+v", got, rec)
	}
	if got.Level != rec.Level || got.Power != rec.Power || got.CreatedAt != rec.CreatedAt {
		t.Errorf("got %+v, want %+v", got, rec)
	}
	if len(got.Attrs) != 2 || got.Attrs["guild"] != "ember" || got.Attrs["region"] != "eu" {
		t.Errorf("attrs = %v, want %v", got.Attrs, rec.Attrs)
	}
}

func TestGetNotFound(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Get(context.Background(), "missing")
	if !errors.Is(err, physical.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReplaceMovesIndexEntries(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.Put(ctx, testRecord("r1", "B", "tank", 12, 340)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Put(ctx, testRecord("r1", "A", "healer", 30, 900)); err != nil {
		t.Fatalf("Put replacement: %v", err)
	}

	old, err := b.Query(ctx, &physical.QueryOptions{Filter: physical.Filter{Rank: "B"}})
	if err != nil {
		t.Fatalf("Query old rank: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("old rank index still has %d entries", len(old))
	}

	cur, err := b.Query(ctx, &physical.QueryOptions{Filter: physical.Filter{Rank: "A", Role: "healer"}})
	if err != nil {
		t.Fatalf("Query new rank: %v", err)
	}
	if len(cur) != 1 || cur[0].ID != "r1" {
		t.Errorf("new rank query = %v, want single r1", cur)
	}

	count, err := b.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d after replace, want 1", count)
	}
}

func TestDeleteRemovesIndexEntries(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.Put(ctx, testRecord("r1", "B", "tank", 12, 340)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := b.Get(ctx, "r1"); !errors.Is(err, physical.ErrNotFound) {
		t.Errorf("Get after delete: %v, want ErrNotFound", err)
	}

	for _, f := range []physical.Filter{
		{Rank: "B"},
		{Role: "tank"},
		{MinLevel: 1},
		{MinPower: 1},
		{Rank: "B", Role: "tank"},
	} {
		recs, err := b.Query(ctx, &physical.QueryOptions{Filter: f})
		if err != nil {
			t.Fatalf("Query %+v: %v", f, err)
		}
		if len(recs) != 0 {
			t.Errorf("filter %+v returned %d records after delete", f, len(recs))
		}
	}
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
	count, err := b.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestCountTracksWrites(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	assertCount := func(want int64) {
		t.Helper()
		got, err := b.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
	}

	assertCount(0)
	if err := b.Put(ctx, testRecord("r1", "B", "tank", 12, 340)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Put(ctx, testRecord("r2", "C", "healer", 8, 120)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	assertCount(2)

	// Replacement keeps the count stable.
	if err := b.Put(ctx, testRecord("r1", "A", "tank", 20, 500)); err != nil {
		t.Fatalf("Put replacement: %v", err)
	}
	assertCount(2)

	if err := b.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	assertCount(1)
	if err := b.Delete(ctx, "r2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	assertCount(0)
}

func TestPutBatchEmpty(t *testing.T) {
	b := newTestBackend(t)
	if err := b.PutBatch(context.Background(), nil); err != nil {
		t.Fatalf("PutBatch(nil): %v", err)
	}
}

func TestPutBatch(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	recs := []*physical.Record{
		testRecord("r1", "B", "tank", 12, 340),
		testRecord("r2", "B", "healer", 15, 400),
		testRecord("r3", "C", "dps", 8, 120),
	}
	if err := b.PutBatch(ctx, recs); err != nil {
		t.Fatalf("PutBatch: %v", err)
	}

	count, err := b.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	got, err := b.Query(ctx, &physical.QueryOptions{Filter: physical.Filter{Rank: "B"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("rank B query returned %d records, want 2", len(got))
	}
}

func TestQueryResidualFiltering(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		role := "tank"
		if i%2 == 0 {
			role = "healer"
		}
		rec := testRecord(fmt.Sprintf("r%02d", i), "B", role, i, float64(i*10))
		if err := b.Put(ctx, rec); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	got, err := b.Query(ctx, &physical.QueryOptions{
		Filter: physical.Filter{Rank: "B", Role: "tank", MinLevel: 5, MinPower: 70},
		Limit:  5,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) == 0 || len(got) > 5 {
		t.Fatalf("got %d records, want 1..5", len(got))
	}
	for _, rec := range got {
		if rec.Rank != "B" || rec.Role != "tank" || rec.Level < 5 || rec.Power < 70 {
			t.Errorf("record %+v fails the filter", rec)
		}
	}
}

// Ranks, roles, and IDs may contain the key separator; exact-match queries
// must neither leak such records into neighboring buckets nor lose them.
func TestQueryValuesContainingSeparator(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.Put(ctx, testRecord("slashed", "A/B", "tank", 5, 50)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Put(ctx, testRecord("plain", "A", "tank", 5, 50)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Put(ctx, testRecord("team/7", "B", "healer", 9, 90)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := b.Query(ctx, &physical.QueryOptions{Filter: physical.Filter{Rank: "A"}})
	if err != nil {
		t.Fatalf("Query rank A: %v", err)
	}
	if len(got) != 1 || got[0].ID != "plain" {
		t.Errorf("rank A query = %v, want only the plain record", got)
	}

	got, err = b.Query(ctx, &physical.QueryOptions{Filter: physical.Filter{Rank: "A/B"}})
	if err != nil {
		t.Fatalf("Query rank A/B: %v", err)
	}
	if len(got) != 1 || got[0].ID != "slashed" {
		t.Errorf("rank A/B query = %v, want only the slashed record", got)
	}

	got, err = b.Query(ctx, &physical.QueryOptions{Filter: physical.Filter{Rank: "A/B", Role: "tank"}})
	if err != nil {
		t.Fatalf("Query composite: %v", err)
	}
	if len(got) != 1 || got[0].ID != "slashed" {
		t.Errorf("composite query = %v, want only the slashed record", got)
	}

	// A record whose ID carries the separator is still reachable through
	// every index scan, not just point lookups.
	got, err = b.Query(ctx, &physical.QueryOptions{Filter: physical.Filter{Rank: "B"}})
	if err != nil {
		t.Fatalf("Query rank B: %v", err)
	}
	if len(got) != 1 || got[0].ID != "team/7" {
		t.Errorf("rank B query = %v, want the team/7 record", got)
	}

	if err := b.Delete(ctx, "team/7"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = b.Query(ctx, &physical.QueryOptions{Filter: physical.Filter{Rank: "B"}})
	if err != nil {
		t.Fatalf("Query rank B after delete: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("rank B query after delete = %v, want empty", got)
	}
}

func TestQueryLevelRangeBoundsInclusive(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for i := 1; i <= 30; i++ {
		if err := b.Put(ctx, testRecord(fmt.Sprintf("r%02d", i), "B", "tank", i, float64(i))); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	got, err := b.Query(ctx, &physical.QueryOptions{
		Filter: physical.Filter{MinLevel: 10, MaxLevel: 20},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 11 {
		t.Fatalf("got %d records, want 11 (bounds inclusive)", len(got))
	}
	for _, rec := range got {
		if rec.Level < 10 || rec.Level > 20 {
			t.Errorf("level %d outside [10,20]", rec.Level)
		}
	}
}

func TestQuerySortOrder(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		rec := testRecord(fmt.Sprintf("r%d", i), "B", "tank", i, float64(i))
		rec.CreatedAt = 1700000000000 + int64(i)*1000
		if err := b.Put(ctx, rec); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	asc, err := b.Query(ctx, &physical.QueryOptions{SortField: "createdAt", SortOrder: physical.Asc})
	if err != nil {
		t.Fatalf("Query asc: %v", err)
	}
	if len(asc) != 10 {
		t.Fatalf("asc returned %d records, want 10", len(asc))
	}
	for i := 1; i < len(asc); i++ {
		if asc[i].CreatedAt < asc[i-1].CreatedAt {
			t.Fatalf("asc order violated at %d", i)
		}
	}

	desc, err := b.Query(ctx, &physical.QueryOptions{SortField: "createdAt", SortOrder: physical.Desc})
	if err != nil {
		t.Fatalf("Query desc: %v", err)
	}
	if len(desc) != 10 {
		t.Fatalf("desc returned %d records, want 10", len(desc))
	}
	for i := 1; i < len(desc); i++ {
		if desc[i].CreatedAt > desc[i-1].CreatedAt {
			t.Fatalf("desc order violated at %d", i)
		}
	}
}

func TestQueryPaginationConsistency(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if err := b.Put(ctx, testRecord(fmt.Sprintf("r%02d", i), "B", "tank", i, float64(i))); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	filter := physical.Filter{Rank: "B"}
	full, err := b.Query(ctx, &physical.QueryOptions{Filter: filter, Limit: 15})
	if err != nil {
		t.Fatalf("Query full: %v", err)
	}
	if len(full) != 15 {
		t.Fatalf("full page = %d records, want 15", len(full))
	}

	page, err := b.Query(ctx, &physical.QueryOptions{Filter: filter, Offset: 10, Limit: 5})
	if err != nil {
		t.Fatalf("Query page: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("page = %d records, want 5", len(page))
	}
	for i, rec := range page {
		if rec.ID != full[10+i].ID {
			t.Errorf("page[%d] = %s, want %s", i, rec.ID, full[10+i].ID)
		}
	}
}

func TestQueryOffsetBeyondEnd(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.Put(ctx, testRecord("r1", "B", "tank", 1, 10)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := b.Query(ctx, &physical.QueryOptions{
		Filter: physical.Filter{Rank: "B"},
		Offset: 100,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

// A rank query over a populated store must stop at the limit instead of
// visiting the whole collection, and every result must carry the filtered
// rank. Results follow the rank index's traversal order regardless of the
// requested sort field.
func TestQueryRankAcrossLargeCollection(t *testing.T) {
	if testing.Short() {
		t.Skip("large collection scenario")
	}

	b := newTestBackend(t)
	ctx := context.Background()
	ranks := []string{"E", "D", "C", "B", "A", "S", "SS", "X", "Y", "Z"}

	for _, rank := range ranks {
		batch := make([]*physical.Record, 0, 1000)
		for i := 0; i < 1000; i++ {
			batch = append(batch, testRecord(fmt.Sprintf("%s-%04d", rank, i), rank, "tank", i%60, float64(i)))
		}
		if err := b.PutBatch(ctx, batch); err != nil {
			t.Fatalf("PutBatch rank %s: %v", rank, err)
		}
	}

	got, err := b.Query(ctx, &physical.QueryOptions{
		Filter:    physical.Filter{Rank: "B"},
		SortField: "level",
		SortOrder: physical.Desc,
		Limit:     50,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("got %d records, want 50", len(got))
	}
	for i, rec := range got {
		if rec.Rank != "B" {
			t.Fatalf("result %d has rank %s, want B", i, rec.Rank)
		}
	}
	// Reverse traversal of the rank index walks IDs in descending order.
	for i := 1; i < len(got); i++ {
		if got[i].ID > got[i-1].ID {
			t.Errorf("traversal order violated at %d: %s after %s", i, got[i].ID, got[i-1].ID)
		}
	}
}

func TestClosedBackendRejectsOperations(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Closing twice is harmless.
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := b.Put(ctx, testRecord("r1", "B", "tank", 1, 10)); !errors.Is(err, physical.ErrClosed) {
		t.Errorf("Put after close: %v, want ErrClosed", err)
	}
	if _, err := b.Get(ctx, "r1"); !errors.Is(err, physical.ErrClosed) {
		t.Errorf("Get after close: %v, want ErrClosed", err)
	}
	if _, err := b.Query(ctx, nil); !errors.Is(err, physical.ErrClosed) {
		t.Errorf("Query after close: %v, want ErrClosed", err)
	}
	if _, err := b.Count(ctx); !errors.Is(err, physical.ErrClosed) {
		t.Errorf("Count after close: %v, want ErrClosed", err)
	}
}

func TestFactoryOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := NewFactory(ctx, map[string]string{KeyPath: dir, KeyTenant: "guild one"})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}

	if err := b.Put(ctx, testRecord("r1", "B", "tank", 12, 340)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening the same tenant sees the persisted record.
	b, err = NewFactory(ctx, map[string]string{KeyPath: dir, KeyTenant: "guild one"})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()

	got, err := b.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Rank != "B" {
		t.Errorf("rank = %s, want B", got.Rank)
	}
}

func TestSanitizeTenant(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"guild-42", "guild-42"},
		{"guild one", "guild-one"},
		{"../escape", "..-escape"},
		{"a/b\\c", "a-b-c"},
	}
	for _, tt := range tests {
		if got := sanitizeTenant(tt.in); got != tt.want {
			t.Errorf("sanitizeTenant(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
