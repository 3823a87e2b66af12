package rosterstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duelhq/rosterdb/internal/observability"
	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

// Config configures a per-tenant store instance.
type Config struct {
	// Tenant names the logical store. Distinct tenants never share data or
	// cache state; the backend derives its location from this identifier.
	Tenant string

	// Backend selects a registered physical backend ("badger" by default).
	Backend string

	// BackendConfig is merged over the backend's registered defaults.
	BackendConfig map[string]string

	// RecentCapacity bounds the LRU cache tier. Zero means the default.
	RecentCapacity int

	// AggregationTTL controls the rank summary cache. Zero means the default.
	AggregationTTL time.Duration

	// Legacy, when set, is the source MigrateFromLegacy imports from.
	Legacy LegacySource
}

// Store is the embedded roster record store. All methods are safe for
// concurrent use. Each CRUD call is its own transaction; there is no
// cross-call locking or version check, so a read-modify-write sequence is
// only safe if the caller serializes it externally.
//
// Records returned from reads may alias cache entries shared with other
// callers. Treat them as immutable; to change a record, save a replacement.
type Store struct {
	cfg     Config
	legacy  LegacySource
	metrics *observability.Metrics

	cache    *memoryCache
	agg      *aggregationCache
	migrated atomic.Bool

	mu      sync.Mutex
	backend physical.Backend
}

// New creates a store. The persistent handle is not established until Open
// or the first operation that needs it.
func New(cfg Config, metrics *observability.Metrics) (*Store, error) {
	if cfg.Backend == "" {
		cfg.Backend = "badger"
	}

	cache, err := newMemoryCache(cfg.RecentCapacity, metrics)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}

	return &Store{
		cfg:     cfg,
		legacy:  cfg.Legacy,
		metrics: metrics,
		cache:   cache,
		agg:     newAggregationCache(cfg.AggregationTTL),
	}, nil
}

func (s *Store) startOp(ctx context.Context, name string) (*observability.Operation, context.Context) {
	return observability.StartOperation(ctx, s.metrics, name)
}

// ensureOpen lazily establishes the backend handle, shared for the lifetime
// of the store instance.
func (s *Store) ensureOpen(ctx context.Context) (physical.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		return s.backend, nil
	}

	config := make(map[string]string, len(s.cfg.BackendConfig)+1)
	for k, v := range s.cfg.BackendConfig {
		config[k] = v
	}
	if s.cfg.Tenant != "" {
		config["tenant"] = s.cfg.Tenant
	}

	backend, err := physical.New(ctx, s.cfg.Backend, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.backend = backend
	slog.InfoContext(ctx, "rosterstore opened", "tenant", s.cfg.Tenant, "backend", s.cfg.Backend)
	return backend, nil
}

// Open establishes the persistent handle. It is idempotent; operations also
// open lazily, so calling Open is optional.
func (s *Store) Open(ctx context.Context) (err error) {
	op, ctx := s.startOp(ctx, "rosterstore.open")
	defer func() { op.End(err) }()

	_, err = s.ensureOpen(ctx)
	return err
}

// Close releases the persistent handle and clears both cache tiers. It does
// not delete persisted data; already-committed records are unaffected.
func (s *Store) Close() error {
	s.mu.Lock()
	backend := s.backend
	s.backend = nil
	s.mu.Unlock()

	s.cache.clear()
	if backend == nil {
		return nil
	}
	return backend.Close()
}

func transactionFailed(op string, err error) error {
	if errors.Is(err, physical.ErrClosed) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransactionFailed, err)
}

// validateRecord enforces the record domain before anything touches the
// engine: a non-empty ID, a level of at least 1, and a non-negative power.
// The power index's key encoding is order-preserving only for non-negative
// values, so out-of-domain records are rejected rather than misfiled.
func validateRecord(rec *physical.Record) error {
	if rec == nil || rec.ID == "" {
		return ErrEmptyID
	}
	if rec.Level < 1 {
		return fmt.Errorf("%w: level %d", ErrInvalidRecord, rec.Level)
	}
	if rec.Power < 0 {
		return fmt.Errorf("%w: power %v", ErrInvalidRecord, rec.Power)
	}
	return nil
}

// SaveRecord upserts one record by ID. The record, its derived index
// entries, and the stored count move in a single transaction.
func (s *Store) SaveRecord(ctx context.Context, rec *physical.Record) (err error) {
	op, ctx := s.startOp(ctx, "rosterstore.save")
	defer func() { op.End(err) }()

	if err = validateRecord(rec); err != nil {
		return err
	}

	backend, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	if err = backend.Put(ctx, rec); err != nil {
		return transactionFailed("save record", err)
	}

	s.cache.put(rec)
	return nil
}

// SaveRecordsBatch upserts many records in a single all-or-nothing
// transaction and returns the number saved. An empty batch returns 0 without
// opening a transaction.
func (s *Store) SaveRecordsBatch(ctx context.Context, recs []*physical.Record) (count int, err error) {
	op, ctx := s.startOp(ctx, "rosterstore.save_batch")
	defer func() { op.End(err) }()

	if len(recs) == 0 {
		return 0, nil
	}
	for _, rec := range recs {
		if err = validateRecord(rec); err != nil {
			return 0, err
		}
	}

	backend, err := s.ensureOpen(ctx)
	if err != nil {
		return 0, err
	}
	if err = backend.PutBatch(ctx, recs); err != nil {
		return 0, transactionFailed("save batch", err)
	}

	for _, rec := range recs {
		s.cache.put(rec)
	}
	return len(recs), nil
}

// GetRecord returns the record with the given ID, checking the pinned tier,
// then the recent tier, then the backend. Absence is a normal state, not an
// error: found is false and err is nil.
func (s *Store) GetRecord(ctx context.Context, id string) (rec *physical.Record, found bool, err error) {
	op, ctx := s.startOp(ctx, "rosterstore.get")
	defer func() { op.End(err) }()

	if cached, ok := s.cache.get(id); ok {
		return cached, true, nil
	}

	backend, err := s.ensureOpen(ctx)
	if err != nil {
		return nil, false, err
	}

	rec, err = backend.Get(ctx, id)
	if errors.Is(err, physical.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, transactionFailed("get record", err)
	}

	s.cache.populate(rec)
	return rec, true, nil
}

// DeleteRecord removes the record from the persistent store and from both
// cache tiers. Deleting an absent ID succeeds.
func (s *Store) DeleteRecord(ctx context.Context, id string) (err error) {
	op, ctx := s.startOp(ctx, "rosterstore.delete")
	defer func() { op.End(err) }()

	backend, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	if err = backend.Delete(ctx, id); err != nil {
		return transactionFailed("delete record", err)
	}

	s.cache.delete(id)
	return nil
}

// CountRecords returns the total record count without scanning.
func (s *Store) CountRecords(ctx context.Context) (count int64, err error) {
	op, ctx := s.startOp(ctx, "rosterstore.count")
	defer func() { op.End(err) }()

	backend, err := s.ensureOpen(ctx)
	if err != nil {
		return 0, err
	}
	count, err = backend.Count(ctx)
	if err != nil {
		return 0, transactionFailed("count records", err)
	}
	return count, nil
}

// QueryRecords returns records matching every supplied filter predicate,
// paginated by offset and limit, in the natural order of the index the
// planner chooses. When that index differs from sortField the result order
// follows the chosen index; see the planner for the trade-off.
func (s *Store) QueryRecords(ctx context.Context, filter physical.Filter, offset, limit int, sortField string, order physical.SortOrder) (recs []*physical.Record, err error) {
	op, ctx := s.startOp(ctx, "rosterstore.query")
	defer func() { op.End(err) }()

	backend, err := s.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}

	recs, err = backend.Query(ctx, &physical.QueryOptions{
		Filter:    filter,
		SortField: sortField,
		SortOrder: order,
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		return nil, transactionFailed("query records", err)
	}
	if s.metrics != nil {
		s.metrics.QueryRecords.WithLabelValues("query").Add(float64(len(recs)))
	}
	return recs, nil
}

// AggregatedMetric sums power and counts records across the rank buckets
// more than two positions below currentRank in rankOrder. A summary younger
// than the TTL is returned unconditionally. Per-rank fetch failures degrade
// to a Partial result that is never cached.
func (s *Store) AggregatedMetric(ctx context.Context, currentRank string, rankOrder []string) (summary RankSummary, err error) {
	op, ctx := s.startOp(ctx, "rosterstore.aggregate")
	defer func() { op.End(err) }()

	now := time.Now()
	if cached, ok := s.agg.get(now); ok {
		return cached, nil
	}

	threshold := slices.Index(rankOrder, currentRank) - 2
	if threshold < 0 {
		threshold = 0
	}
	targets := rankOrder[:threshold]

	summary = RankSummary{Ranks: targets, ComputedAt: now}
	if len(targets) == 0 {
		return summary, nil
	}

	backend, err := s.ensureOpen(ctx)
	if err != nil {
		return RankSummary{}, err
	}

	for _, rank := range targets {
		recs, qerr := backend.Query(ctx, &physical.QueryOptions{
			Filter: physical.Filter{Rank: rank},
		})
		if qerr != nil {
			slog.WarnContext(ctx, "rank bucket fetch failed, degrading to partial summary",
				"rank", rank, "error", qerr)
			summary.Partial = true
			continue
		}
		for _, rec := range recs {
			summary.TotalPower += rec.Power
			summary.TotalCount++
		}
		if s.metrics != nil {
			s.metrics.QueryRecords.WithLabelValues("aggregate").Add(float64(len(recs)))
		}
	}

	if !summary.Partial {
		s.agg.put(summary)
	}
	return summary, nil
}

// Favorites returns the records for the given IDs, serving from the pinned
// tier first and falling back to the normal read path. IDs with no record
// are skipped.
func (s *Store) Favorites(ctx context.Context, ids []string) (recs []*physical.Record, err error) {
	op, ctx := s.startOp(ctx, "rosterstore.favorites")
	defer func() { op.End(err) }()

	recs = make([]*physical.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.cache.pinnedGet(id); ok {
			recs = append(recs, rec)
			continue
		}
		rec, found, gerr := s.GetRecord(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if found {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// Pin loads the record into the pinned cache tier, exempting it from
// eviction until Unpin. Pinning an absent ID reports found = false.
func (s *Store) Pin(ctx context.Context, id string) (found bool, err error) {
	rec, found, err := s.GetRecord(ctx, id)
	if err != nil || !found {
		return found, err
	}
	s.cache.pin(rec)
	return true, nil
}

// Unpin removes an entry from the pinned tier. The record itself is
// untouched.
func (s *Store) Unpin(id string) {
	s.cache.unpin(id)
}

// Stats returns backend storage statistics.
func (s *Store) Stats(ctx context.Context) (stats *physical.Stats, err error) {
	op, ctx := s.startOp(ctx, "rosterstore.stats")
	defer func() { op.End(err) }()

	backend, err := s.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}
	return backend.Stats(ctx)
}

// RunGC asks the backend to reclaim storage space, when it supports that.
func (s *Store) RunGC(ctx context.Context, discardRatio float64) error {
	backend, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	gc, ok := backend.(physical.GarbageCollector)
	if !ok {
		return nil
	}
	return gc.RunGC(discardRatio)
}
