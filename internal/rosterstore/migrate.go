package rosterstore

import (
	"context"
	"log/slog"

	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

// LegacySource is the unindexed representation a previous release stored
// records in. The source is never deleted by migration; it stays behind as a
// fallback for one release cycle.
type LegacySource interface {
	Load(ctx context.Context) ([]*physical.Record, error)
}

// MigrationResult reports what a migration attempt did.
type MigrationResult struct {
	Migrated bool
	Count    int
}

// MigrateFromLegacy copies every record from the legacy source into the store
// as one batch. It runs at most once per process: the guard is in-memory, so
// a restart re-attempts, but re-attempting against an absent or empty source
// is a cheap no-op. The attempt is marked complete regardless of outcome.
func (s *Store) MigrateFromLegacy(ctx context.Context) (result MigrationResult, err error) {
	op, ctx := s.startOp(ctx, "rosterstore.migrate")
	defer func() { op.End(err) }()

	if s.legacy == nil {
		return MigrationResult{}, nil
	}
	if s.migrated.Swap(true) {
		slog.DebugContext(ctx, "migration already attempted this process")
		return MigrationResult{}, nil
	}

	recs, err := s.legacy.Load(ctx)
	if err != nil {
		return MigrationResult{}, err
	}
	if len(recs) == 0 {
		slog.InfoContext(ctx, "legacy source absent or empty, nothing to migrate")
		return MigrationResult{}, nil
	}

	count, err := s.SaveRecordsBatch(ctx, recs)
	if err != nil {
		return MigrationResult{}, err
	}

	slog.InfoContext(ctx, "legacy roster migrated", "count", count)
	return MigrationResult{Migrated: true, Count: count}, nil
}
