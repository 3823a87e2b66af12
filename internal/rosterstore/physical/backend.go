// Package physical provides the physical storage backend interface for the
// roster record store.
package physical

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("backend closed")
)

// Record is the unit of storage. ID is caller-generated and immutable once
// assigned. Beyond the indexed fields a record carries an open attribute map
// the store never inspects.
type Record struct {
	ID        string
	Rank      string
	Role      string
	Level     int
	Power     float64
	CreatedAt int64
	Attrs     map[string]string
}

// Filter is the closed filter shape for queries. Zero values mean unset:
// empty Rank/Role, MinLevel/MaxLevel of 0 (levels start at 1), MinPower of 0.
type Filter struct {
	Rank     string
	Role     string
	MinLevel int
	MaxLevel int
	MinPower float64
}

// IsZero reports whether no filter field is set.
func (f Filter) IsZero() bool {
	return f.Rank == "" && f.Role == "" && f.MinLevel == 0 && f.MaxLevel == 0 && f.MinPower == 0
}

// SortOrder is the traversal direction of a query.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// QueryOptions specifies filtering, ordering, and pagination for queries.
// A Limit <= 0 means unbounded. Offset skips raw cursor positions on the
// chosen index before residual filtering.
type QueryOptions struct {
	Filter    Filter
	SortField string
	SortOrder SortOrder
	Offset    int
	Limit     int
}

// Stats contains storage statistics.
type Stats struct {
	SizeBytes   int64
	BackendType string
}

// GarbageCollector is an optional interface for backends that can reclaim
// storage space on demand.
type GarbageCollector interface {
	RunGC(discardRatio float64) error
}

// Backend is the physical storage interface for roster records.
// All implementations must be safe for concurrent use. Each call is its own
// transaction; there is no cross-call locking or version check, so two
// concurrent Puts to the same ID race and the later commit wins.
type Backend interface {
	Put(ctx context.Context, rec *Record) error
	// PutBatch stores all records in a single transaction. The batch is
	// all-or-nothing: either every record commits or none do.
	PutBatch(ctx context.Context, recs []*Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	// Query returns records in the natural order of the index chosen by the
	// planner, which may differ from the requested sort field when a filter
	// index takes precedence.
	Query(ctx context.Context, opts *QueryOptions) ([]*Record, error)
	// Count returns the total number of records without scanning them.
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
