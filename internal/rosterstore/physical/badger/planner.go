package badger

import (
	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

// Residual holds the filter conditions the chosen index does not satisfy.
// It is evaluated per record during traversal; a record that fails it is
// skipped without consuming a limit slot.
type Residual struct {
	Role     string
	MinLevel int
	MaxLevel int
	MinPower float64
}

// IsZero reports whether the residual matches every record.
func (r Residual) IsZero() bool {
	return r.Role == "" && r.MinLevel == 0 && r.MaxLevel == 0 && r.MinPower == 0
}

// Match reports whether a record passes the residual predicate.
func (r Residual) Match(rec *physical.Record) bool {
	if r.Role != "" && rec.Role != r.Role {
		return false
	}
	if r.MinLevel > 0 && rec.Level < r.MinLevel {
		return false
	}
	if r.MaxLevel > 0 && rec.Level > r.MaxLevel {
		return false
	}
	if r.MinPower > 0 && rec.Power < r.MinPower {
		return false
	}
	return true
}

// Plan is the output of the query planner: the chosen index, the key range
// to traverse on it, the traversal direction, and the residual predicate.
// Prefix bounds the iteration; Lower (inclusive) and Upper (exclusive) narrow
// it further for range plans, nil meaning unbounded on that side.
type Plan struct {
	Index    Index
	Prefix   []byte
	Lower    []byte
	Upper    []byte
	Reverse  bool
	Residual Residual
}

// BuildPlan chooses the index, key range, and direction for a filter set and
// sort specification. The priority order is fixed, most selective first; it
// approximates minimizing scanned rows without a cost-based optimizer, which
// is sufficient because the filter shape is closed and small.
//
// When the chosen filter index differs from the requested sort field, results
// follow the chosen index's natural order, not the requested sort. That is a
// deliberate trade-off of the heuristic planner, not a bug.
func BuildPlan(f physical.Filter, sortField string, order physical.SortOrder) Plan {
	reverse := order == physical.Desc

	if f.IsZero() {
		// No filters: use the sort field's index purely for ordering when it
		// names a declared index, otherwise fall back to a primary-key scan.
		if idx, ok := indexForField(sortField); ok {
			return Plan{
				Index:   idx,
				Prefix:  []byte(idx.Prefix),
				Reverse: reverse,
			}
		}
		return Plan{
			Index:   idxPrimary,
			Prefix:  []byte(prefixRecord),
			Reverse: reverse,
		}
	}

	switch {
	case f.Rank != "" && f.Role != "":
		return Plan{
			Index:   idxRankRole,
			Prefix:  []byte(prefixComposite + escapeSegment(f.Rank) + "/" + escapeSegment(f.Role) + "/"),
			Reverse: reverse,
			Residual: Residual{
				MinLevel: f.MinLevel,
				MaxLevel: f.MaxLevel,
				MinPower: f.MinPower,
			},
		}

	case f.Rank != "":
		return Plan{
			Index:   idxRank,
			Prefix:  []byte(prefixRank + escapeSegment(f.Rank) + "/"),
			Reverse: reverse,
			Residual: Residual{
				Role:     f.Role,
				MinLevel: f.MinLevel,
				MaxLevel: f.MaxLevel,
				MinPower: f.MinPower,
			},
		}

	case f.Role != "":
		return Plan{
			Index:   idxRole,
			Prefix:  []byte(prefixRole + escapeSegment(f.Role) + "/"),
			Reverse: reverse,
			Residual: Residual{
				MinLevel: f.MinLevel,
				MaxLevel: f.MaxLevel,
				MinPower: f.MinPower,
			},
		}

	case f.MinLevel > 0 || f.MaxLevel > 0:
		plan := Plan{
			Index:    idxLevel,
			Prefix:   []byte(prefixLevel),
			Reverse:  reverse,
			Residual: Residual{MinPower: f.MinPower},
		}
		if f.MinLevel > 0 {
			plan.Lower = []byte(prefixLevel + levelHex(f.MinLevel))
		}
		if f.MaxLevel > 0 {
			plan.Upper = []byte(prefixLevel + levelHex(f.MaxLevel+1))
		}
		return plan

	case f.MinPower > 0:
		return Plan{
			Index:   idxPower,
			Prefix:  []byte(prefixPower),
			Lower:   []byte(prefixPower + powerHex(f.MinPower)),
			Reverse: reverse,
		}
	}

	// Not reachable with the current filter fields; every non-zero filter
	// shape matches one of the cases above.
	return Plan{
		Index:   idxPrimary,
		Prefix:  []byte(prefixRecord),
		Reverse: reverse,
		Residual: Residual{
			Role:     f.Role,
			MinLevel: f.MinLevel,
			MaxLevel: f.MaxLevel,
			MinPower: f.MinPower,
		},
	}
}
