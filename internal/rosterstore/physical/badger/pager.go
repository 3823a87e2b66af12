package badger

import (
	"bytes"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

// runPlan drives a directional cursor over the plan's key range. It skips
// offset raw cursor positions without loading record values, then collects
// records that pass the residual predicate until limit is satisfied, at which
// point it stops without scanning the remaining keys. Cost is therefore
// bounded by offset+limit visits plus residual rejections, never by the
// collection size. Exhausting the range early yields a short or empty result.
func (b *Backend) runPlan(txn *badger.Txn, plan Plan, offset, limit int) ([]*physical.Record, error) {
	primary := plan.Index.Name == idxPrimary.Name

	iterOpts := badger.DefaultIteratorOptions
	iterOpts.Prefix = plan.Prefix
	iterOpts.Reverse = plan.Reverse
	// Index entries are bare keys; only a primary scan reads iterator values.
	iterOpts.PrefetchValues = primary
	if primary {
		iterOpts.PrefetchSize = 20
	}

	it := txn.NewIterator(iterOpts)
	defer it.Close()

	it.Seek(seekKey(plan))

	skipped := 0
	for ; it.ValidForPrefix(plan.Prefix) && skipped < offset; it.Next() {
		if outOfBounds(plan, it.Item().Key()) {
			return nil, nil
		}
		skipped++
	}

	var results []*physical.Record
	for ; it.ValidForPrefix(plan.Prefix); it.Next() {
		if limit > 0 && len(results) >= limit {
			break
		}

		key := it.Item().Key()
		if outOfBounds(plan, key) {
			break
		}

		rec, err := b.loadCandidate(txn, it.Item(), primary)
		if err != nil {
			slog.Warn("skipping undecodable record", "key", string(key), "error", err)
			continue
		}
		if rec == nil {
			continue
		}

		if !plan.Residual.Match(rec) {
			continue
		}
		results = append(results, rec)
	}

	return results, nil
}

// loadCandidate materializes the record under the cursor. On a primary scan
// the iterator value is the record blob and the ID is the key minus its fixed
// prefix; on an index scan the ID is unescaped from the final key segment and
// the blob fetched by point lookup. A nil record with nil error means the
// index entry is dangling and should be skipped.
func (b *Backend) loadCandidate(txn *badger.Txn, item *badger.Item, primary bool) (*physical.Record, error) {
	key := item.Key()

	if primary {
		id := string(key[len(prefixRecord):])
		if id == "" {
			return nil, nil
		}
		var rec *physical.Record
		err := item.Value(func(val []byte) error {
			var decErr error
			rec, decErr = decodeRecord(id, val)
			return decErr
		})
		return rec, err
	}

	id := unescapeSegment(string(key[bytes.LastIndexByte(key, '/')+1:]))
	if id == "" {
		return nil, nil
	}

	recItem, err := txn.Get(recordKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec *physical.Record
	err = recItem.Value(func(val []byte) error {
		var decErr error
		rec, decErr = decodeRecord(id, val)
		return decErr
	})
	return rec, err
}

// seekKey returns the iterator's starting position for the plan. Reverse
// iteration seeks to the largest key at or below the seek key, so the
// exclusive upper bound (or the end of the prefix range) is the right target.
func seekKey(plan Plan) []byte {
	if plan.Reverse {
		if plan.Upper != nil {
			return plan.Upper
		}
		return prefixEndKey(plan.Prefix)
	}
	if plan.Lower != nil {
		return plan.Lower
	}
	return plan.Prefix
}

// outOfBounds reports whether the cursor has left the plan's key range in its
// direction of travel.
func outOfBounds(plan Plan, key []byte) bool {
	if plan.Reverse {
		return plan.Lower != nil && bytes.Compare(key, plan.Lower) < 0
	}
	return plan.Upper != nil && bytes.Compare(key, plan.Upper) >= 0
}

func prefixEndKey(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	end[len(end)-1]++
	return end
}
