// Package badger provides a BadgerDB-backed roster record backend.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
	"github.com/duelhq/rosterdb/internal/storage"
)

const (
	KeyPath       = "path"
	KeyTenant     = "tenant"
	KeySyncWrites = "sync_writes"
	KeyInMemory   = "in_memory"
)

func init() {
	physical.Register("badger", NewFactory, Defaults)
}

// Defaults returns the default configuration for the BadgerDB backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:       "~/.rosterdb",
		KeySyncWrites: "false",
		KeyInMemory:   "false",
	}
}

// NewFactory creates a new BadgerDB backend from a configuration map.
// When a tenant is configured the store directory is derived from it
// deterministically, so distinct tenants never share data.
func NewFactory(_ context.Context, config map[string]string) (physical.Backend, error) {
	inMemory, err := storage.GetBool(config, KeyInMemory, false)
	if err != nil {
		return nil, storage.NewConfigErrorWithValue("badger", KeyInMemory, config[KeyInMemory], err.Error())
	}

	if inMemory {
		return newInMemory()
	}

	path := storage.GetString(config, KeyPath, "")
	if path == "" {
		return nil, storage.NewConfigError("badger", KeyPath, "cannot be empty")
	}
	path = storage.ExpandPath(path)

	if tenant := storage.GetString(config, KeyTenant, ""); tenant != "" {
		path = filepath.Join(path, "tenants", sanitizeTenant(tenant))
	}

	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to create directory", err)
	}

	syncWrites, err := storage.GetBool(config, KeySyncWrites, false)
	if err != nil {
		return nil, storage.NewConfigErrorWithValue("badger", KeySyncWrites, config[KeySyncWrites], err.Error())
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = syncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to open database", err)
	}

	slog.Info("badger rosterstore initialized", "path", path, "sync_writes", syncWrites)
	return NewWithDB(db), nil
}

func newInMemory() (*Backend, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyInMemory, "failed to open in-memory database", err)
	}

	slog.Info("badger rosterstore initialized (in-memory)")
	return NewWithDB(db), nil
}

// sanitizeTenant maps a tenant identifier onto a safe directory name.
func sanitizeTenant(tenant string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, tenant)
}

// Backend is a BadgerDB implementation of physical.Backend.
type Backend struct {
	db     *badger.DB
	closed atomic.Bool
}

// NewWithDB creates a new backend with an existing BadgerDB instance.
func NewWithDB(db *badger.DB) *Backend {
	return &Backend{db: db}
}

// Put upserts one record and all derived index entries in one transaction.
func (b *Backend) Put(_ context.Context, rec *physical.Record) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return putInTxn(txn, rec)
	})
}

// PutBatch upserts many records in a single transaction, all-or-nothing.
func (b *Backend) PutBatch(_ context.Context, recs []*physical.Record) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}
	if len(recs) == 0 {
		return nil
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			if err := putInTxn(txn, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func putInTxn(txn *badger.Txn, rec *physical.Record) error {
	recKey := recordKey(rec.ID)

	item, getErr := txn.Get(recKey)
	switch {
	case getErr == nil:
		// Replacement: drop the old record's derived index entries first.
		var old *physical.Record
		if valErr := item.Value(func(val []byte) error {
			var decErr error
			old, decErr = decodeRecord(rec.ID, val)
			return decErr
		}); valErr != nil {
			return valErr
		}
		for _, k := range indexKeys(old) {
			if delErr := txn.Delete(k); delErr != nil {
				return delErr
			}
		}
	case getErr == badger.ErrKeyNotFound:
		if err := adjustCount(txn, 1); err != nil {
			return err
		}
	default:
		return getErr
	}

	if err := txn.Set(recKey, encodeRecord(rec)); err != nil {
		return err
	}
	for _, k := range indexKeys(rec) {
		if err := txn.Set(k, nil); err != nil {
			return err
		}
	}
	return nil
}

// Get performs a point lookup by record ID.
func (b *Backend) Get(_ context.Context, id string) (*physical.Record, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var rec *physical.Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(recordKey(id))
		if getErr == badger.ErrKeyNotFound {
			return physical.ErrNotFound
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			var decErr error
			rec, decErr = decodeRecord(id, val)
			return decErr
		})
	})
	if errors.Is(err, physical.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return rec, nil
}

// Delete removes a record and its derived index entries. Deleting an absent
// ID is a no-op.
func (b *Backend) Delete(_ context.Context, id string) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		recKey := recordKey(id)
		item, getErr := txn.Get(recKey)
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}

		var rec *physical.Record
		if valErr := item.Value(func(val []byte) error {
			var decErr error
			rec, decErr = decodeRecord(id, val)
			return decErr
		}); valErr != nil {
			return valErr
		}

		for _, k := range indexKeys(rec) {
			if delErr := txn.Delete(k); delErr != nil {
				return delErr
			}
		}
		if err := adjustCount(txn, -1); err != nil {
			return err
		}
		return txn.Delete(recKey)
	})
}

// Query plans and executes a filtered, ordered, paginated traversal.
func (b *Backend) Query(_ context.Context, opts *physical.QueryOptions) ([]*physical.Record, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}
	if opts == nil {
		opts = &physical.QueryOptions{}
	}

	plan := BuildPlan(opts.Filter, opts.SortField, opts.SortOrder)

	var results []*physical.Record
	err := b.db.View(func(txn *badger.Txn) error {
		var runErr error
		results, runErr = b.runPlan(txn, plan, opts.Offset, opts.Limit)
		return runErr
	})
	if err != nil {
		return nil, fmt.Errorf("badger query: %w", err)
	}

	slog.Debug("query executed",
		"index", plan.Index.Name,
		"reverse", plan.Reverse,
		"result_count", len(results),
	)
	return results, nil
}

// Count reads the transactionally-maintained record counter, never scanning.
func (b *Backend) Count(_ context.Context) (int64, error) {
	if b.closed.Load() {
		return 0, physical.ErrClosed
	}

	var count int64
	err := b.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get([]byte(keyCount))
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			if len(val) < 8 {
				return fmt.Errorf("count value too short: %d", len(val))
			}
			count = int64(binary.BigEndian.Uint64(val)) //nolint:gosec
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("badger count: %w", err)
	}
	return count, nil
}

// adjustCount updates the record counter within the caller's transaction so
// it moves atomically with the write that changes it.
func adjustCount(txn *badger.Txn, delta int64) error {
	var count int64
	item, err := txn.Get([]byte(keyCount))
	switch {
	case err == nil:
		if valErr := item.Value(func(val []byte) error {
			if len(val) < 8 {
				return fmt.Errorf("count value too short: %d", len(val))
			}
			count = int64(binary.BigEndian.Uint64(val)) //nolint:gosec
			return nil
		}); valErr != nil {
			return valErr
		}
	case err == badger.ErrKeyNotFound:
	default:
		return err
	}

	count += delta
	if count < 0 {
		count = 0
	}
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(count)) //nolint:gosec
	return txn.Set([]byte(keyCount), val)
}

// Stats returns storage statistics.
func (b *Backend) Stats(_ context.Context) (*physical.Stats, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	lsm, vlog := b.db.Size()
	return &physical.Stats{
		SizeBytes:   lsm + vlog,
		BackendType: "badger",
	}, nil
}

// RunGC triggers value log garbage collection.
func (b *Backend) RunGC(discardRatio float64) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}
	for {
		if err := b.db.RunValueLogGC(discardRatio); err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				return nil
			}
			return fmt.Errorf("value log gc: %w", err)
		}
	}
}

// Close closes the BadgerDB database. Persisted records are untouched.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
