// Package legacy reads the flat, unindexed SQLite roster a previous release
// kept, so the store can import it once. The file is never modified or
// deleted here; it stays behind as a fallback for one release cycle.
package legacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

// Source loads roster records from the legacy SQLite file.
type Source struct {
	path string
}

// NewSource creates a source for the given file path. The file may not
// exist; Load treats that as an empty source.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Load reads the entire legacy roster table. An absent file or missing table
// yields an empty result, not an error.
func (s *Source) Load(ctx context.Context) ([]*physical.Record, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open legacy store: %w", err)
	}
	defer db.Close()

	var table string
	err = db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'roster'`,
	).Scan(&table)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inspect legacy store: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, rank, role, level, power, created_at, attrs FROM roster`,
	)
	if err != nil {
		return nil, fmt.Errorf("read legacy roster: %w", err)
	}
	defer rows.Close()

	var recs []*physical.Record
	for rows.Next() {
		var rec physical.Record
		var attrs sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Rank, &rec.Role, &rec.Level, &rec.Power, &rec.CreatedAt, &attrs); err != nil {
			return nil, fmt.Errorf("scan legacy record: %w", err)
		}
		if attrs.Valid && attrs.String != "" {
			if err := json.Unmarshal([]byte(attrs.String), &rec.Attrs); err != nil {
				return nil, fmt.Errorf("decode legacy attrs for %s: %w", rec.ID, err)
			}
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read legacy roster: %w", err)
	}
	return recs, nil
}
