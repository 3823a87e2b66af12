// Package rosterstore provides an embedded, per-tenant indexed record store
// for roster records, with a two-tier memory cache, cursor-driven pagination,
// a TTL-cached rank aggregation, and a one-shot legacy importer.
package rosterstore

import "errors"

var (
	// ErrStorageUnavailable indicates the persistent engine could not be
	// established. Callers must fall back to a non-persistent mode; that
	// decision is theirs, not the store's.
	ErrStorageUnavailable = errors.New("persistent storage unavailable")

	// ErrTransactionFailed indicates an individual store transaction aborted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrEmptyID indicates a record without an ID was handed to the store.
	ErrEmptyID = errors.New("record id must not be empty")

	// ErrInvalidRecord indicates a record field outside its domain: a level
	// below 1 or a negative power.
	ErrInvalidRecord = errors.New("record field out of domain")
)
