package badger

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

// Key layout. Record blobs live under rec/<id>; every index entry is a bare
// key of the form <prefix><encoded value>/<id>. Index entries are derived
// from the record inside the same transaction that writes it; there is no
// independent mutation path for them.
const (
	prefixRecord = "rec/"
	keyCount     = "meta/count"

	prefixRank      = "idx/rank/"
	prefixRole      = "idx/role/"
	prefixLevel     = "idx/level/"
	prefixPower     = "idx/power/"
	prefixCreated   = "idx/created/"
	prefixComposite = "cidx/rank_role/"
)

// Index is a descriptor binding one or more record fields to an ordered,
// non-unique traversal path.
type Index struct {
	Name   string
	Prefix string
	Fields []string
}

var (
	idxPrimary  = Index{Name: "primary", Prefix: prefixRecord, Fields: []string{"id"}}
	idxRank     = Index{Name: "rank", Prefix: prefixRank, Fields: []string{"rank"}}
	idxRole     = Index{Name: "role", Prefix: prefixRole, Fields: []string{"role"}}
	idxLevel    = Index{Name: "level", Prefix: prefixLevel, Fields: []string{"level"}}
	idxPower    = Index{Name: "power", Prefix: prefixPower, Fields: []string{"power"}}
	idxCreated  = Index{Name: "created", Prefix: prefixCreated, Fields: []string{"createdAt"}}
	idxRankRole = Index{Name: "rank_role", Prefix: prefixComposite, Fields: []string{"rank", "role"}}
)

var catalog = map[string]Index{
	"id":        idxPrimary,
	"rank":      idxRank,
	"role":      idxRole,
	"level":     idxLevel,
	"power":     idxPower,
	"createdAt": idxCreated,
}

// Ranks, roles, and IDs carry no charset restriction, so they are embedded in
// keys as escaped segments: the separator and the escape character are
// percent-encoded, keeping '/' unambiguous as the segment boundary.
var (
	segmentEscaper   = strings.NewReplacer("%", "%25", "/", "%2F")
	segmentUnescaper = strings.NewReplacer("%2F", "/", "%25", "%")
)

func escapeSegment(s string) string {
	return segmentEscaper.Replace(s)
}

func unescapeSegment(s string) string {
	return segmentUnescaper.Replace(s)
}

// indexForField returns the single-field index covering a logical field name.
// The composite index is never returned here; it is only selected by the
// planner when both of its constituent fields are filtered.
func indexForField(field string) (Index, bool) {
	idx, ok := catalog[field]
	return idx, ok
}

// mustIndex is for internal callers that name a declared index. An unknown
// name is a programmer error, not a runtime condition.
func mustIndex(field string) Index {
	idx, ok := indexForField(field)
	if !ok {
		panic(fmt.Sprintf("rosterstore: undeclared index for field %q", field))
	}
	return idx
}

// levelHex encodes a level as fixed-width big-endian hex so lexicographic
// key order matches numeric order.
func levelHex(level int) string {
	return fmt.Sprintf("%08x", uint32(level)) //nolint:gosec
}

// powerHex encodes a non-negative float64 sortably. For non-negative IEEE
// values the raw bit pattern is already order-preserving.
func powerHex(power float64) string {
	return fmt.Sprintf("%016x", math.Float64bits(power))
}

// timestampHex encodes a unix-milli timestamp as fixed-width hex.
func timestampHex(ts int64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ts)) //nolint:gosec
	return fmt.Sprintf("%016x", buf)
}

// indexKeys returns every derived index key for a record, composite included.
func indexKeys(rec *physical.Record) [][]byte {
	id := escapeSegment(rec.ID)
	rank := escapeSegment(rec.Rank)
	role := escapeSegment(rec.Role)
	return [][]byte{
		[]byte(prefixRank + rank + "/" + id),
		[]byte(prefixRole + role + "/" + id),
		[]byte(prefixLevel + levelHex(rec.Level) + "/" + id),
		[]byte(prefixPower + powerHex(rec.Power) + "/" + id),
		[]byte(prefixCreated + timestampHex(rec.CreatedAt) + "/" + id),
		[]byte(prefixComposite + rank + "/" + role + "/" + id),
	}
}

func recordKey(id string) []byte {
	return []byte(prefixRecord + id)
}
