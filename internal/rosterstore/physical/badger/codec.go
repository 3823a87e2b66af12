package badger

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

// encodeRecord serializes a record into a compact binary value. The ID is not
// stored; it is recovered from the key at decode time.
// Layout: rankLen(2) rank roleLen(2) role level(4) power(8) createdAt(8)
// attrCount(2) then attrCount length-prefixed key/value pairs.
func encodeRecord(rec *physical.Record) []byte {
	size := 2 + len(rec.Rank) + 2 + len(rec.Role) + 4 + 8 + 8 + 2
	for k, v := range rec.Attrs {
		size += 2 + len(k) + 2 + len(v)
	}

	buf := make([]byte, size)
	off := 0

	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(rec.Rank)))
	off += 2
	copy(buf[off:], rec.Rank)
	off += len(rec.Rank)

	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(rec.Role)))
	off += 2
	copy(buf[off:], rec.Role)
	off += len(rec.Role)

	binary.BigEndian.PutUint32(buf[off:off+4], uint32(rec.Level)) //nolint:gosec
	off += 4
	binary.BigEndian.PutUint64(buf[off:off+8], math.Float64bits(rec.Power))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(rec.CreatedAt)) //nolint:gosec
	off += 8

	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(rec.Attrs)))
	off += 2
	for k, v := range rec.Attrs {
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(k)))
		off += 2
		copy(buf[off:], k)
		off += len(k)
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(v)))
		off += 2
		copy(buf[off:], v)
		off += len(v)
	}

	return buf
}

func decodeRecord(id string, data []byte) (*physical.Record, error) {
	rec := &physical.Record{ID: id}
	off := 0

	readStr := func(what string) (string, error) {
		if off+2 > len(data) {
			return "", fmt.Errorf("record truncated at %s length", what)
		}
		n := int(binary.BigEndian.Uint16(data[off : off+2]))
		off += 2
		if off+n > len(data) {
			return "", fmt.Errorf("record truncated at %s", what)
		}
		s := string(data[off : off+n])
		off += n
		return s, nil
	}

	var err error
	if rec.Rank, err = readStr("rank"); err != nil {
		return nil, err
	}
	if rec.Role, err = readStr("role"); err != nil {
		return nil, err
	}

	if off+4+8+8+2 > len(data) {
		return nil, fmt.Errorf("record truncated at fixed fields")
	}
	rec.Level = int(binary.BigEndian.Uint32(data[off : off+4]))
	off += 4
	rec.Power = math.Float64frombits(binary.BigEndian.Uint64(data[off : off+8]))
	off += 8
	rec.CreatedAt = int64(binary.BigEndian.Uint64(data[off : off+8])) //nolint:gosec
	off += 8

	count := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2
	if count > 0 {
		rec.Attrs = make(map[string]string, count)
		for i := 0; i < count; i++ {
			k, kerr := readStr("attr key")
			if kerr != nil {
				return nil, kerr
			}
			v, verr := readStr("attr value")
			if verr != nil {
				return nil, verr
			}
			rec.Attrs[k] = v
		}
	}

	return rec, nil
}
