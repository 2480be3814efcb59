package wdc

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log/level"
)

// errMalformedRecord marks a single sparse record that cannot be decoded.
// Such records are skipped; the rest of the section is kept.
var errMalformedRecord = errors.New("malformed sparse record")

// readSparse decodes a section of variable-length records addressed through
// the offset map. It returns the records and the number of records skipped.
func (r *sectionReader) readSparse() ([]*Record, int, error) {
	ids := r.ids
	if len(ids) == 0 {
		ids = r.offsetMapIDs
	}

	records := make([]*Record, 0, len(r.offsets))
	skipped := 0
	for i, e := range r.offsets {
		if e.Size == 0 {
			level.Debug(r.logger).Log("msg", "skipping empty sparse record", "position", i)
			skipped++
			continue
		}

		start := r.layout.Records.Start + int(e.Offset)
		end := start + int(e.Size)
		if end > r.layout.Records.End {
			level.Warn(r.logger).Log("msg", "skipping sparse record outside record region",
				"position", i, "offset", e.Offset, "size", e.Size)
			skipped++
			continue
		}

		rec, err := r.decodeSparse(r.data[start:end], i, ids)
		if errors.Is(err, errMalformedRecord) {
			level.Warn(r.logger).Log("msg", "skipping malformed sparse record", "position", i, "err", err)
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// decodeSparse consumes the fields of one record in declared order. Text
// fields run to the next null byte; every other inline field takes exactly
// its declared width.
func (r *sectionReader) decodeSparse(span []byte, position int, ids []uint32) (*Record, error) {
	s := r.schema
	rec := r.newRecord(position)

	var id uint32
	cur := 0
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		switch {
		case !f.Inline():
			// Relation and external identifier are filled in below.

		case f.IsText():
			strs := make([]string, f.Elements())
			for j := range strs {
				n := bytes.IndexByte(span[cur:], 0)
				if n < 0 {
					return nil, errors.Wrapf(errMalformedRecord, "unterminated string in field %d", i)
				}
				strs[j] = string(span[cur : cur+n])
				cur += n + 1
			}
			if rec.text == nil {
				rec.text = make([][]string, s.NumFields())
			}
			rec.text[i] = strs

		default:
			size := f.Size()
			if cur+size > len(span) {
				return nil, errors.Wrapf(errMalformedRecord,
					"field %d needs %d bytes at %d of a %d byte record", i, size, cur, len(span))
			}
			off := s.Offset(i)
			copy(rec.data[off:off+size], span[cur:cur+size])
			cur += size
			if f.ID {
				id = binary.LittleEndian.Uint32(span[cur-size:])
			}
		}
	}

	if cur != len(span) {
		level.Debug(r.logger).Log("msg", "sparse record has trailing bytes",
			"position", position, "consumed", cur, "size", len(span))
	}

	if len(ids) > 0 {
		if position >= len(ids) {
			return nil, errors.Wrapf(errMalformedRecord, "no identifier for position %d", position)
		}
		id = ids[position]
	} else if !s.Field(s.IDField()).Inline() {
		return nil, r.structureError(s.IDField(), nil, "non-inline identifier and no identifier list")
	}
	r.putUint32(rec, s.IDField(), id)

	if rel := s.RelationField(); rel >= 0 {
		r.putUint32(rec, rel, r.relations.resolve(position, id))
	}
	return rec, nil
}
