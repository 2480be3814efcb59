package wdc

import (
	"github.com/ssargent/db2kit/pkg/codec"
	"github.com/ssargent/db2kit/pkg/schema"
)

// Values returns the fields of rec keyed by field name. Scalars come back as
// uint64, int64, float32 or string; fields with more than one element come
// back as slices of those types. Text is resolved through the table.
func (t *Table) Values(rec *Record) (map[string]interface{}, error) {
	out := make(map[string]interface{}, t.schema.NumFields())
	for i, f := range t.schema.Fields() {
		v, err := t.value(rec, i, f)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func (t *Table) value(rec *Record, i int, f schema.Field) (interface{}, error) {
	n := f.Elements()
	switch {
	case f.IsText():
		strs, err := t.Strings(rec, i)
		if err != nil {
			return nil, err
		}
		if n == 1 {
			return strs[0], nil
		}
		return strs, nil

	case f.Type == schema.Float:
		vals := make([]float32, n)
		for j := range vals {
			vals[j] = rec.Float(i, j)
		}
		if n == 1 {
			return vals[0], nil
		}
		return vals, nil

	case f.Type.Signed():
		vals := make([]int64, n)
		for j := range vals {
			vals[j] = t.Int(rec, i, j)
		}
		if n == 1 {
			return vals[0], nil
		}
		return vals, nil

	default:
		vals := make([]uint64, n)
		for j := range vals {
			vals[j] = rec.Uint(i, j)
		}
		if n == 1 {
			return vals[0], nil
		}
		return vals, nil
	}
}

// Int returns element elem of signed field i of rec. The record buffer keeps
// BitpackedSigned values as stored, so those are sign extended from their
// bit width; every other signed field is sign extended from its byte width.
func (t *Table) Int(rec *Record, i, elem int) int64 {
	if col := t.schema.Column(i); col >= 0 && col < len(t.FieldStorage) {
		if info := t.FieldStorage[col]; info.Kind == codec.BitpackedSigned {
			return int64(codec.SignExtend(uint32(rec.Uint(i, elem)), uint32(info.SizeBits)))
		}
	}
	return rec.Int(i, elem)
}
