package wdc

import (
	"github.com/ssargent/db2kit/pkg/codec"
)

// readFixed decodes a section of uniform records. Record i occupies
// [i*RecordSize, (i+1)*RecordSize) of the record region.
func (r *sectionReader) readFixed() ([]*Record, error) {
	size := int(r.file.Header.RecordSize)
	count := int(r.header.RecordCount)
	region := r.layout.Records.Bytes(r.data)

	records := make([]*Record, 0, count)
	for i := 0; i < count; i++ {
		raw := region[i*size : (i+1)*size]
		rec, err := r.decodeFixed(raw, i)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *sectionReader) decodeFixed(raw []byte, position int) (*Record, error) {
	s := r.schema
	id, err := r.fixedID(raw, position)
	if err != nil {
		return nil, err
	}

	rec := r.newRecord(position)
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		switch {
		case f.Relation:
			r.putUint32(rec, i, r.relations.resolve(position, id))
		case f.ID:
			r.putUint32(rec, i, id)
		default:
			col := s.Column(i)
			v, err := codec.Decode(r.file.FieldStorage[col], raw, col, id, r.cols)
			if err != nil {
				return nil, r.structureError(i, err, "record %d", position)
			}
			off := s.Offset(i)
			v.Put(rec.data[off:off+f.Size()], f.Width(), f.Elements())
		}
	}
	return rec, nil
}

// fixedID resolves the identifier of record position: from the section's
// identifier list when present, otherwise from the inline identifier column.
func (r *sectionReader) fixedID(raw []byte, position int) (uint32, error) {
	if len(r.ids) > 0 {
		if position >= len(r.ids) {
			return 0, r.structureError(r.schema.IDField(), nil,
				"record %d beyond identifier list of %d", position, len(r.ids))
		}
		return r.ids[position], nil
	}

	col := r.schema.Column(r.schema.IDField())
	if col < 0 {
		return 0, r.structureError(r.schema.IDField(), nil, "non-inline identifier and no identifier list")
	}
	info := r.file.FieldStorage[col]
	if info.Kind == codec.CommonData {
		return 0, codec.NewFormatError(codec.ErrUnsupportedEncoding, r.index, r.schema.IDField(),
			"identifier column stored as common data")
	}
	v, err := codec.Decode(info, raw, col, 0, r.cols)
	if err != nil {
		return 0, r.structureError(r.schema.IDField(), err, "record %d identifier", position)
	}
	return v.Uint32(), nil
}
