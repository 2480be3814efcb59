package wdc

import (
	"encoding/binary"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ssargent/db2kit/pkg/codec"
	"github.com/ssargent/db2kit/pkg/schema"
)

// OffsetMapEntry locates one sparse record, relative to the section start.
type OffsetMapEntry struct {
	Offset uint32
	Size   uint16
}

func parseOffsetMap(b []byte) []OffsetMapEntry {
	entries := make([]OffsetMapEntry, len(b)/OffsetEntrySize)
	for i := range entries {
		e := b[i*OffsetEntrySize:]
		entries[i] = OffsetMapEntry{
			Offset: binary.LittleEndian.Uint32(e[0:]),
			Size:   binary.LittleEndian.Uint16(e[4:]),
		}
	}
	return entries
}

func parseUint32s(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// sectionResult is the output of decoding one section.
type sectionResult struct {
	records []*Record
	clones  int
	skipped int  // malformed records dropped
	omitted bool // encrypted with an unknown key
}

// sectionReader decodes one section. Everything it references is shared
// read-only with the other sections of the file.
type sectionReader struct {
	index      int
	data       []byte
	file       *File
	header     SectionHeader
	layout     SectionLayout
	schema     *schema.Schema
	cols       *ColumnStore
	logger     log.Logger
	encryption EncryptionState

	ids          []uint32
	offsetMapIDs []uint32
	copies       []CopyTableEntry
	offsets      []OffsetMapEntry
	relations    *relationshipTable
}

func newSectionReader(d *decoder, index int) (*sectionReader, error) {
	sl := d.file.Layout.Sections[index]
	r := &sectionReader{
		index:        index,
		data:         d.data,
		file:         d.file,
		header:       d.file.Sections[index],
		layout:       sl,
		schema:       d.schema,
		cols:         d.cols,
		logger:       log.With(d.logger, "section", index),
		ids:          parseUint32s(sl.IDList.Bytes(d.data)),
		offsetMapIDs: parseUint32s(sl.OffsetMapIDs.Bytes(d.data)),
		copies:       parseCopyTable(sl.CopyTable.Bytes(d.data)),
		offsets:      parseOffsetMap(sl.OffsetMap.Bytes(d.data)),
	}

	var err error
	r.relations, err = parseRelationships(sl.Relationships.Bytes(d.data), d.file.Layout.Order, index)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// decodeSection decodes section index, omitting it when it is encrypted
// with a key the caller does not hold. The rule is the same for fixed and
// sparse sections.
func (d *decoder) decodeSection(index int) (sectionResult, error) {
	sh := d.file.Sections[index]
	encryption := Clear
	if sh.KeyID != 0 {
		if d.keys == nil || !d.keys.Known(sh.KeyID) {
			level.Debug(d.logger).Log("msg", "omitting encrypted section", "section", index, "key", sh.KeyID)
			return sectionResult{omitted: true}, nil
		}
		encryption = Encrypted
	}

	r, err := newSectionReader(d, index)
	if err != nil {
		return sectionResult{}, err
	}
	r.encryption = encryption

	var res sectionResult
	if d.file.Header.Flags.Sparse() {
		res.records, res.skipped, err = r.readSparse()
	} else {
		res.records, err = r.readFixed()
	}
	if err != nil {
		return sectionResult{}, err
	}

	// Clones go after every base record of the section.
	if ix := newCopyIndex(r.copies); ix != nil {
		base := len(res.records)
		for _, rec := range res.records[:base] {
			res.records = append(res.records, ix.clones(rec)...)
		}
		res.clones = len(res.records) - base
	}

	level.Debug(r.logger).Log("msg", "decoded section",
		"records", len(res.records), "clones", res.clones, "skipped", res.skipped)
	return res, nil
}

// newRecord allocates an empty record of the schema's size.
func (r *sectionReader) newRecord(position int) *Record {
	return &Record{
		data:       make([]byte, r.schema.Size()),
		schema:     r.schema,
		section:    r.index,
		position:   position,
		encryption: r.encryption,
	}
}

// putUint32 writes v into field i of rec.
func (r *sectionReader) putUint32(rec *Record, i int, v uint32) {
	binary.LittleEndian.PutUint32(rec.data[r.schema.Offset(i):], v)
}

func (r *sectionReader) structureError(field int, cause error, format string, args ...interface{}) error {
	return codec.WrapFormatError(cause, codec.ErrBadStructure, r.index, field, format, args...)
}
