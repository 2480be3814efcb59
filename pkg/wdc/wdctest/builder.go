// Package wdctest composes synthetic WDC3/WDC4 byte images for tests.
package wdctest

import (
	"encoding/binary"

	"github.com/ssargent/db2kit/pkg/codec"
)

const sectionHeaderSize = 40

// Copy is one copy table entry.
type Copy struct {
	NewID    uint32
	CopiedID uint32
}

// Offset is one offset map entry, relative to the section start.
type Offset struct {
	Offset uint32
	Size   uint16
}

// Relation is one relationship entry.
type Relation struct {
	ForeignID   uint32
	RecordIndex uint32
}

// Section is the content of one section.
type Section struct {
	KeyID        uint64
	RecordCount  int
	Records      []byte
	Strings      []byte // fixed files only
	IDs          []uint32
	Copies       []Copy
	Offsets      []Offset
	Relations    []Relation
	OffsetMapIDs []uint32 // padded with zeros to one per offset
}

// File describes a whole table. An empty Signature means WDC3.
type File struct {
	Signature     string
	Sparse        bool
	SecondaryKeys bool
	RecordSize    int
	Fields        []codec.FieldStorageInfo
	Pallet        []uint32
	Common        []uint32 // id, value pairs
	Sections      []Section
}

type writer struct {
	buf []byte
}

func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

// RelationBytes encodes a relationship region. No entries encode to nothing.
func RelationBytes(entries []Relation) []byte {
	if len(entries) == 0 {
		return nil
	}
	w := &writer{}
	w.u32(uint32(len(entries)))
	w.u32(0)
	w.u32(0)
	for _, e := range entries {
		w.u32(e.ForeignID)
		w.u32(e.RecordIndex)
	}
	return w.buf
}

func (f File) flags() uint16 {
	var flags uint16
	if f.Sparse {
		flags |= 1
	}
	if f.SecondaryKeys {
		flags |= 2
	}
	return flags
}

// Build returns the byte image of f.
func (f File) Build() []byte {
	sig := f.Signature
	if sig == "" {
		sig = "WDC3"
	}

	totalRecords, totalStrings := 0, 0
	for _, s := range f.Sections {
		totalRecords += s.RecordCount
		totalStrings += len(s.Strings)
	}

	w := &writer{}
	w.bytes([]byte(sig))
	w.u32(uint32(totalRecords))
	w.u32(uint32(len(f.Fields)))
	w.u32(uint32(f.RecordSize))
	w.u32(uint32(totalStrings))
	w.u32(0) // table hash
	w.u32(0) // layout hash
	w.u32(0) // min id
	w.u32(0) // max id
	w.u32(0) // locale
	w.u16(f.flags())
	w.u16(0) // id index
	w.u32(uint32(len(f.Fields)))
	w.u32(0) // bitpacked data offset
	w.u32(0) // lookup columns
	w.u32(uint32(len(f.Fields) * codec.FieldStorageInfoSize))
	w.u32(uint32(len(f.Common) * 4))
	w.u32(uint32(len(f.Pallet) * 4))
	w.u32(uint32(len(f.Sections)))

	// Section headers are patched once section offsets are known.
	sectionHeaders := len(w.buf)
	w.bytes(make([]byte, len(f.Sections)*sectionHeaderSize))

	for _, fi := range f.Fields {
		w.u16(uint16(int16(32 - int(fi.SizeBits))))
		w.u16(fi.OffsetBits / 8)
	}
	for _, fi := range f.Fields {
		w.u16(fi.OffsetBits)
		w.u16(fi.SizeBits)
		w.u32(fi.AdditionalDataSize)
		w.u32(uint32(fi.Kind))
		w.u32(fi.Extra[0])
		w.u32(fi.Extra[1])
		w.u32(fi.Extra[2])
	}
	for _, v := range f.Pallet {
		w.u32(v)
	}
	for _, v := range f.Common {
		w.u32(v)
	}

	for i, s := range f.Sections {
		start := len(w.buf)
		w.bytes(s.Records)
		recordsEnd := len(w.buf)
		if !f.Sparse {
			w.bytes(s.Strings)
		}
		for _, id := range s.IDs {
			w.u32(id)
		}
		for _, c := range s.Copies {
			w.u32(c.NewID)
			w.u32(c.CopiedID)
		}

		offsetMap := &writer{}
		for _, o := range s.Offsets {
			offsetMap.u32(o.Offset)
			offsetMap.u16(o.Size)
		}
		rel := RelationBytes(s.Relations)
		if f.SecondaryKeys {
			w.bytes(rel)
			w.bytes(offsetMap.buf)
		} else {
			w.bytes(offsetMap.buf)
			w.bytes(rel)
		}
		for j := range s.Offsets {
			var id uint32
			if j < len(s.OffsetMapIDs) {
				id = s.OffsetMapIDs[j]
			}
			w.u32(id)
		}

		h := &writer{}
		h.u64(s.KeyID)
		h.u32(uint32(start))
		h.u32(uint32(s.RecordCount))
		h.u32(uint32(len(s.Strings)))
		if f.Sparse {
			h.u32(uint32(recordsEnd))
		} else {
			h.u32(0)
		}
		h.u32(uint32(len(s.IDs) * 4))
		h.u32(uint32(len(rel)))
		h.u32(uint32(len(s.Offsets)))
		h.u32(uint32(len(s.Copies)))
		copy(w.buf[sectionHeaders+i*sectionHeaderSize:], h.buf)
	}
	return w.buf
}

// U32s encodes values as consecutive little-endian words.
func U32s(values ...uint32) []byte {
	w := &writer{}
	for _, v := range values {
		w.u32(v)
	}
	return w.buf
}

// RawField is an uncompressed field of size bits at byte offset off.
func RawField(off, size uint16) codec.FieldStorageInfo {
	return codec.FieldStorageInfo{Kind: codec.None, OffsetBits: off * 8, SizeBits: size}
}

// StringRef returns the reference a fixed record stores to point at string
// offset strOff of the first section's table, for a file whose sections
// hold recordBytes of records in total, from a field at fieldPos bytes
// into the records region.
func StringRef(recordBytes, fieldPos, strOff int) uint32 {
	return uint32(recordBytes - fieldPos + strOff)
}
