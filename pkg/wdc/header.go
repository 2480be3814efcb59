package wdc

import (
	"encoding/binary"

	"github.com/ssargent/db2kit/pkg/codec"
	"github.com/ssargent/db2kit/pkg/schema"
)

// Sizes of the fixed on-disk structures.
const (
	HeaderSize        = 72
	SectionHeaderSize = 40
	FieldLayoutSize   = 4
	CopyEntrySize     = 8
	OffsetEntrySize   = 6
	RelationEntrySize = 8
	relationPrefix    = 12
)

// Supported signatures.
const (
	SignatureWDC3 = "WDC3"
	SignatureWDC4 = "WDC4"
)

// Flags is the header flags word.
type Flags uint16

const (
	// FlagSparse marks sections that store variable-length records behind an
	// offset map.
	FlagSparse Flags = 0x1
	// FlagSecondaryKeys marks files whose relationship regions are keyed by
	// record identifier and precede the offset map.
	FlagSecondaryKeys Flags = 0x2
)

// Sparse reports whether sections hold variable-length records.
func (f Flags) Sparse() bool { return f&FlagSparse != 0 }

// SecondaryKeys reports whether relationships are keyed by identifier.
func (f Flags) SecondaryKeys() bool { return f&FlagSecondaryKeys != 0 }

// Header is the file header.
type Header struct {
	Signature            string
	RecordCount          uint32
	FieldCount           uint32
	RecordSize           uint32
	StringTableSize      uint32
	TableHash            uint32
	LayoutHash           uint32
	MinID                uint32
	MaxID                uint32
	Locale               uint32
	Flags                Flags
	IDIndex              uint16
	TotalFieldCount      uint32
	BitpackedDataOffset  uint32
	LookupColumnCount    uint32
	FieldStorageInfoSize uint32
	CommonDataSize       uint32
	PalletDataSize       uint32
	SectionCount         uint32
}

// SectionHeader describes one horizontal partition of the table.
type SectionHeader struct {
	KeyID                uint64 // content encryption key, 0 when clear
	FileOffset           uint32
	RecordCount          uint32
	StringTableSize      uint32
	OffsetRecordsEnd     uint32 // sparse sections only
	IDListSize           uint32
	RelationshipDataSize uint32
	OffsetMapIDCount     uint32
	CopyTableCount       uint32
}

// FieldLayout is one entry of the field layout table.
type FieldLayout struct {
	Size     int16 // 32 minus the field width in bits
	Position uint16
}

// File is the parsed, validated structure of a table file.
type File struct {
	Header       Header
	Sections     []SectionHeader
	FieldLayout  []FieldLayout
	FieldStorage []codec.FieldStorageInfo
	Layout       Layout
}

// Parse validates the header and every section header of data against s
// and computes the byte regions of the file.
func Parse(data []byte, s *schema.Schema) (*File, error) {
	if len(data) < 4 {
		return nil, codec.NewFormatError(codec.ErrBadSignature, -1, -1, "file is %d bytes", len(data))
	}
	sig := string(data[:4])
	if sig != SignatureWDC3 && sig != SignatureWDC4 {
		return nil, codec.NewFormatError(codec.ErrBadSignature, -1, -1, "signature %q", sig)
	}
	if len(data) < HeaderSize {
		return nil, codec.NewFormatError(codec.ErrBadStructure, -1, -1, "file is %d bytes, header needs %d", len(data), HeaderSize)
	}

	hdr := parseHeader(data)
	if s.InlineFieldCount() != int(hdr.FieldCount) {
		return nil, codec.NewFormatError(codec.ErrBadStructure, -1, -1,
			"schema %s has %d inline fields, header declares %d", s.Name(), s.InlineFieldCount(), hdr.FieldCount)
	}

	f := &File{Header: hdr}

	off := HeaderSize
	f.Sections = make([]SectionHeader, 0, hdr.SectionCount)
	for i := 0; i < int(hdr.SectionCount) && off+SectionHeaderSize <= len(data); i++ {
		f.Sections = append(f.Sections, parseSectionHeader(data[off:]))
		off += SectionHeaderSize
	}
	if len(f.Sections) != int(hdr.SectionCount) {
		return nil, codec.NewFormatError(codec.ErrBadStructure, -1, -1,
			"parsed %d section headers, header declares %d", len(f.Sections), hdr.SectionCount)
	}

	layout, err := computeLayout(hdr, f.Sections, len(data))
	if err != nil {
		return nil, err
	}
	f.Layout = layout

	fl := layout.FieldLayout.Bytes(data)
	f.FieldLayout = make([]FieldLayout, hdr.FieldCount)
	for i := range f.FieldLayout {
		f.FieldLayout[i] = FieldLayout{
			Size:     int16(binary.LittleEndian.Uint16(fl[i*FieldLayoutSize:])),
			Position: binary.LittleEndian.Uint16(fl[i*FieldLayoutSize+2:]),
		}
	}

	f.FieldStorage, err = codec.ParseFieldStorageInfo(layout.FieldStorage.Bytes(data))
	if err != nil {
		return nil, err
	}
	if len(f.FieldStorage) != int(hdr.FieldCount) {
		return nil, codec.NewFormatError(codec.ErrBadStructure, -1, -1,
			"%d field storage entries, header declares %d fields", len(f.FieldStorage), hdr.FieldCount)
	}

	if hdr.Flags.Sparse() {
		if err := checkSparseEncodings(f.FieldStorage); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func parseHeader(b []byte) Header {
	le := binary.LittleEndian
	return Header{
		Signature:            string(b[0:4]),
		RecordCount:          le.Uint32(b[4:]),
		FieldCount:           le.Uint32(b[8:]),
		RecordSize:           le.Uint32(b[12:]),
		StringTableSize:      le.Uint32(b[16:]),
		TableHash:            le.Uint32(b[20:]),
		LayoutHash:           le.Uint32(b[24:]),
		MinID:                le.Uint32(b[28:]),
		MaxID:                le.Uint32(b[32:]),
		Locale:               le.Uint32(b[36:]),
		Flags:                Flags(le.Uint16(b[40:])),
		IDIndex:              le.Uint16(b[42:]),
		TotalFieldCount:      le.Uint32(b[44:]),
		BitpackedDataOffset:  le.Uint32(b[48:]),
		LookupColumnCount:    le.Uint32(b[52:]),
		FieldStorageInfoSize: le.Uint32(b[56:]),
		CommonDataSize:       le.Uint32(b[60:]),
		PalletDataSize:       le.Uint32(b[64:]),
		SectionCount:         le.Uint32(b[68:]),
	}
}

func parseSectionHeader(b []byte) SectionHeader {
	le := binary.LittleEndian
	return SectionHeader{
		KeyID:                le.Uint64(b[0:]),
		FileOffset:           le.Uint32(b[8:]),
		RecordCount:          le.Uint32(b[12:]),
		StringTableSize:      le.Uint32(b[16:]),
		OffsetRecordsEnd:     le.Uint32(b[20:]),
		IDListSize:           le.Uint32(b[24:]),
		RelationshipDataSize: le.Uint32(b[28:]),
		OffsetMapIDCount:     le.Uint32(b[32:]),
		CopyTableCount:       le.Uint32(b[36:]),
	}
}

// Sparse records are consumed byte by byte, so every inline column must be
// stored uncompressed.
func checkSparseEncodings(infos []codec.FieldStorageInfo) error {
	for i, info := range infos {
		if info.Kind != codec.None {
			return codec.NewFormatError(codec.ErrUnsupportedEncoding, -1, i,
				"compression kind %s in a sparse table", info.Kind)
		}
	}
	return nil
}
