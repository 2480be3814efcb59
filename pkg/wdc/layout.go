package wdc

import (
	"github.com/ssargent/db2kit/pkg/codec"
)

// Region is a half-open byte range [Start, End) of the file.
type Region struct {
	Start int
	End   int
}

// Len returns the region size in bytes.
func (r Region) Len() int { return r.End - r.Start }

// Bytes returns the region's slice of data.
func (r Region) Bytes(data []byte) []byte { return data[r.Start:r.End] }

// RegionOrder selects how the tail of a section is laid out and, with it, how
// relationship entries are keyed.
type RegionOrder int

const (
	// OrderPositional: offset map, relationship region, offset map ids.
	// Relationship entries are keyed by record position.
	OrderPositional RegionOrder = iota
	// OrderSecondaryKeys: relationship region, offset map, offset map ids.
	// Relationship entries are keyed by record identifier.
	OrderSecondaryKeys
)

func (o RegionOrder) String() string {
	if o == OrderSecondaryKeys {
		return "secondary-keys"
	}
	return "positional"
}

// relationKey is the value a relationship entry's record field is matched
// against.
func (o RegionOrder) relationKey(position int, id uint32) uint32 {
	if o == OrderSecondaryKeys {
		return id
	}
	return uint32(position)
}

// SectionLayout holds the byte regions of one section.
type SectionLayout struct {
	Records       Region
	Strings       Region // fixed sections only
	IDList        Region
	CopyTable     Region
	OffsetMap     Region
	Relationships Region
	OffsetMapIDs  Region
}

// Layout holds every byte region of a file, computed once from the headers.
type Layout struct {
	SectionHeaders Region
	FieldLayout    Region
	FieldStorage   Region
	Pallet         Region
	Common         Region
	Order          RegionOrder
	Sections       []SectionLayout
}

// regionCursor hands out consecutive regions and checks them against the
// file size.
type regionCursor struct {
	off     int
	size    int
	section int
	err     error
}

func (c *regionCursor) next(n int, what string) Region {
	if c.err != nil {
		return Region{Start: c.off, End: c.off}
	}
	if n < 0 || c.off+n > c.size {
		c.err = codec.NewFormatError(codec.ErrBadStructure, c.section, -1,
			"%s [%d,%d) exceeds file size %d", what, c.off, c.off+n, c.size)
		return Region{Start: c.off, End: c.off}
	}
	r := Region{Start: c.off, End: c.off + n}
	c.off += n
	return r
}

func computeLayout(hdr Header, sections []SectionHeader, size int) (Layout, error) {
	l := Layout{Order: OrderPositional}
	if hdr.Flags.SecondaryKeys() {
		l.Order = OrderSecondaryKeys
	}

	c := &regionCursor{off: HeaderSize, size: size, section: -1}
	l.SectionHeaders = c.next(len(sections)*SectionHeaderSize, "section headers")
	l.FieldLayout = c.next(int(hdr.FieldCount)*FieldLayoutSize, "field layout")
	l.FieldStorage = c.next(int(hdr.FieldStorageInfoSize), "field storage info")
	l.Pallet = c.next(int(hdr.PalletDataSize), "pallet data")
	l.Common = c.next(int(hdr.CommonDataSize), "common data")
	if c.err != nil {
		return Layout{}, c.err
	}

	l.Sections = make([]SectionLayout, len(sections))
	for i, sh := range sections {
		sl, err := computeSectionLayout(hdr, sh, l.Order, i, size)
		if err != nil {
			return Layout{}, err
		}
		l.Sections[i] = sl
	}
	return l, nil
}

func computeSectionLayout(hdr Header, sh SectionHeader, order RegionOrder, index, size int) (SectionLayout, error) {
	var sl SectionLayout
	c := &regionCursor{off: int(sh.FileOffset), size: size, section: index}

	if hdr.Flags.Sparse() {
		end := int(sh.OffsetRecordsEnd)
		if end < int(sh.FileOffset) {
			return sl, codec.NewFormatError(codec.ErrBadStructure, index, -1,
				"record end %d precedes section offset %d", end, sh.FileOffset)
		}
		sl.Records = c.next(end-int(sh.FileOffset), "sparse records")
		sl.Strings = Region{Start: c.off, End: c.off}
	} else {
		sl.Records = c.next(int(sh.RecordCount)*int(hdr.RecordSize), "records")
		sl.Strings = c.next(int(sh.StringTableSize), "string table")
	}

	sl.IDList = c.next(int(sh.IDListSize), "identifier list")
	sl.CopyTable = c.next(int(sh.CopyTableCount)*CopyEntrySize, "copy table")

	offsetMapSize := int(sh.OffsetMapIDCount) * OffsetEntrySize
	switch order {
	case OrderSecondaryKeys:
		sl.Relationships = c.next(int(sh.RelationshipDataSize), "relationship data")
		sl.OffsetMap = c.next(offsetMapSize, "offset map")
	default:
		sl.OffsetMap = c.next(offsetMapSize, "offset map")
		sl.Relationships = c.next(int(sh.RelationshipDataSize), "relationship data")
	}
	sl.OffsetMapIDs = c.next(int(sh.OffsetMapIDCount)*4, "offset map identifiers")

	return sl, c.err
}
