package wdc

import (
	"encoding/binary"

	"github.com/ssargent/db2kit/pkg/codec"
)

// ColumnStore holds the pallet arrays and common-data maps of a file. It is
// built once per file and shared read-only by every section.
type ColumnStore struct {
	pallets [][]uint32
	common  []map[uint32]uint32
}

var _ codec.ColumnSource = (*ColumnStore)(nil)

// NewColumnStore slices the pallet and common-data blobs per column. Each
// column takes AdditionalDataSize bytes from its blob, in field order.
func NewColumnStore(data []byte, f *File) (*ColumnStore, error) {
	cs := &ColumnStore{
		pallets: make([][]uint32, len(f.FieldStorage)),
		common:  make([]map[uint32]uint32, len(f.FieldStorage)),
	}

	pallet := f.Layout.Pallet.Bytes(data)
	common := f.Layout.Common.Bytes(data)
	palletOff, commonOff := 0, 0

	for i, info := range f.FieldStorage {
		n := int(info.AdditionalDataSize)
		switch {
		case info.Kind.UsesPallet():
			if n%4 != 0 || palletOff+n > len(pallet) {
				return nil, codec.NewFormatError(codec.ErrBadStructure, -1, i,
					"pallet slice [%d,%d) of a %d byte blob", palletOff, palletOff+n, len(pallet))
			}
			values := make([]uint32, n/4)
			for j := range values {
				values[j] = binary.LittleEndian.Uint32(pallet[palletOff+j*4:])
			}
			cs.pallets[i] = values
			palletOff += n

		case info.Kind == codec.CommonData:
			if n%8 != 0 || commonOff+n > len(common) {
				return nil, codec.NewFormatError(codec.ErrBadStructure, -1, i,
					"common data slice [%d,%d) of a %d byte blob", commonOff, commonOff+n, len(common))
			}
			overrides := make(map[uint32]uint32, n/8)
			for j := 0; j < n; j += 8 {
				id := binary.LittleEndian.Uint32(common[commonOff+j:])
				overrides[id] = binary.LittleEndian.Uint32(common[commonOff+j+4:])
			}
			cs.common[i] = overrides
			commonOff += n
		}
	}
	return cs, nil
}

// Pallet returns the pallet array of column, nil if it has none.
func (cs *ColumnStore) Pallet(column int) []uint32 {
	if column < 0 || column >= len(cs.pallets) {
		return nil
	}
	return cs.pallets[column]
}

// Common returns the override for id in a CommonData column.
func (cs *ColumnStore) Common(column int, id uint32) (uint32, bool) {
	if column < 0 || column >= len(cs.common) || cs.common[column] == nil {
		return 0, false
	}
	v, ok := cs.common[column][id]
	return v, ok
}
