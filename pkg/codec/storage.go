package codec

import (
	"encoding/binary"
	"fmt"
)

// CompressionKind identifies how a column is stored in the record bytes.
type CompressionKind uint32

const (
	None                  CompressionKind = 0
	Bitpacked             CompressionKind = 1
	CommonData            CompressionKind = 2
	BitpackedIndexed      CompressionKind = 3
	BitpackedIndexedArray CompressionKind = 4
	BitpackedSigned       CompressionKind = 5
)

func (k CompressionKind) String() string {
	switch k {
	case None:
		return "none"
	case Bitpacked:
		return "bitpacked"
	case CommonData:
		return "common"
	case BitpackedIndexed:
		return "pallet"
	case BitpackedIndexedArray:
		return "pallet-array"
	case BitpackedSigned:
		return "bitpacked-signed"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Valid reports whether k is one of the known compression kinds.
func (k CompressionKind) Valid() bool {
	return k <= BitpackedSigned
}

// UsesPallet reports whether the column indexes into the pallet blob.
func (k CompressionKind) UsesPallet() bool {
	return k == BitpackedIndexed || k == BitpackedIndexedArray
}

// FieldStorageInfoSize is the on-disk size of one FieldStorageInfo entry.
const FieldStorageInfoSize = 24

// FieldStorageInfo describes where one inline column lives inside a record
// and how it is compressed.
//
// On disk: [OffsetBits(2)][SizeBits(2)][AdditionalDataSize(4)][Kind(4)][Extra(12)]
type FieldStorageInfo struct {
	OffsetBits         uint16
	SizeBits           uint16
	AdditionalDataSize uint32 // bytes of this column's slice of the pallet or common blob
	Kind               CompressionKind
	Extra              [3]uint32
}

// DefaultValue is the value of a CommonData column for rows without an override.
func (f FieldStorageInfo) DefaultValue() uint32 {
	return f.Extra[0]
}

// ArrayLength is the number of pallet elements per row of a
// BitpackedIndexedArray column.
func (f FieldStorageInfo) ArrayLength() uint32 {
	return f.Extra[2]
}

// ParseFieldStorageInfo decodes a field storage info table. The table size
// must be a whole number of entries.
func ParseFieldStorageInfo(b []byte) ([]FieldStorageInfo, error) {
	if len(b)%FieldStorageInfoSize != 0 {
		return nil, NewFormatError(ErrBadStructure, -1, -1,
			"field storage info size %d is not a multiple of %d", len(b), FieldStorageInfoSize)
	}

	infos := make([]FieldStorageInfo, len(b)/FieldStorageInfoSize)
	for i := range infos {
		e := b[i*FieldStorageInfoSize:]
		info := FieldStorageInfo{
			OffsetBits:         binary.LittleEndian.Uint16(e[0:]),
			SizeBits:           binary.LittleEndian.Uint16(e[2:]),
			AdditionalDataSize: binary.LittleEndian.Uint32(e[4:]),
			Kind:               CompressionKind(binary.LittleEndian.Uint32(e[8:])),
		}
		info.Extra[0] = binary.LittleEndian.Uint32(e[12:])
		info.Extra[1] = binary.LittleEndian.Uint32(e[16:])
		info.Extra[2] = binary.LittleEndian.Uint32(e[20:])

		if !info.Kind.Valid() {
			return nil, NewFormatError(ErrUnsupportedEncoding, -1, i, "unknown compression kind %d", uint32(info.Kind))
		}
		infos[i] = info
	}
	return infos, nil
}
