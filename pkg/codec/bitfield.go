package codec

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// ReadBits returns the size-bit unsigned value starting at bit offset within
// b. Bits are numbered little-endian: bit 0 is the least significant bit of
// b[0]. Only the bytes spanning [offset, offset+size) are read.
func ReadBits(b []byte, offset, size uint32) (uint32, error) {
	if size > 32 {
		return 0, errors.Wrapf(ErrFieldTooWide, "size %d", size)
	}
	if size == 0 {
		return 0, nil
	}

	first := offset / 8
	end := (uint64(offset) + uint64(size) + 7) / 8
	if end > uint64(len(b)) {
		return 0, errors.Wrapf(ErrOutOfRange, "bits [%d,%d) of a %d byte record", offset, offset+size, len(b))
	}

	// At most five bytes: 7 bits of lead-in plus 32 bits of payload.
	var v uint64
	for i := end; i > uint64(first); i-- {
		v = v<<8 | uint64(b[i-1])
	}
	v >>= offset % 8
	v &= (uint64(1) << size) - 1
	return uint32(v), nil
}

// SignExtend interprets the low size bits of v as a two's complement value.
func SignExtend(v uint32, size uint32) int32 {
	if size == 0 || size >= 32 {
		return int32(v)
	}
	shift := 32 - size
	return int32(v<<shift) >> shift
}

// ColumnSource provides the per-column side tables of a file.
type ColumnSource interface {
	// Pallet returns the pallet array of an indexed column.
	Pallet(column int) []uint32
	// Common returns the override of a CommonData column for id.
	Common(column int, id uint32) (uint32, bool)
}

// Value is one column's raw decoded value. Uncompressed columns carry the
// record bytes in Raw; every other kind yields 32-bit words.
type Value struct {
	Raw   []byte
	Words []uint32
}

// Uint32 returns the first 32 bits of the value.
func (v Value) Uint32() uint32 {
	if v.Raw != nil {
		var buf [4]byte
		copy(buf[:], v.Raw)
		return binary.LittleEndian.Uint32(buf[:])
	}
	if len(v.Words) == 0 {
		return 0
	}
	return v.Words[0]
}

// Put writes the value into dst, which holds count elements of width bytes.
// Raw bytes are copied verbatim; words are truncated to width bytes each.
func (v Value) Put(dst []byte, width, count int) {
	if v.Raw != nil {
		copy(dst, v.Raw)
		return
	}

	var buf [4]byte
	for i, w := range v.Words {
		if i >= count {
			break
		}
		binary.LittleEndian.PutUint32(buf[:], w)
		n := width
		if n > 4 {
			n = 4
		}
		copy(dst[i*width:i*width+n], buf[:n])
	}
}

// Decode extracts one column from a record. id is the record's resolved
// identifier; it is only consulted by CommonData columns.
func Decode(info FieldStorageInfo, record []byte, column int, id uint32, cols ColumnSource) (Value, error) {
	switch info.Kind {
	case None:
		if info.OffsetBits%8 != 0 {
			return Value{}, errors.Wrapf(ErrMisalignedRaw, "offset %d bits", info.OffsetBits)
		}
		start := int(info.OffsetBits / 8)
		end := start + int(info.SizeBits/8)
		if end > len(record) {
			return Value{}, errors.Wrapf(ErrOutOfRange, "bytes [%d,%d) of a %d byte record", start, end, len(record))
		}
		return Value{Raw: record[start:end]}, nil

	case Bitpacked, BitpackedSigned:
		v, err := ReadBits(record, uint32(info.OffsetBits), uint32(info.SizeBits))
		if err != nil {
			return Value{}, err
		}
		return Value{Words: []uint32{v}}, nil

	case CommonData:
		if v, ok := cols.Common(column, id); ok {
			return Value{Words: []uint32{v}}, nil
		}
		return Value{Words: []uint32{info.DefaultValue()}}, nil

	case BitpackedIndexed:
		idx, err := ReadBits(record, uint32(info.OffsetBits), uint32(info.SizeBits))
		if err != nil {
			return Value{}, err
		}
		pallet := cols.Pallet(column)
		if uint64(idx) >= uint64(len(pallet)) {
			return Value{}, errors.Wrapf(ErrOutOfRange, "pallet index %d of %d", idx, len(pallet))
		}
		return Value{Words: []uint32{pallet[idx]}}, nil

	case BitpackedIndexedArray:
		idx, err := ReadBits(record, uint32(info.OffsetBits), uint32(info.SizeBits))
		if err != nil {
			return Value{}, err
		}
		pallet := cols.Pallet(column)
		n := uint64(info.ArrayLength())
		start := uint64(idx) * n
		if start+n > uint64(len(pallet)) {
			return Value{}, errors.Wrapf(ErrOutOfRange, "pallet elements [%d,%d) of %d", start, start+n, len(pallet))
		}
		return Value{Words: pallet[start : start+n]}, nil
	}

	return Value{}, errors.Wrapf(ErrUnsupportedEncoding, "compression kind %s", info.Kind)
}
