// Package codec provides the column-level decoding primitives for WDC3/WDC4
// client database tables.
//
// Every inline column of a table is described by a FieldStorageInfo entry
// that gives its bit position inside a record and the compression kind used
// to store it.
//
// # Field Storage Info
//
// Entries are 24 bytes, little-endian:
//
//	[OffsetBits(2)][SizeBits(2)][AdditionalDataSize(4)][Kind(4)][Extra(12)]
//
// Fields:
//   - OffsetBits: bit offset of the column from the start of the record
//   - SizeBits: width of the column in bits
//   - AdditionalDataSize: bytes this column occupies in the pallet or common blob
//   - Kind: the CompressionKind
//   - Extra: kind specific; the default value for CommonData, and
//     (bit offset, bit width, array length) for the pallet kinds
//
// # Compression Kinds
//
//   - None: the column bytes are copied verbatim (must be byte aligned)
//   - Bitpacked, BitpackedSigned: an unsigned value of up to 32 bits read from
//     an arbitrary bit offset. Sign extension is left to the caller, see SignExtend
//   - CommonData: not stored in the record; the record identifier is looked up
//     in a per-column override map, falling back to the declared default
//   - BitpackedIndexed: a bitpacked index into a per-column pallet array
//   - BitpackedIndexedArray: a bitpacked index selecting ArrayLength
//     consecutive pallet elements
//
// # Usage
//
//	v, err := codec.Decode(info, recordBytes, column, id, columns)
//	if err != nil {
//	    return err
//	}
//	v.Put(dst, width, count)
//
// Bit window reads never touch bytes outside the requested span, so the
// decoded value of a column is independent of every other column.
package codec
