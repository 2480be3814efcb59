package wdc

import (
	"encoding/binary"
	"math"

	"github.com/ssargent/db2kit/pkg/schema"
)

// EncryptionState tags whether a record came from an encrypted section.
type EncryptionState int

const (
	Clear EncryptionState = iota
	Encrypted
)

func (e EncryptionState) String() string {
	if e == Encrypted {
		return "encrypted"
	}
	return "clear"
}

// Record is one decoded row: a fixed-size buffer laid out per the schema.
// Records are immutable once returned by Decode.
type Record struct {
	data       []byte
	text       [][]string // inline strings of sparse records, by field
	schema     *schema.Schema
	section    int
	position   int
	encryption EncryptionState
}

// Bytes returns the record buffer. Callers must not modify it.
func (r *Record) Bytes() []byte { return r.data }

// Section is the index of the section the record was decoded from.
func (r *Record) Section() int { return r.section }

// Position is the record's zero-based position within its section. Copies
// keep the position of the record they were cloned from.
func (r *Record) Position() int { return r.position }

// Encryption reports whether the record came from an encrypted section.
func (r *Record) Encryption() EncryptionState { return r.encryption }

// ID returns the record identifier.
func (r *Record) ID() uint32 {
	return binary.LittleEndian.Uint32(r.data[r.schema.Offset(r.schema.IDField()):])
}

// Field returns the bytes of field i.
func (r *Record) Field(i int) []byte {
	off := r.schema.Offset(i)
	return r.data[off : off+r.schema.Field(i).Size()]
}

// Uint returns element elem of field i, zero extended.
func (r *Record) Uint(i, elem int) uint64 {
	f := r.schema.Field(i)
	b := r.Field(i)[elem*f.Width():]
	switch f.Width() {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		return uint64(binary.LittleEndian.Uint32(b))
	}
}

// Int returns element elem of field i, sign extended from the field width.
func (r *Record) Int(i, elem int) int64 {
	v := r.Uint(i, elem)
	switch r.schema.Field(i).Width() {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 8:
		return int64(v)
	default:
		return int64(int32(v))
	}
}

// Float returns element elem of a float field.
func (r *Record) Float(i, elem int) float32 {
	return math.Float32frombits(uint32(r.Uint(i, elem)))
}

// Uint32 returns the first element of field i truncated to 32 bits.
func (r *Record) Uint32(i int) uint32 {
	return uint32(r.Uint(i, 0))
}

// InlineText returns the strings stored inline for field i of a sparse
// record, or nil for fixed records.
func (r *Record) InlineText(i int) []string {
	if r.text == nil {
		return nil
	}
	return r.text[i]
}

// withID returns a copy of r whose identifier is id.
func (r *Record) withID(id uint32) *Record {
	clone := *r
	clone.data = append([]byte(nil), r.data...)
	binary.LittleEndian.PutUint32(clone.data[r.schema.Offset(r.schema.IDField()):], id)
	return &clone
}
