// Package schema describes the caller-supplied record layout of a client
// database table. A schema is never inferred from file bytes; the decoder
// only validates it against the file header.
package schema

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/db2kit/pkg/codec"
)

// Type is the element type of a field.
type Type int

const (
	Uint8 Type = iota
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	Float
	String
)

var typeNames = map[Type]string{
	Uint8:  "uint8",
	Uint16: "uint16",
	Uint32: "uint32",
	Uint64: "uint64",
	Int8:   "int8",
	Int16:  "int16",
	Int32:  "int32",
	Int64:  "int64",
	Float:  "float",
	String: "string",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType maps a type name to a Type.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if n == strings.ToLower(name) {
			return t, nil
		}
	}
	return 0, errors.Newf("unknown field type %q", name)
}

// Width is the byte width of one element. Text fields are stored as 4-byte
// string references in fixed records.
func (t Type) Width() int {
	switch t {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint64, Int64:
		return 8
	default:
		return 4
	}
}

// Signed reports whether the type is a signed integer.
func (t Type) Signed() bool {
	return t == Int8 || t == Int16 || t == Int32 || t == Int64
}

// Field is one column of a record.
type Field struct {
	Name      string
	Type      Type
	Count     int  // array length, 0 is treated as 1
	ID        bool // the record identifier column
	Relation  bool // foreign key stored out of line in the relationship table
	NonInline bool // identifier supplied by the section's identifier list only
}

// Elements returns the array length of the field.
func (f Field) Elements() int {
	if f.Count < 1 {
		return 1
	}
	return f.Count
}

// Width is the byte width of one element.
func (f Field) Width() int {
	return f.Type.Width()
}

// Size is the number of bytes the field occupies in a decoded record.
func (f Field) Size() int {
	return f.Width() * f.Elements()
}

// IsText reports whether the field holds strings.
func (f Field) IsText() bool {
	return f.Type == String
}

// Inline reports whether the field is materialized in the file's record bytes
// and therefore has a field storage info entry.
func (f Field) Inline() bool {
	if f.Relation {
		return false
	}
	return !(f.ID && f.NonInline)
}

// Schema is an immutable, validated record layout.
type Schema struct {
	name     string
	fields   []Field
	offsets  []int
	columns  []int
	size     int
	inline   int
	idField  int
	relField int
}

// New validates fields and returns a Schema. At most one identifier column
// and one relation column are allowed; both must be 4-byte scalars.
func New(name string, fields []Field) (*Schema, error) {
	s := &Schema{
		name:     name,
		fields:   append([]Field(nil), fields...),
		offsets:  make([]int, len(fields)),
		columns:  make([]int, len(fields)),
		idField:  -1,
		relField: -1,
	}

	for i, f := range s.fields {
		if f.Type < Uint8 || f.Type > String {
			return nil, codec.NewFormatError(codec.ErrBadStructure, -1, i, "field %q has unknown type %d", f.Name, int(f.Type))
		}
		if f.ID && f.Relation {
			return nil, codec.NewFormatError(codec.ErrBadStructure, -1, i, "field %q cannot be both identifier and relation", f.Name)
		}
		if f.NonInline && !f.ID {
			return nil, codec.NewFormatError(codec.ErrBadStructure, -1, i, "field %q: only the identifier can be non-inline", f.Name)
		}
		if f.ID || f.Relation {
			if f.Size() != 4 || f.IsText() {
				return nil, codec.NewFormatError(codec.ErrBadStructure, -1, i, "field %q must be a 4-byte scalar, got %d bytes", f.Name, f.Size())
			}
		}
		if f.ID {
			if s.idField >= 0 {
				return nil, codec.NewFormatError(codec.ErrBadStructure, -1, i, "second identifier field %q", f.Name)
			}
			s.idField = i
		}
		if f.Relation {
			if s.relField >= 0 {
				return nil, codec.NewFormatError(codec.ErrUnsupportedEncoding, -1, i,
					"second relation field %q, only one relation column is supported", f.Name)
			}
			s.relField = i
		}

		s.offsets[i] = s.size
		s.size += f.Size()

		s.columns[i] = -1
		if f.Inline() {
			s.columns[i] = s.inline
			s.inline++
		}
	}

	if s.idField < 0 {
		return nil, codec.NewFormatError(codec.ErrBadStructure, -1, -1, "schema %q has no identifier field", name)
	}
	return s, nil
}

// MustNew is like New but panics on error. Intended for static schemas.
func MustNew(name string, fields []Field) *Schema {
	s, err := New(name, fields)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the table name the schema describes.
func (s *Schema) Name() string { return s.name }

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// NumFields returns the number of declared fields.
func (s *Schema) NumFields() int { return len(s.fields) }

// Field returns field i.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Offset is the byte offset of field i within a decoded record.
func (s *Schema) Offset(i int) int { return s.offsets[i] }

// Column is the field storage info index of field i, or -1 when the field is
// not inline.
func (s *Schema) Column(i int) int { return s.columns[i] }

// Size is the byte size of a decoded record.
func (s *Schema) Size() int { return s.size }

// InlineFieldCount is the number of fields materialized in the record bytes.
// It must equal the header's field count.
func (s *Schema) InlineFieldCount() int { return s.inline }

// IDField is the index of the identifier field.
func (s *Schema) IDField() int { return s.idField }

// RelationField is the index of the relation field, or -1.
func (s *Schema) RelationField() int { return s.relField }

// FieldIndex returns the index of the named field, or -1.
func (s *Schema) FieldIndex(name string) int {
	for i, f := range s.fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}
