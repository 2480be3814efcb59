package codec

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error kinds. Every failure surfaced while parsing a table is one of these,
// usually wrapped in a *FormatError carrying the section and field index.
var (
	ErrBadSignature        = errors.New("unrecognized table signature")
	ErrBadStructure        = errors.New("malformed table structure")
	ErrUnsupportedEncoding = errors.New("unsupported field encoding")
)

// Bit-window read failures. Readers wrap these into ErrBadStructure.
var (
	ErrOutOfRange    = errors.New("bit window out of range")
	ErrFieldTooWide  = errors.New("bitpacked field wider than 32 bits")
	ErrMisalignedRaw = errors.New("uncompressed field is not byte aligned")
)

// FormatError reports a whole-file decoding failure. Section and Field are -1
// when the failure is not tied to a particular section or field.
type FormatError struct {
	Kind    error
	Section int
	Field   int
	Detail  string
	cause   error
}

// NewFormatError builds a FormatError of the given kind.
func NewFormatError(kind error, section, field int, format string, args ...interface{}) *FormatError {
	return &FormatError{
		Kind:    kind,
		Section: section,
		Field:   field,
		Detail:  fmt.Sprintf(format, args...),
	}
}

// WrapFormatError builds a FormatError of the given kind around cause.
func WrapFormatError(cause, kind error, section, field int, format string, args ...interface{}) *FormatError {
	fe := NewFormatError(kind, section, field, format, args...)
	fe.cause = cause
	return fe
}

func (e *FormatError) Error() string {
	msg := e.Kind.Error()
	if e.Section >= 0 {
		msg += fmt.Sprintf(" (section %d", e.Section)
		if e.Field >= 0 {
			msg += fmt.Sprintf(", field %d", e.Field)
		}
		msg += ")"
	} else if e.Field >= 0 {
		msg += fmt.Sprintf(" (field %d)", e.Field)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the error kind so errors.Is(err, ErrBadStructure) holds.
func (e *FormatError) Unwrap() error {
	return e.Kind
}

// Underlying returns the lower-level error that triggered the failure, if any.
func (e *FormatError) Underlying() error {
	return e.cause
}
