package wdc

import (
	"github.com/ssargent/db2kit/pkg/codec"
)

// Whole-file error kinds. Test with errors.Is; details are in the wrapping
// *FormatError.
var (
	ErrBadSignature        = codec.ErrBadSignature
	ErrBadStructure        = codec.ErrBadStructure
	ErrUnsupportedEncoding = codec.ErrUnsupportedEncoding
)

// FormatError carries the section and field index of a failure.
type FormatError = codec.FormatError
