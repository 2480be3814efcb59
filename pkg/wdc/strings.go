package wdc

import (
	"bytes"

	"github.com/cockroachdb/errors"
)

// ErrStringOutOfRange is returned when a string reference does not land in
// any section's string table.
var ErrStringOutOfRange = errors.New("string reference out of range")

// stringPool resolves the string references of fixed records.
//
// A reference is relative to the referencing field, measured as if the
// records of every section were laid out back to back, followed by the
// string tables of every section. Resolving a reference therefore subtracts
// the record bytes of all sections and then locates the section whose string
// table holds the remaining offset. With a single section this reduces to
// position*recordSize + fieldOffset + ref - recordCount*recordSize.
type stringPool struct {
	recordSize       int
	totalRecordBytes int
	prevRecordBytes  []int
	prevStringBytes  []int
	tables           []Region
}

func newStringPool(f *File) *stringPool {
	p := &stringPool{
		recordSize:      int(f.Header.RecordSize),
		prevRecordBytes: make([]int, len(f.Sections)),
		prevStringBytes: make([]int, len(f.Sections)),
		tables:          make([]Region, len(f.Sections)),
	}

	strBytes := 0
	for i, sh := range f.Sections {
		p.prevRecordBytes[i] = p.totalRecordBytes
		p.prevStringBytes[i] = strBytes
		p.tables[i] = f.Layout.Sections[i].Strings
		p.totalRecordBytes += int(sh.RecordCount) * p.recordSize
		strBytes += f.Layout.Sections[i].Strings.Len()
	}
	return p
}

// resolve returns the string referenced by ref, stored fieldOffset bytes into
// the record at position of section. A zero reference is the empty string.
func (p *stringPool) resolve(data []byte, section, position, fieldOffset int, ref uint32) (string, error) {
	if ref == 0 {
		return "", nil
	}

	global := p.prevRecordBytes[section] + position*p.recordSize + fieldOffset + int(ref)
	off := global - p.totalRecordBytes
	if off < 0 {
		return "", errors.Wrapf(ErrStringOutOfRange, "reference %d resolves before the string tables", ref)
	}

	for i, table := range p.tables {
		start := p.prevStringBytes[i]
		if off < start || off >= start+table.Len() {
			continue
		}
		b := table.Bytes(data)[off-start:]
		if n := bytes.IndexByte(b, 0); n >= 0 {
			b = b[:n]
		}
		return string(b), nil
	}
	return "", errors.Wrapf(ErrStringOutOfRange, "reference %d (string offset %d)", ref, off)
}
