// Package wdc decodes WDC3/WDC4 client database tables into records laid
// out by a caller-supplied schema.
//
// Sections are decoded independently, one goroutine per section, and joined
// in header order. Within a section records are emitted by ascending
// position, followed by the copies produced from the section's copy table.
package wdc

import (
	"runtime"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/db2kit/pkg/codec"
	"github.com/ssargent/db2kit/pkg/schema"
)

// Options configures Decode.
type Options struct {
	Logger  log.Logger
	Keys    KeyRing
	Workers int // sections decoded concurrently, <= 0 means GOMAXPROCS
}

// Stats summarizes a decode.
type Stats struct {
	Sections        int
	SectionsOmitted int // encrypted with an unknown key
	Records         int // including clones
	Clones          int
	RecordsSkipped  int // malformed sparse records
}

// Table is a decoded file.
type Table struct {
	*File
	Records []*Record
	Stats   Stats

	sections [][]*Record
	schema   *schema.Schema
	data     []byte
	strings  *stringPool
}

// decoder holds the shared, read-only state of one Decode call.
type decoder struct {
	data   []byte
	file   *File
	schema *schema.Schema
	cols   *ColumnStore
	keys   KeyRing
	logger log.Logger
}

// Decode parses data against s and returns every record of the file.
// Errors are terminal for the file; no partial table is returned.
func Decode(data []byte, s *schema.Schema, opts Options) (*Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "table", s.Name())

	f, err := Parse(data, s)
	if err != nil {
		return nil, err
	}
	cols, err := NewColumnStore(data, f)
	if err != nil {
		return nil, err
	}

	d := &decoder{
		data:   data,
		file:   f,
		schema: s,
		cols:   cols,
		keys:   opts.Keys,
		logger: logger,
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]sectionResult, len(f.Sections))
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range f.Sections {
		i := i
		g.Go(func() error {
			res, err := d.decodeSection(i)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := &Table{
		File:     f,
		sections: make([][]*Record, len(results)),
		schema:   s,
		data:     data,
		strings:  newStringPool(f),
	}
	t.Stats.Sections = len(results)
	for i, res := range results {
		t.sections[i] = res.records
		t.Records = append(t.Records, res.records...)
		t.Stats.Clones += res.clones
		t.Stats.RecordsSkipped += res.skipped
		if res.omitted {
			t.Stats.SectionsOmitted++
		}
	}
	t.Stats.Records = len(t.Records)

	level.Debug(logger).Log("msg", "decoded table", "signature", f.Header.Signature,
		"sections", t.Stats.Sections, "records", t.Stats.Records, "omitted", t.Stats.SectionsOmitted)
	return t, nil
}

// Schema returns the schema the table was decoded with.
func (t *Table) Schema() *schema.Schema { return t.schema }

// SectionRecords returns the records decoded from section i.
func (t *Table) SectionRecords(i int) []*Record { return t.sections[i] }

// Strings resolves every element of text field i of rec. Sparse records
// carry their strings inline; fixed records reference the string tables.
func (t *Table) Strings(rec *Record, i int) ([]string, error) {
	f := t.schema.Field(i)
	if !f.IsText() {
		return nil, codec.NewFormatError(codec.ErrBadStructure, rec.section, i, "field %q is not text", f.Name)
	}
	if t.Header.Flags.Sparse() {
		return rec.InlineText(i), nil
	}

	col := t.schema.Column(i)
	base := int(t.FieldStorage[col].OffsetBits / 8)
	out := make([]string, f.Elements())
	for j := range out {
		ref := uint32(rec.Uint(i, j))
		s, err := t.strings.resolve(t.data, rec.section, rec.position, base+j*f.Width(), ref)
		if err != nil {
			return nil, err
		}
		out[j] = s
	}
	return out, nil
}

// Text resolves the first element of text field i of rec.
func (t *Table) Text(rec *Record, i int) (string, error) {
	strs, err := t.Strings(rec, i)
	if err != nil || len(strs) == 0 {
		return "", err
	}
	return strs[0], nil
}
