// Package index maintains secondary indexes over the fields of decoded
// tables.
package index

import (
	"encoding/binary"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/db2kit/pkg/bptree"
	"github.com/ssargent/db2kit/pkg/schema"
	"github.com/ssargent/db2kit/pkg/wdc"
)

var (
	// ErrFieldNotFound is returned for a field the table's schema lacks
	ErrFieldNotFound = errors.New("field not found")
	// ErrUnsupportedField is returned for fields that cannot be indexed:
	// floats and fields with more than one element
	ErrUnsupportedField = errors.New("field cannot be indexed")
)

// SecondaryIndex manages a B+Tree-based index for a specific field
type SecondaryIndex struct {
	fieldName string
	field     int
	typ       schema.Type
	text      bool
	tree      *bptree.BPlusTree[string, *wdc.Record]
}

// NewSecondaryIndex builds an index of t over the named field
func NewSecondaryIndex(t *wdc.Table, fieldName string, order int) (*SecondaryIndex, error) {
	s := t.Schema()
	i := s.FieldIndex(fieldName)
	if i < 0 {
		return nil, errors.Wrapf(ErrFieldNotFound, "%s.%s", s.Name(), fieldName)
	}
	f := s.Field(i)
	if f.Elements() != 1 || f.Type == schema.Float {
		return nil, errors.Wrapf(ErrUnsupportedField, "%s.%s (%s x%d)", s.Name(), f.Name, f.Type, f.Elements())
	}

	idx := &SecondaryIndex{
		fieldName: f.Name,
		field:     i,
		typ:       f.Type,
		text:      f.IsText(),
		tree:      bptree.NewBPlusTree[string, *wdc.Record](order),
	}
	for _, rec := range t.Records {
		prefix, err := idx.recordValue(t, rec)
		if err != nil {
			return nil, errors.Wrapf(err, "index %s.%s record %d", s.Name(), f.Name, rec.ID())
		}
		idx.tree.Insert(recordKey(prefix, rec), rec)
	}
	return idx, nil
}

// Field is the name of the indexed field
func (idx *SecondaryIndex) Field() string {
	return idx.fieldName
}

// Len is the number of indexed records
func (idx *SecondaryIndex) Len() int {
	return idx.tree.Len()
}

// Search finds records with exact field value match, by ascending
// identifier. value is parsed according to the field's type.
func (idx *SecondaryIndex) Search(value string) ([]*wdc.Record, error) {
	return idx.SearchRange(value, value)
}

// SearchRange finds records with start <= value <= end, ordered by value
// and then identifier.
func (idx *SecondaryIndex) SearchRange(start, end string) ([]*wdc.Record, error) {
	lo, err := idx.parseValue(start)
	if err != nil {
		return nil, err
	}
	hi, err := idx.parseValue(end)
	if err != nil {
		return nil, err
	}

	out := []*wdc.Record{}
	idx.tree.Range(createIndexKey(lo, 0, 0, 0), createIndexKey(hi, math.MaxUint32, math.MaxUint32, math.MaxUint32), func(_ string, rec *wdc.Record) bool {
		out = append(out, rec)
		return true
	})
	return out, nil
}

// recordValue is the serialized field value of rec
func (idx *SecondaryIndex) recordValue(t *wdc.Table, rec *wdc.Record) ([]byte, error) {
	switch {
	case idx.text:
		s, err := t.Text(rec, idx.field)
		if err != nil {
			return nil, err
		}
		return serializeText(s), nil
	case idx.typ.Signed():
		return serializeInt(t.Int(rec, idx.field, 0)), nil
	default:
		return serializeUint(rec.Uint(idx.field, 0)), nil
	}
}

// parseValue serializes a textual query value for the indexed field
func (idx *SecondaryIndex) parseValue(raw string) ([]byte, error) {
	switch {
	case idx.text:
		return serializeText(raw), nil
	case idx.typ.Signed():
		v, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "value of %s", idx.fieldName)
		}
		return serializeInt(v), nil
	default:
		v, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "value of %s", idx.fieldName)
		}
		return serializeUint(v), nil
	}
}

// createIndexKey creates a composite key: field_value + identifier +
// section + position. Every part sorts bytewise in value order, and records
// sharing an identifier keep distinct keys.
func createIndexKey(value []byte, id, section, position uint32) string {
	key := make([]byte, len(value), len(value)+12)
	copy(key, value)
	key = binary.BigEndian.AppendUint32(key, id)
	key = binary.BigEndian.AppendUint32(key, section)
	key = binary.BigEndian.AppendUint32(key, position)
	return string(key)
}

func recordKey(value []byte, rec *wdc.Record) string {
	return createIndexKey(value, rec.ID(), uint32(rec.Section()), uint32(rec.Position()))
}

func serializeUint(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

// serializeInt flips the sign bit so negative values sort first
func serializeInt(v int64) []byte {
	return serializeUint(uint64(v) ^ 1<<63)
}

// serializeText terminates s so that no value is a prefix of another
func serializeText(s string) []byte {
	return append([]byte(s), 0)
}

// IndexManager manages the secondary indexes of one table. Indexes are
// built on first use.
type IndexManager struct {
	table   *wdc.Table
	indexes map[string]*SecondaryIndex
	mutex   sync.Mutex
	order   int
}

// NewIndexManager creates a new index manager for t
func NewIndexManager(t *wdc.Table, order int) *IndexManager {
	return &IndexManager{
		table:   t,
		indexes: make(map[string]*SecondaryIndex),
		order:   order,
	}
}

// GetOrCreateIndex gets an existing index or builds one for a field. Field
// names match case-insensitively.
func (im *IndexManager) GetOrCreateIndex(fieldName string) (*SecondaryIndex, error) {
	s := im.table.Schema()
	i := s.FieldIndex(fieldName)
	if i < 0 {
		return nil, errors.Wrapf(ErrFieldNotFound, "%s.%s", s.Name(), fieldName)
	}
	name := s.Field(i).Name

	im.mutex.Lock()
	defer im.mutex.Unlock()

	if idx, exists := im.indexes[name]; exists {
		return idx, nil
	}
	idx, err := NewSecondaryIndex(im.table, name, im.order)
	if err != nil {
		return nil, err
	}
	im.indexes[name] = idx
	return idx, nil
}

// Related returns the records whose relation field holds foreignID. Tables
// without a relation field have no related records.
func (im *IndexManager) Related(foreignID uint32) ([]*wdc.Record, error) {
	s := im.table.Schema()
	rel := s.RelationField()
	if rel < 0 {
		return []*wdc.Record{}, nil
	}
	idx, err := im.GetOrCreateIndex(s.Field(rel).Name)
	if err != nil {
		return nil, err
	}
	return idx.Search(strconv.FormatUint(uint64(foreignID), 10))
}

// Fields returns the names of the indexes built so far, sorted
func (im *IndexManager) Fields() []string {
	im.mutex.Lock()
	defer im.mutex.Unlock()

	names := make([]string, 0, len(im.indexes))
	for name := range im.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
