package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/db2kit/pkg/index"
	"github.com/ssargent/db2kit/pkg/schema"
	"github.com/ssargent/db2kit/pkg/wdc"
)

var (
	// ErrTableNotFound is returned when no table is registered under a name.
	ErrTableNotFound = errors.New("table not found")
	// ErrRecordNotFound is returned when a table has no record with an identifier.
	ErrRecordNotFound = errors.New("record not found")
)

// Entry is a decoded table registered in a Catalog.
type Entry struct {
	Name     string
	Source   string
	Checksum string // BLAKE3 of the source file, empty when added directly
	LoadedAt time.Time
	Table    *wdc.Table
	Index    *RecordIndex
	Indexes  *index.IndexManager // field indexes, built on first use
}

// Catalog holds decoded tables by case-insensitive name. It is safe for
// concurrent use; tables are read-only once added.
type Catalog struct {
	tables map[string]*Entry
	mutex  sync.RWMutex
}

// fieldIndexOrder is the branching factor of field index trees
const fieldIndexOrder = 64

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]*Entry)}
}

// Add registers t under name, replacing any table already registered there.
func (c *Catalog) Add(name, source string, t *wdc.Table) *Entry {
	return c.add(name, source, "", t)
}

func (c *Catalog) add(name, source, checksum string, t *wdc.Table) *Entry {
	idx := NewRecordIndex()
	idx.BuildFromTable(t)
	e := &Entry{
		Name:     name,
		Source:   source,
		Checksum: checksum,
		LoadedAt: time.Now().UTC(),
		Table:    t,
		Index:    idx,
		Indexes:  index.NewIndexManager(t, fieldIndexOrder),
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tables[strings.ToLower(name)] = e
	return e
}

// LoadFile decodes the file at path with s and registers it under the
// schema's name. Files ending in .xz are decompressed first.
func (c *Catalog) LoadFile(path string, s *schema.Schema, opts wdc.Options) (*Entry, error) {
	data, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	t, err := wdc.Decode(data, s, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return c.add(s.Name(), path, Checksum(data), t), nil
}

// Get returns the table registered under name.
func (c *Catalog) Get(name string) (*Entry, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.tables[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "%q", name)
	}
	return e, nil
}

// Remove unregisters name. It reports whether a table was removed.
func (c *Catalog) Remove(name string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := strings.ToLower(name)
	_, ok := c.tables[key]
	delete(c.tables, key)
	return ok
}

// Entries returns every registered table, sorted by name.
func (c *Catalog) Entries() []*Entry {
	c.mutex.RLock()
	out := make([]*Entry, 0, len(c.tables))
	for _, e := range c.tables {
		out = append(out, e)
	}
	c.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// Lookup returns the record with identifier id of table name.
func (c *Catalog) Lookup(name string, id uint32) (*Entry, *wdc.Record, error) {
	e, err := c.Get(name)
	if err != nil {
		return nil, nil, err
	}
	rec, ok := e.Index.Get(id)
	if !ok {
		return nil, nil, errors.Wrapf(ErrRecordNotFound, "%s id %d", e.Name, id)
	}
	return e, rec, nil
}
