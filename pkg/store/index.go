package store

import (
	"math"
	"sync"

	"github.com/ssargent/db2kit/pkg/bptree"
	"github.com/ssargent/db2kit/pkg/wdc"
)

// indexOrder is the branching factor of record index trees
const indexOrder = 64

// RecordIndex provides ordered lookups of decoded records by identifier.
// It is safe for concurrent use.
type RecordIndex struct {
	tree  *bptree.BPlusTree[uint32, *wdc.Record]
	mutex sync.RWMutex // guards tree replacement
}

func (idx *RecordIndex) current() *bptree.BPlusTree[uint32, *wdc.Record] {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()
	return idx.tree
}

func (idx *RecordIndex) replace(tree *bptree.BPlusTree[uint32, *wdc.Record]) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()
	idx.tree = tree
}

// NewRecordIndex creates a new, empty record index
func NewRecordIndex() *RecordIndex {
	return &RecordIndex{
		tree: bptree.NewBPlusTree[uint32, *wdc.Record](indexOrder),
	}
}

// Put adds or replaces the record stored under its identifier
func (idx *RecordIndex) Put(rec *wdc.Record) {
	idx.current().Insert(rec.ID(), rec)
}

// Get retrieves the record with identifier id
func (idx *RecordIndex) Get(id uint32) (*wdc.Record, bool) {
	return idx.current().Search(id)
}

// Delete removes an identifier from the index
func (idx *RecordIndex) Delete(id uint32) {
	idx.current().Delete(id)
}

// Size returns the number of identifiers in the index
func (idx *RecordIndex) Size() int {
	return idx.current().Len()
}

// Clear removes all entries from the index
func (idx *RecordIndex) Clear() {
	idx.replace(bptree.NewBPlusTree[uint32, *wdc.Record](indexOrder))
}

// IDs returns every identifier in ascending order
func (idx *RecordIndex) IDs() []uint32 {
	ids := make([]uint32, 0, idx.Size())
	idx.current().Ascend(func(id uint32, _ *wdc.Record) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Range returns the records with lo <= id <= hi, by ascending identifier
func (idx *RecordIndex) Range(lo, hi uint32) []*wdc.Record {
	var out []*wdc.Record
	idx.current().Range(lo, hi, func(_ uint32, rec *wdc.Record) bool {
		out = append(out, rec)
		return true
	})
	return out
}

// Page returns up to limit records with identifiers of at least start, by
// ascending identifier. A limit <= 0 returns every remaining record.
func (idx *RecordIndex) Page(start uint32, limit int) []*wdc.Record {
	var out []*wdc.Record
	idx.current().Range(start, math.MaxUint32, func(_ uint32, rec *wdc.Record) bool {
		out = append(out, rec)
		return limit <= 0 || len(out) < limit
	})
	return out
}

// BuildFromTable replaces the index contents with the records of t. When an
// identifier occurs more than once the first record in table order wins.
func (idx *RecordIndex) BuildFromTable(t *wdc.Table) {
	tree := bptree.NewBPlusTree[uint32, *wdc.Record](indexOrder)
	for _, rec := range t.Records {
		if _, dup := tree.Search(rec.ID()); !dup {
			tree.Insert(rec.ID(), rec)
		}
	}
	idx.replace(tree)
}

// Stats returns index statistics
func (idx *RecordIndex) Stats() *IndexStats {
	tree := idx.current()
	return &IndexStats{
		TotalRecords: tree.Len(),
		Height:       tree.Height(),
	}
}

// IndexStats holds statistics about the index
type IndexStats struct {
	TotalRecords int
	Height       int
}
