package wdc

import (
	"encoding/binary"

	"github.com/ssargent/db2kit/pkg/codec"
)

// RelationshipEntry stores one out-of-line foreign key. RecordIndex is the
// record position, or the record identifier in secondary-key files.
type RelationshipEntry struct {
	ForeignID   uint32
	RecordIndex uint32
}

// relationshipTable resolves a section's relation column.
type relationshipTable struct {
	entries []RelationshipEntry
	byKey   map[uint32]uint32
	order   RegionOrder
	minID   uint32
	maxID   uint32
}

// Region encoding: [count(4)][minID(4)][maxID(4)] then count entries of
// [foreignID(4)][recordIndex(4)].
func parseRelationships(b []byte, order RegionOrder, section int) (*relationshipTable, error) {
	t := &relationshipTable{order: order}
	if len(b) == 0 {
		return t, nil
	}
	if len(b) < relationPrefix {
		return nil, codec.NewFormatError(codec.ErrBadStructure, section, -1,
			"relationship region of %d bytes", len(b))
	}

	le := binary.LittleEndian
	count := int(le.Uint32(b[0:]))
	t.minID = le.Uint32(b[4:])
	t.maxID = le.Uint32(b[8:])
	if relationPrefix+count*RelationEntrySize > len(b) {
		return nil, codec.NewFormatError(codec.ErrBadStructure, section, -1,
			"%d relationship entries do not fit in %d bytes", count, len(b))
	}

	entries := make([]RelationshipEntry, count)
	for i := range entries {
		e := b[relationPrefix+i*RelationEntrySize:]
		entries[i] = RelationshipEntry{
			ForeignID:   le.Uint32(e[0:]),
			RecordIndex: le.Uint32(e[4:]),
		}
	}
	t.index(entries)
	return t, nil
}

// index keys entries by record index. The first entry for a key wins.
func (t *relationshipTable) index(entries []RelationshipEntry) {
	t.entries = entries
	t.byKey = make(map[uint32]uint32, len(entries))
	for _, e := range entries {
		if _, dup := t.byKey[e.RecordIndex]; !dup {
			t.byKey[e.RecordIndex] = e.ForeignID
		}
	}
}

// resolve returns the foreign identifier of the record at position with
// identifier id, or 0 when no entry matches.
func (t *relationshipTable) resolve(position int, id uint32) uint32 {
	if t == nil || t.byKey == nil {
		return 0
	}
	return t.byKey[t.order.relationKey(position, id)]
}

// ResolveRelationship returns the foreign identifier of the first entry
// matching a record, or 0. Positional files match on position;
// secondary-key files match on the record identifier.
func ResolveRelationship(entries []RelationshipEntry, order RegionOrder, position int, id uint32) uint32 {
	t := &relationshipTable{order: order}
	t.index(entries)
	return t.resolve(position, id)
}
