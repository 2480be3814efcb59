package wdc

import (
	"encoding/binary"
)

// CopyTableEntry declares NewID a verbatim duplicate of the row holding
// CopiedID.
type CopyTableEntry struct {
	NewID    uint32
	CopiedID uint32
}

func parseCopyTable(b []byte) []CopyTableEntry {
	entries := make([]CopyTableEntry, len(b)/CopyEntrySize)
	for i := range entries {
		entries[i] = CopyTableEntry{
			NewID:    binary.LittleEndian.Uint32(b[i*CopyEntrySize:]),
			CopiedID: binary.LittleEndian.Uint32(b[i*CopyEntrySize+4:]),
		}
	}
	return entries
}

// copyIndex maps a copied identifier to the new identifiers cloned from it,
// in copy table order.
type copyIndex map[uint32][]uint32

func newCopyIndex(entries []CopyTableEntry) copyIndex {
	if len(entries) == 0 {
		return nil
	}
	ix := make(copyIndex, len(entries))
	for _, e := range entries {
		ix[e.CopiedID] = append(ix[e.CopiedID], e.NewID)
	}
	return ix
}

// clones returns the copies of rec, one per copy table entry naming its
// identifier.
func (ix copyIndex) clones(rec *Record) []*Record {
	ids := ix[rec.ID()]
	if len(ids) == 0 {
		return nil
	}
	out := make([]*Record, len(ids))
	for i, id := range ids {
		out[i] = rec.withID(id)
	}
	return out
}

// ExpandCopies returns rec followed by one clone for every entry whose
// copied identifier equals rec's identifier, in entry order. Clones differ
// from rec only in the identifier field.
func ExpandCopies(rec *Record, entries []CopyTableEntry) []*Record {
	return append([]*Record{rec}, newCopyIndex(entries).clones(rec)...)
}
