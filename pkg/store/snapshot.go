package store

import (
	"encoding/binary"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/db2kit/pkg/wdc"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a table.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Key layout:
//
//	m/<table>                 manifest of the table's current snapshot
//	r/<snapshot>/<id:be32>    one row per record, JSON encoded
const (
	manifestPrefix = "m/"
	rowPrefix      = "r/"
)

// Manifest describes the current snapshot of a table.
type Manifest struct {
	Snapshot  ksuid.KSUID `json:"snapshot"`
	Table     string      `json:"table"`
	Source    string      `json:"source,omitempty"`
	Records   int         `json:"records"`
	Skipped   int         `json:"skipped"`
	Omitted   int         `json:"omitted_sections"`
	CreatedAt time.Time   `json:"created_at"`
}

// Row is one persisted record: its field values keyed by field name.
type Row map[string]interface{}

// SnapshotStore persists decoded tables in pebble. Each export writes a new
// snapshot, identified by a KSUID, and then drops the table's previous one.
type SnapshotStore struct {
	db *pebble.DB
}

// OpenSnapshotStore opens or creates a snapshot store at path.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open snapshot store %s", path)
	}
	return &SnapshotStore{db: db}, nil
}

func manifestKey(table string) []byte {
	return []byte(manifestPrefix + strings.ToLower(table))
}

func snapshotPrefix(id ksuid.KSUID) []byte {
	return []byte(rowPrefix + id.String() + "/")
}

func rowKey(id ksuid.KSUID, recordID uint32) []byte {
	return binary.BigEndian.AppendUint32(snapshotPrefix(id), recordID)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

// Put writes every record of t as a new snapshot of table and makes it the
// table's current snapshot. Records sharing an identifier keep the first.
func (s *SnapshotStore) Put(table, source string, t *wdc.Table) (*Manifest, error) {
	previous, err := s.Manifest(table)
	if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
		return nil, err
	}

	m := &Manifest{
		Snapshot:  ksuid.New(),
		Table:     table,
		Source:    source,
		Skipped:   t.Stats.RecordsSkipped,
		Omitted:   t.Stats.SectionsOmitted,
		CreatedAt: time.Now().UTC(),
	}

	b := s.db.NewBatch()
	defer b.Close()

	seen := make(map[uint32]struct{}, len(t.Records))
	for _, rec := range t.Records {
		if _, dup := seen[rec.ID()]; dup {
			continue
		}
		seen[rec.ID()] = struct{}{}

		values, err := t.Values(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", rec.ID())
		}
		row, err := json.Marshal(values)
		if err != nil {
			return nil, errors.Wrapf(err, "encode record %d", rec.ID())
		}
		if err := b.Set(rowKey(m.Snapshot, rec.ID()), row, nil); err != nil {
			return nil, err
		}
	}
	m.Records = len(seen)

	manifest, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encode manifest")
	}
	if err := b.Set(manifestKey(table), manifest, nil); err != nil {
		return nil, err
	}
	if previous != nil {
		prefix := snapshotPrefix(previous.Snapshot)
		if err := b.DeleteRange(prefix, prefixEnd(prefix), nil); err != nil {
			return nil, err
		}
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return nil, errors.Wrapf(err, "commit snapshot of %s", table)
	}
	return m, nil
}

// Manifest returns the current snapshot manifest of table.
func (s *SnapshotStore) Manifest(table string) (*Manifest, error) {
	data, closer, err := s.db.Get(manifestKey(table))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(ErrSnapshotNotFound, "%q", table)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "decode manifest of %s", table)
	}
	return &m, nil
}

// Manifests returns the manifest of every stored table, ordered by name.
func (s *SnapshotStore) Manifests() ([]*Manifest, error) {
	prefix := []byte(manifestPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*Manifest
	for iter.First(); iter.Valid(); iter.Next() {
		var m Manifest
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, errors.Wrapf(err, "decode manifest %s", iter.Key())
		}
		out = append(out, &m)
	}
	return out, iter.Error()
}

// Get returns the row of record id in the current snapshot of table.
func (s *SnapshotStore) Get(table string, id uint32) (Row, error) {
	m, err := s.Manifest(table)
	if err != nil {
		return nil, err
	}

	data, closer, err := s.db.Get(rowKey(m.Snapshot, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(ErrRecordNotFound, "%s id %d", table, id)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, errors.Wrapf(err, "decode %s id %d", table, id)
	}
	return row, nil
}

// Scan calls fn for every row of the current snapshot of table, by
// ascending identifier. Scanning stops at the first error fn returns.
func (s *SnapshotStore) Scan(table string, fn func(id uint32, row Row) error) error {
	m, err := s.Manifest(table)
	if err != nil {
		return err
	}

	prefix := snapshotPrefix(m.Snapshot)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id := binary.BigEndian.Uint32(iter.Key()[len(prefix):])
		var row Row
		if err := json.Unmarshal(iter.Value(), &row); err != nil {
			return errors.Wrapf(err, "decode %s id %d", table, id)
		}
		if err := fn(id, row); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Close closes the underlying database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
