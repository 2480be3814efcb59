package wdc

import (
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/db2kit/pkg/codec"
	"github.com/ssargent/db2kit/pkg/schema"
	"github.com/ssargent/db2kit/pkg/wdc/wdctest"
)

func idValueSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "Value", Type: schema.Uint32},
	})
	require.NoError(t, err)
	return s
}

func idOnlySchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
	})
	require.NoError(t, err)
	return s
}

func ids(records []*Record) []uint32 {
	out := make([]uint32, len(records))
	for i, r := range records {
		out[i] = r.ID()
	}
	return out
}

func TestDecode_SingleFixedSection(t *testing.T) {
	data := wdctest.File{
		RecordSize: 4,
		Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32)},
		Sections: []wdctest.Section{
			{RecordCount: 2, Records: wdctest.U32s(0x01020304, 77)},
		},
	}.Build()

	table, err := Decode(data, idOnlySchema(t), Options{})
	require.NoError(t, err)

	require.Len(t, table.Records, 2)
	assert.Equal(t, []uint32{0x01020304, 77}, ids(table.Records))
	assert.Equal(t, 0, table.Records[0].Position())
	assert.Equal(t, 1, table.Records[1].Position())
	assert.Equal(t, Clear, table.Records[0].Encryption())
	assert.Equal(t, Stats{Sections: 1, Records: 2}, table.Stats)
}

func TestDecode_WDC4Signature(t *testing.T) {
	data := wdctest.File{
		Signature:  SignatureWDC4,
		RecordSize: 4,
		Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32)},
		Sections:   []wdctest.Section{{RecordCount: 1, Records: wdctest.U32s(5)}},
	}.Build()

	table, err := Decode(data, idOnlySchema(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, SignatureWDC4, table.Header.Signature)
	assert.Equal(t, []uint32{5}, ids(table.Records))
}

func TestDecode_CopyTable(t *testing.T) {
	data := wdctest.File{
		RecordSize: 8,
		Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32)},
		Sections: []wdctest.Section{{
			RecordCount: 2,
			Records:     wdctest.U32s(7, 100, 11, 200),
			Copies:      []wdctest.Copy{{NewID: 99, CopiedID: 7}},
		}},
	}.Build()

	table, err := Decode(data, idValueSchema(t), Options{})
	require.NoError(t, err)

	require.Len(t, table.Records, 3)
	assert.Equal(t, []uint32{7, 11, 99}, ids(table.Records))

	clone, source := table.Records[2], table.Records[0]
	assert.Equal(t, source.Field(1), clone.Field(1))
	assert.Equal(t, source.Position(), clone.Position())
	assert.Equal(t, 1, table.Stats.Clones)
	assert.Equal(t, uint32(7), source.ID(), "source must not be mutated")
}

func TestExpandCopies(t *testing.T) {
	s := idValueSchema(t)
	rec := &Record{data: wdctest.U32s(7, 100), schema: s}

	out := ExpandCopies(rec, []CopyTableEntry{
		{NewID: 20, CopiedID: 7},
		{NewID: 21, CopiedID: 8},
		{NewID: 22, CopiedID: 7},
	})

	require.Len(t, out, 3)
	assert.Same(t, rec, out[0])
	assert.Equal(t, []uint32{7, 20, 22}, ids(out))
	for _, c := range out[1:] {
		assert.Equal(t, rec.Bytes()[4:], c.Bytes()[4:])
	}

	out = ExpandCopies(rec, nil)
	require.Len(t, out, 1)
	assert.Same(t, rec, out[0])
}

func TestDecode_Bitpacked(t *testing.T) {
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "High", Type: schema.Uint8},
		{Name: "Low", Type: schema.Int8},
	})
	require.NoError(t, err)

	record := append(wdctest.U32s(3), 0b1010_0101)
	data := wdctest.File{
		RecordSize: 5,
		Fields: []codec.FieldStorageInfo{
			wdctest.RawField(0, 32),
			{Kind: codec.Bitpacked, OffsetBits: 36, SizeBits: 4},
			{Kind: codec.BitpackedSigned, OffsetBits: 32, SizeBits: 3},
		},
		Sections: []wdctest.Section{{RecordCount: 1, Records: record}},
	}.Build()

	table, err := Decode(data, s, Options{})
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	rec := table.Records[0]
	assert.Equal(t, uint64(10), rec.Uint(1, 0))
	// Signed columns keep the raw bit pattern; 0b101 is -3 in three bits.
	assert.Equal(t, uint64(0b101), rec.Uint(2, 0))
	assert.Equal(t, int32(-3), codec.SignExtend(rec.Uint32(2), 3))
	assert.Equal(t, int64(-3), table.Int(rec, 2, 0))
}

func TestDecode_CommonData(t *testing.T) {
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "Level", Type: schema.Uint32},
	})
	require.NoError(t, err)

	data := wdctest.File{
		RecordSize: 4,
		Fields: []codec.FieldStorageInfo{
			wdctest.RawField(0, 32),
			{Kind: codec.CommonData, OffsetBits: 32, AdditionalDataSize: 8, Extra: [3]uint32{5, 0, 0}},
		},
		Common:   []uint32{2, 77},
		Sections: []wdctest.Section{{RecordCount: 3, Records: wdctest.U32s(1, 2, 3)}},
	}.Build()

	table, err := Decode(data, s, Options{})
	require.NoError(t, err)
	require.Len(t, table.Records, 3)

	assert.Equal(t, uint32(5), table.Records[0].Uint32(1))
	assert.Equal(t, uint32(77), table.Records[1].Uint32(1))
	assert.Equal(t, uint32(5), table.Records[2].Uint32(1))
}

func TestDecode_Pallet(t *testing.T) {
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "Display", Type: schema.Uint32},
		{Name: "Colors", Type: schema.Uint8, Count: 3},
	})
	require.NoError(t, err)

	data := wdctest.File{
		RecordSize: 5,
		Fields: []codec.FieldStorageInfo{
			wdctest.RawField(0, 32),
			{Kind: codec.BitpackedIndexed, OffsetBits: 32, SizeBits: 2, AdditionalDataSize: 12},
			{Kind: codec.BitpackedIndexedArray, OffsetBits: 34, SizeBits: 2, AdditionalDataSize: 24, Extra: [3]uint32{0, 0, 3}},
		},
		Pallet: []uint32{
			1000, 2000, 3000,
			0x101, 0x102, 0x103, 0x201, 0x202, 0x203,
		},
		Sections: []wdctest.Section{{RecordCount: 1, Records: append(wdctest.U32s(9), 0b0101)}},
	}.Build()

	table, err := Decode(data, s, Options{})
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	rec := table.Records[0]
	assert.Equal(t, uint32(2000), rec.Uint32(1))
	assert.Equal(t, []byte{1, 2, 3}, rec.Field(2))
}

func TestDecode_IdentifierList(t *testing.T) {
	t.Run("non-inline identifier", func(t *testing.T) {
		s, err := schema.New("Test", []schema.Field{
			{Name: "ID", Type: schema.Uint32, ID: true, NonInline: true},
			{Name: "Value", Type: schema.Uint32},
		})
		require.NoError(t, err)

		data := wdctest.File{
			RecordSize: 4,
			Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32)},
			Sections:   []wdctest.Section{{RecordCount: 2, Records: wdctest.U32s(500, 600), IDs: []uint32{10, 20}}},
		}.Build()

		table, err := Decode(data, s, Options{})
		require.NoError(t, err)
		assert.Equal(t, []uint32{10, 20}, ids(table.Records))
		assert.Equal(t, uint32(500), table.Records[0].Uint32(1))
		assert.Equal(t, uint32(600), table.Records[1].Uint32(1))
	})

	t.Run("list overrides inline identifier", func(t *testing.T) {
		data := wdctest.File{
			RecordSize: 8,
			Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32)},
			Sections:   []wdctest.Section{{RecordCount: 2, Records: wdctest.U32s(1, 500, 2, 600), IDs: []uint32{10, 20}}},
		}.Build()

		table, err := Decode(data, idValueSchema(t), Options{})
		require.NoError(t, err)
		assert.Equal(t, []uint32{10, 20}, ids(table.Records))
	})

	t.Run("short list is a structure error", func(t *testing.T) {
		data := wdctest.File{
			RecordSize: 8,
			Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32)},
			Sections:   []wdctest.Section{{RecordCount: 2, Records: wdctest.U32s(1, 500, 2, 600), IDs: []uint32{10}}},
		}.Build()

		_, err := Decode(data, idValueSchema(t), Options{})
		require.True(t, errors.Is(err, ErrBadStructure), "got %v", err)
		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 0, fe.Section)
		assert.Equal(t, 0, fe.Field)
	})
}

func relationSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "Value", Type: schema.Uint32},
		{Name: "ParentID", Type: schema.Uint32, Relation: true},
	})
	require.NoError(t, err)
	return s
}

func TestDecode_Relationships(t *testing.T) {
	t.Run("by position", func(t *testing.T) {
		data := wdctest.File{
			RecordSize: 8,
			Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32)},
			Sections: []wdctest.Section{{
				RecordCount: 3,
				Records:     wdctest.U32s(1, 5, 2, 6, 3, 7),
				Relations: []wdctest.Relation{
					{ForeignID: 900, RecordIndex: 2},
					{ForeignID: 800, RecordIndex: 0},
					{ForeignID: 700, RecordIndex: 0},
				},
			}},
		}.Build()

		table, err := Decode(data, relationSchema(t), Options{})
		require.NoError(t, err)
		require.Len(t, table.Records, 3)
		assert.Equal(t, uint32(800), table.Records[0].Uint32(2))
		assert.Equal(t, uint32(0), table.Records[1].Uint32(2))
		assert.Equal(t, uint32(900), table.Records[2].Uint32(2))
	})

	t.Run("by identifier with secondary keys", func(t *testing.T) {
		data := wdctest.File{
			SecondaryKeys: true,
			RecordSize:    8,
			Fields:        []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32)},
			Sections: []wdctest.Section{{
				RecordCount: 3,
				Records:     wdctest.U32s(1, 5, 2, 6, 3, 7),
				Relations:   []wdctest.Relation{{ForeignID: 42, RecordIndex: 2}},
			}},
		}.Build()

		table, err := Decode(data, relationSchema(t), Options{})
		require.NoError(t, err)
		assert.Equal(t, uint32(0), table.Records[0].Uint32(2))
		assert.Equal(t, uint32(42), table.Records[1].Uint32(2))
		assert.Equal(t, uint32(0), table.Records[2].Uint32(2))
	})
}

func TestResolveRelationship(t *testing.T) {
	entries := []RelationshipEntry{{ForeignID: 1, RecordIndex: 4}, {ForeignID: 2, RecordIndex: 9}}

	assert.Equal(t, uint32(1), ResolveRelationship(entries, OrderPositional, 4, 9))
	assert.Equal(t, uint32(2), ResolveRelationship(entries, OrderSecondaryKeys, 4, 9))
	assert.Equal(t, uint32(0), ResolveRelationship(entries, OrderPositional, 5, 5))
	assert.Equal(t, uint32(0), ResolveRelationship(nil, OrderPositional, 4, 9))

	// The first entry for a record wins.
	entries = append(entries, RelationshipEntry{ForeignID: 3, RecordIndex: 4})
	assert.Equal(t, uint32(1), ResolveRelationship(entries, OrderPositional, 4, 9))
}

func TestParse_RegionOrder(t *testing.T) {
	section := wdctest.Section{
		RecordCount: 1,
		Records:     wdctest.U32s(1, 2),
		Offsets:     []wdctest.Offset{{Offset: 0, Size: 8}},
		Relations:   []wdctest.Relation{{ForeignID: 3, RecordIndex: 0}},
	}

	plain := wdctest.File{
		RecordSize: 8,
		Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32)},
		Sections:   []wdctest.Section{section},
	}
	f, err := Parse(plain.Build(), relationSchema(t))
	require.NoError(t, err)
	sl := f.Layout.Sections[0]
	assert.Equal(t, OrderPositional, f.Layout.Order)
	assert.Equal(t, sl.OffsetMap.End, sl.Relationships.Start)

	keyed := plain
	keyed.SecondaryKeys = true
	f, err = Parse(keyed.Build(), relationSchema(t))
	require.NoError(t, err)
	sl = f.Layout.Sections[0]
	assert.Equal(t, OrderSecondaryKeys, f.Layout.Order)
	assert.Equal(t, sl.Relationships.End, sl.OffsetMap.Start)
	assert.Equal(t, 20, sl.Relationships.Len())
	assert.Equal(t, OffsetEntrySize, sl.OffsetMap.Len())
}

func textSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "Name", Type: schema.String},
	})
	require.NoError(t, err)
	return s
}

func TestTable_StringsFixed(t *testing.T) {
	t.Run("single section", func(t *testing.T) {
		// References are relative to the field: record bytes (24) plus the
		// string offset, minus the field's own position.
		data := wdctest.File{
			RecordSize: 8,
			Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32)},
			Sections: []wdctest.Section{{
				RecordCount: 3,
				Records:     wdctest.U32s(1, 12+8, 2, 10+8, 3, 0),
				Strings:     []byte("Human\x00Orc\x00"),
			}},
		}.Build()

		table, err := Decode(data, textSchema(t), Options{})
		require.NoError(t, err)
		require.Len(t, table.Records, 3)

		name, err := table.Text(table.Records[0], 1)
		require.NoError(t, err)
		assert.Equal(t, "Human", name)

		name, err = table.Text(table.Records[1], 1)
		require.NoError(t, err)
		assert.Equal(t, "Orc", name)

		name, err = table.Text(table.Records[2], 1)
		require.NoError(t, err)
		assert.Equal(t, "", name)

		_, err = table.Text(table.Records[0], 0)
		assert.True(t, errors.Is(err, ErrBadStructure))
	})

	t.Run("multiple sections", func(t *testing.T) {
		data := wdctest.File{
			RecordSize: 8,
			Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32)},
			Sections: []wdctest.Section{
				{RecordCount: 1, Records: wdctest.U32s(1, 12), Strings: []byte("Alpha\x00")},
				{RecordCount: 1, Records: wdctest.U32s(2, 10), Strings: []byte("Beta\x00")},
			},
		}.Build()

		table, err := Decode(data, textSchema(t), Options{})
		require.NoError(t, err)
		require.Len(t, table.Records, 2)

		name, err := table.Text(table.Records[0], 1)
		require.NoError(t, err)
		assert.Equal(t, "Alpha", name)

		name, err = table.Text(table.Records[1], 1)
		require.NoError(t, err)
		assert.Equal(t, "Beta", name)
	})

	t.Run("reference outside string tables", func(t *testing.T) {
		data := wdctest.File{
			RecordSize: 8,
			Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32)},
			Sections:   []wdctest.Section{{RecordCount: 1, Records: wdctest.U32s(1, 400), Strings: []byte("x\x00")}},
		}.Build()

		table, err := Decode(data, textSchema(t), Options{})
		require.NoError(t, err)
		_, err = table.Text(table.Records[0], 1)
		assert.True(t, errors.Is(err, ErrStringOutOfRange))
	})
}

func sparseRecord(id uint32, name string, level uint16) []byte {
	b := wdctest.U32s(id)
	b = append(b, name...)
	b = append(b, 0)
	return binary.LittleEndian.AppendUint16(b, level)
}

func sparseSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "Name", Type: schema.String},
		{Name: "Level", Type: schema.Uint16},
	})
	require.NoError(t, err)
	return s
}

func sparseFields() []codec.FieldStorageInfo {
	return []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32), wdctest.RawField(8, 16)}
}

func TestDecode_Sparse(t *testing.T) {
	var records []byte
	records = append(records, sparseRecord(10, "Gnome", 5)...)
	records = append(records, sparseRecord(11, "Troll", 7)...)
	records = append(records, "abc"...)

	data := wdctest.File{
		Sparse: true,
		Fields: sparseFields(),
		Sections: []wdctest.Section{{
			RecordCount:  5,
			Records:      records,
			Offsets: []wdctest.Offset{
				{Offset: 0, Size: 12},
				{Offset: 0, Size: 0},
				{Offset: 12, Size: 12},
				{Offset: 24, Size: 3},
				{Offset: 100, Size: 10},
			},
			OffsetMapIDs: []uint32{10, 0, 11, 0, 0},
			Copies:       []wdctest.Copy{{NewID: 99, CopiedID: 10}},
		}},
	}.Build()

	table, err := Decode(data, sparseSchema(t), Options{})
	require.NoError(t, err)

	require.Len(t, table.Records, 3)
	assert.Equal(t, []uint32{10, 11, 99}, ids(table.Records))
	assert.Equal(t, 0, table.Records[0].Position())
	assert.Equal(t, 2, table.Records[1].Position())
	assert.Equal(t, uint64(5), table.Records[0].Uint(2, 0))
	assert.Equal(t, uint64(7), table.Records[1].Uint(2, 0))
	assert.Equal(t, 3, table.Stats.RecordsSkipped)

	name, err := table.Text(table.Records[1], 1)
	require.NoError(t, err)
	assert.Equal(t, "Troll", name)

	name, err = table.Text(table.Records[2], 1)
	require.NoError(t, err)
	assert.Equal(t, "Gnome", name)
}

func TestDecode_SparseOffsetMapIdentifiers(t *testing.T) {
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true, NonInline: true},
		{Name: "Name", Type: schema.String},
	})
	require.NoError(t, err)

	data := wdctest.File{
		Sparse: true,
		Fields: []codec.FieldStorageInfo{wdctest.RawField(0, 32)},
		Sections: []wdctest.Section{{
			RecordCount:  2,
			Records:      []byte("A\x00BB\x00"),
			Offsets:      []wdctest.Offset{{Offset: 0, Size: 2}, {Offset: 2, Size: 3}},
			OffsetMapIDs: []uint32{5, 6},
		}},
	}.Build()

	table, err := Decode(data, s, Options{})
	require.NoError(t, err)
	assert.Equal(t, []uint32{5, 6}, ids(table.Records))
	assert.Equal(t, []string{"BB"}, table.Records[1].InlineText(1))
}

func TestDecode_SparseRejectsCompressedColumns(t *testing.T) {
	fields := sparseFields()
	fields[2] = codec.FieldStorageInfo{Kind: codec.Bitpacked, OffsetBits: 64, SizeBits: 16}

	data := wdctest.File{
		Sparse:   true,
		Fields:   fields,
		Sections: []wdctest.Section{{RecordCount: 1, Records: sparseRecord(1, "x", 1), Offsets: []wdctest.Offset{{Size: 8}}}},
	}.Build()

	_, err := Decode(data, sparseSchema(t), Options{})
	require.True(t, errors.Is(err, ErrUnsupportedEncoding), "got %v", err)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Field)
}

func TestDecode_EncryptedSections(t *testing.T) {
	fixed := wdctest.File{
		RecordSize: 4,
		Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32)},
		Sections: []wdctest.Section{
			{RecordCount: 2, Records: wdctest.U32s(1, 2)},
			{KeyID: 0xABCDEF, RecordCount: 1, Records: wdctest.U32s(3)},
		},
	}

	t.Run("unknown key omits section", func(t *testing.T) {
		table, err := Decode(fixed.Build(), idOnlySchema(t), Options{})
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 2}, ids(table.Records))
		assert.Equal(t, 1, table.Stats.SectionsOmitted)
		assert.Empty(t, table.SectionRecords(1))
	})

	t.Run("known key decodes and tags records", func(t *testing.T) {
		table, err := Decode(fixed.Build(), idOnlySchema(t), Options{Keys: NewStaticKeyRing(0xABCDEF)})
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 2, 3}, ids(table.Records))
		assert.Equal(t, Clear, table.Records[0].Encryption())
		assert.Equal(t, Encrypted, table.Records[2].Encryption())
		assert.Equal(t, 0, table.Stats.SectionsOmitted)
	})

	t.Run("sparse sections follow the same rule", func(t *testing.T) {
		sparse := wdctest.File{
			Sparse: true,
			Fields: sparseFields(),
			Sections: []wdctest.Section{
				{RecordCount: 1, Records: sparseRecord(1, "a", 1), Offsets: []wdctest.Offset{{Size: 8}}, OffsetMapIDs: []uint32{1}},
				{KeyID: 7, RecordCount: 1, Records: sparseRecord(2, "b", 2), Offsets: []wdctest.Offset{{Size: 8}}, OffsetMapIDs: []uint32{2}},
			},
		}

		table, err := Decode(sparse.Build(), sparseSchema(t), Options{})
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, ids(table.Records))

		table, err = Decode(sparse.Build(), sparseSchema(t), Options{Keys: NewStaticKeyRing(7)})
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 2}, ids(table.Records))
	})
}

func TestDecode_Errors(t *testing.T) {
	base := wdctest.File{
		RecordSize: 4,
		Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32)},
		Sections:   []wdctest.Section{{RecordCount: 2, Records: wdctest.U32s(1, 2)}},
	}

	t.Run("bad signature", func(t *testing.T) {
		bad := base
		bad.Signature = "WDC2"
		_, err := Decode(bad.Build(), idOnlySchema(t), Options{})
		assert.True(t, errors.Is(err, ErrBadSignature), "got %v", err)

		_, err = Decode([]byte("WD"), idOnlySchema(t), Options{})
		assert.True(t, errors.Is(err, ErrBadSignature), "got %v", err)
	})

	t.Run("schema field count mismatch", func(t *testing.T) {
		_, err := Decode(base.Build(), idValueSchema(t), Options{})
		assert.True(t, errors.Is(err, ErrBadStructure), "got %v", err)
	})

	t.Run("field storage count mismatch", func(t *testing.T) {
		data := base.Build()
		binary.LittleEndian.PutUint32(data[56:], 0)
		_, err := Decode(data, idOnlySchema(t), Options{})
		assert.True(t, errors.Is(err, ErrBadStructure), "got %v", err)
	})

	t.Run("section count mismatch", func(t *testing.T) {
		data := base.Build()
		binary.LittleEndian.PutUint32(data[68:], 500)
		_, err := Decode(data, idOnlySchema(t), Options{})
		assert.True(t, errors.Is(err, ErrBadStructure), "got %v", err)
	})

	t.Run("truncated records", func(t *testing.T) {
		data := base.Build()
		_, err := Decode(data[:len(data)-2], idOnlySchema(t), Options{})
		require.True(t, errors.Is(err, ErrBadStructure), "got %v", err)
		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 0, fe.Section)
	})
}

func TestDecode_SectionIndependence(t *testing.T) {
	data := wdctest.File{
		RecordSize: 8,
		Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32), wdctest.RawField(4, 32)},
		Sections: []wdctest.Section{
			{RecordCount: 2, Records: wdctest.U32s(1, 10, 2, 20), Copies: []wdctest.Copy{{NewID: 50, CopiedID: 2}}},
			{RecordCount: 1, Records: wdctest.U32s(3, 30)},
			{RecordCount: 3, Records: wdctest.U32s(4, 40, 5, 50, 6, 60), Copies: []wdctest.Copy{{NewID: 60, CopiedID: 4}}},
		},
	}.Build()
	s := idValueSchema(t)

	sequential, err := Decode(data, s, Options{Workers: 1})
	require.NoError(t, err)
	parallel, err := Decode(data, s, Options{Workers: 8})
	require.NoError(t, err)
	assert.Equal(t, ids(sequential.Records), ids(parallel.Records))
	assert.Equal(t, []uint32{1, 2, 50, 3, 4, 5, 6, 60}, ids(sequential.Records))

	// Decoding the sections back to front yields the same per-section sets.
	f, err := Parse(data, s)
	require.NoError(t, err)
	cols, err := NewColumnStore(data, f)
	require.NoError(t, err)
	d := &decoder{data: data, file: f, schema: s, cols: cols, logger: log.NewNopLogger()}
	for i := len(f.Sections) - 1; i >= 0; i-- {
		res, err := d.decodeSection(i)
		require.NoError(t, err)
		assert.Equal(t, ids(sequential.SectionRecords(i)), ids(res.records))
	}
}

func TestTable_Values(t *testing.T) {
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "Name", Type: schema.String},
		{Name: "Delta", Type: schema.Int16},
		{Name: "Scale", Type: schema.Float},
		{Name: "Flags", Type: schema.Uint8, Count: 2},
	})
	require.NoError(t, err)

	record := wdctest.U32s(1, 12)
	record = binary.LittleEndian.AppendUint16(record, 0xFFFE)
	record = binary.LittleEndian.AppendUint32(record, 0x3FC00000) // 1.5
	record = append(record, 3, 4)

	data := wdctest.File{
		RecordSize: 16,
		Fields: []codec.FieldStorageInfo{
			wdctest.RawField(0, 32), wdctest.RawField(4, 32), wdctest.RawField(8, 16), wdctest.RawField(10, 32), wdctest.RawField(14, 16),
		},
		Sections: []wdctest.Section{{RecordCount: 1, Records: record, Strings: []byte("Hi\x00")}},
	}.Build()

	table, err := Decode(data, s, Options{})
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	values, err := table.Values(table.Records[0])
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"ID":    uint64(1),
		"Name":  "Hi",
		"Delta": int64(-2),
		"Scale": float32(1.5),
		"Flags": []uint64{3, 4},
	}, values)
}

func TestTable_ValuesBitpackedSigned(t *testing.T) {
	s, err := schema.New("Test", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "Delta", Type: schema.Int32},
		{Name: "Bias", Type: schema.Int8},
	})
	require.NoError(t, err)

	// Delta holds 0b101 in three bits; Bias holds 0b0110 in four bits.
	record := append(wdctest.U32s(9), 0b0110_101)
	data := wdctest.File{
		RecordSize: 5,
		Fields: []codec.FieldStorageInfo{
			wdctest.RawField(0, 32),
			{Kind: codec.BitpackedSigned, OffsetBits: 32, SizeBits: 3},
			{Kind: codec.BitpackedSigned, OffsetBits: 35, SizeBits: 4},
		},
		Sections: []wdctest.Section{{RecordCount: 1, Records: record}},
	}.Build()

	table, err := Decode(data, s, Options{})
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	values, err := table.Values(table.Records[0])
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"ID":    uint64(9),
		"Delta": int64(-3),
		"Bias":  int64(6),
	}, values)
}

func TestDecode_SparseIdentifierPrecedence(t *testing.T) {
	// The inline identifier column is read but the offset map identifier
	// list, which has one entry per offset, takes precedence.
	var records []byte
	records = append(records, sparseRecord(10, "Gnome", 5)...)
	records = append(records, sparseRecord(11, "Troll", 7)...)

	data := wdctest.File{
		Sparse: true,
		Fields: sparseFields(),
		Sections: []wdctest.Section{{
			RecordCount:  2,
			Records:      records,
			Offsets:      []wdctest.Offset{{Offset: 0, Size: 12}, {Offset: 12, Size: 12}},
			OffsetMapIDs: []uint32{70, 71},
		}},
	}.Build()

	table, err := Decode(data, sparseSchema(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, []uint32{70, 71}, ids(table.Records))

	t.Run("identifier list wins over both", func(t *testing.T) {
		data := wdctest.File{
			Sparse: true,
			Fields: sparseFields(),
			Sections: []wdctest.Section{{
				RecordCount:  2,
				Records:      records,
				IDs:          []uint32{80, 81},
				Offsets:      []wdctest.Offset{{Offset: 0, Size: 12}, {Offset: 12, Size: 12}},
				OffsetMapIDs: []uint32{70, 71},
			}},
		}.Build()

		table, err := Decode(data, sparseSchema(t), Options{})
		require.NoError(t, err)
		assert.Equal(t, []uint32{80, 81}, ids(table.Records))
	})
}
