package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssargent/db2kit/pkg/codec"
	"github.com/ssargent/db2kit/pkg/schema"
	"github.com/ssargent/db2kit/pkg/wdc"
	"github.com/ssargent/db2kit/pkg/wdc/wdctest"
)

func racesSchema() *schema.Schema {
	return schema.MustNew("ChrRaces", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "Name", Type: schema.String},
		{Name: "Level", Type: schema.Uint32},
	})
}

// racesFile holds Human (1) and Orc (2), with 3 copied from 1.
func racesFile() []byte {
	return wdctest.File{
		RecordSize: 12,
		Fields: []codec.FieldStorageInfo{
			wdctest.RawField(0, 32), wdctest.RawField(4, 32), wdctest.RawField(8, 32),
		},
		Sections: []wdctest.Section{{
			RecordCount: 2,
			Records: wdctest.U32s(
				1, wdctest.StringRef(24, 4, 0), 10,
				2, wdctest.StringRef(24, 16, 6), 20,
			),
			Strings: []byte("Human\x00Orc\x00"),
			Copies:  []wdctest.Copy{{NewID: 3, CopiedID: 1}},
		}},
	}.Build()
}

func racesTable(t *testing.T) *wdc.Table {
	t.Helper()
	table, err := wdc.Decode(racesFile(), racesSchema(), wdc.Options{})
	require.NoError(t, err)
	return table
}

// zeroTable holds identifiers 0, 1 and 2.
func zeroTable(t *testing.T) *wdc.Table {
	t.Helper()
	s := schema.MustNew("Zero", []schema.Field{{Name: "ID", Type: schema.Uint32, ID: true}})
	data := wdctest.File{
		RecordSize: 4,
		Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32)},
		Sections:   []wdctest.Section{{RecordCount: 3, Records: wdctest.U32s(0, 1, 2)}},
	}.Build()
	table, err := wdc.Decode(data, s, wdc.Options{})
	require.NoError(t, err)
	return table
}
