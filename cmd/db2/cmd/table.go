package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/go-kit/log/level"

	"github.com/ssargent/db2kit/pkg/di"
	"github.com/ssargent/db2kit/pkg/schema"
	"github.com/ssargent/db2kit/pkg/store"
	"github.com/ssargent/db2kit/pkg/wdc"
)

// resolveSchema returns the schema named by flag, or the one matching the
// file name when flag is empty.
func resolveSchema(c *di.Container, path, flag string) (*schema.Schema, error) {
	if flag == "" {
		flag = store.TableName(path)
	}
	return c.Schema(flag)
}

// decodeFile reads and decodes the table at path.
func decodeFile(c *di.Container, path, schemaFlag string) (*wdc.Table, error) {
	if c == nil {
		return nil, errNoContainer
	}
	s, err := resolveSchema(c, path, schemaFlag)
	if err != nil {
		return nil, err
	}
	data, err := store.ReadTable(path)
	if err != nil {
		return nil, err
	}
	t, err := wdc.Decode(data, s, c.DecodeOptions())
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	level.Debug(c.Logger()).Log("msg", "decoded table", "file", path, "table", s.Name(),
		"records", t.Stats.Records, "skipped", t.Stats.RecordsSkipped, "omitted", t.Stats.SectionsOmitted)
	return t, nil
}
