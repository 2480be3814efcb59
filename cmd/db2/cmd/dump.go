package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/db2kit/pkg/di"
	"github.com/ssargent/db2kit/pkg/index"
	"github.com/ssargent/db2kit/pkg/wdc"
)

// dumpOptions controls how records are printed
type dumpOptions struct {
	Schema string
	Format string // table or json
	Limit  int
	Where  string // field=value
}

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Decode a table file and print its records",
	Long: `Decode every section of a table file and print one line per record,
copies included.

Examples:
  db2 dump ChrRaces.db2
  db2 dump ChrRaces.db2 --format json --limit 10
  db2 dump ChrRaces.db2 --where Name=Orc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts dumpOptions
		opts.Schema, _ = cmd.Flags().GetString("schema")
		opts.Format, _ = cmd.Flags().GetString("format")
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.Where, _ = cmd.Flags().GetString("where")
		return runDump(cmd.OutOrStdout(), container, args[0], opts)
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringP("schema", "s", "", "Schema name or file (default: derived from the file name)")
	dumpCmd.Flags().StringP("format", "f", "table", "Output format (table, json)")
	dumpCmd.Flags().IntP("limit", "n", 0, "Maximum number of records to print (0 prints all)")
	dumpCmd.Flags().StringP("where", "w", "", "Only print records whose field equals a value (field=value)")
}

const dumpIndexOrder = 64

func runDump(w io.Writer, c *di.Container, path string, opts dumpOptions) error {
	t, err := decodeFile(c, path, opts.Schema)
	if err != nil {
		return err
	}
	records := t.Records
	if opts.Where != "" {
		field, value, ok := strings.Cut(opts.Where, "=")
		if !ok {
			return errors.Newf("where clause %q is not field=value", opts.Where)
		}
		idx, err := index.NewSecondaryIndex(t, field, dumpIndexOrder)
		if err != nil {
			return err
		}
		if records, err = idx.Search(value); err != nil {
			return err
		}
	}
	if opts.Limit > 0 && opts.Limit < len(records) {
		records = records[:opts.Limit]
	}

	switch opts.Format {
	case "", "table":
		return dumpTable(w, t, records)
	case "json":
		return dumpJSON(w, t, records)
	default:
		return errors.Newf("unknown format %q", opts.Format)
	}
}

func dumpTable(out io.Writer, t *wdc.Table, records []*wdc.Record) error {
	fields := t.Schema().Fields()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := []string{"SECTION"}
	for _, f := range fields {
		header = append(header, strings.ToUpper(f.Name))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, rec := range records {
		values, err := t.Values(rec)
		if err != nil {
			return errors.Wrapf(err, "record %d", rec.ID())
		}
		row := []string{fmt.Sprint(rec.Section())}
		for _, f := range fields {
			row = append(row, fmt.Sprint(values[f.Name]))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func dumpJSON(w io.Writer, t *wdc.Table, records []*wdc.Record) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		values, err := t.Values(rec)
		if err != nil {
			return errors.Wrapf(err, "record %d", rec.ID())
		}
		if err := enc.Encode(values); err != nil {
			return errors.Wrap(err, "encode record")
		}
	}
	return nil
}
