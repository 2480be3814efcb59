package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/db2kit/pkg/di"
	"github.com/ssargent/db2kit/pkg/store"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <table> [id]",
	Short: "Get exported records",
	Long: `Get a record from the snapshot store by identifier. Without an
identifier, every record of the table is printed as one JSON object per
line, by ascending identifier.

Examples:
  db2 get ChrRaces 2
  db2 get ChrRaces`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawID := ""
		if len(args) == 2 {
			rawID = args[1]
		}
		return runGet(cmd.OutOrStdout(), container, args[0], rawID)
	},
}

// tablesCmd represents the tables command
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of the snapshot store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTables(cmd.OutOrStdout(), container)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(tablesCmd)
}

// runGet prints the record of table with identifier rawID, or every record
// of table when rawID is empty.
func runGet(w io.Writer, c *di.Container, table, rawID string) error {
	if c == nil {
		return errNoContainer
	}
	var id uint64
	if rawID != "" {
		var err error
		id, err = strconv.ParseUint(rawID, 10, 32)
		if err != nil {
			return errors.Newf("invalid record id %q", rawID)
		}
	}
	snapshots, err := c.OpenSnapshots()
	if err != nil {
		return err
	}
	defer snapshots.Close()

	if rawID == "" {
		return snapshots.Scan(table, func(_ uint32, row store.Row) error {
			line, err := json.Marshal(row)
			if err != nil {
				return errors.Wrap(err, "encode record")
			}
			_, err = fmt.Fprintf(w, "%s\n", line)
			return err
		})
	}

	row, err := snapshots.Get(table, uint32(id))
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(row, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	fmt.Fprintf(w, "%s\n", out)
	return nil
}

func runTables(out io.Writer, c *di.Container) error {
	if c == nil {
		return errNoContainer
	}
	snapshots, err := c.OpenSnapshots()
	if err != nil {
		return err
	}
	defer snapshots.Close()

	manifests, err := snapshots.Manifests()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tRECORDS\tSKIPPED\tSNAPSHOT\tSOURCE")
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", m.Table, m.Records, m.Skipped, m.Snapshot, m.Source)
	}
	return w.Flush()
}
