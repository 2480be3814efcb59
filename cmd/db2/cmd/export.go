package cmd

import (
	"fmt"
	"io"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/ssargent/db2kit/pkg/di"
	"github.com/ssargent/db2kit/pkg/store"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <file>...",
	Short: "Decode table files into the snapshot store",
	Long: `Decode each table file and write its records to the snapshot store,
replacing the table's previous snapshot.

Examples:
  db2 export ChrRaces.db2 ChrClasses.db2
  db2 export spells.db2 --schema SpellName --snapshot-dir ./snapshots`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaFlag, _ := cmd.Flags().GetString("schema")
		return runExport(cmd.OutOrStdout(), container, args, schemaFlag)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("schema", "s", "", "Schema name or file (default: derived from each file name)")
}

func runExport(w io.Writer, c *di.Container, paths []string, schemaFlag string) error {
	if c == nil {
		return errNoContainer
	}
	snapshots, err := c.OpenSnapshots()
	if err != nil {
		return err
	}
	defer snapshots.Close()

	for _, path := range paths {
		m, err := exportFile(c, snapshots, path, schemaFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d records exported to snapshot %s (%d skipped, %d sections omitted)\n",
			m.Table, m.Records, m.Snapshot, m.Skipped, m.Omitted)
	}
	return nil
}

func exportFile(c *di.Container, snapshots *store.SnapshotStore, path, schemaFlag string) (*store.Manifest, error) {
	t, err := decodeFile(c, path, schemaFlag)
	if err != nil {
		return nil, err
	}
	m, err := snapshots.Put(t.Schema().Name(), path, t)
	if err != nil {
		return nil, err
	}
	level.Info(c.Logger()).Log("msg", "exported table", "table", m.Table, "snapshot", m.Snapshot, "records", m.Records)
	return m, nil
}
