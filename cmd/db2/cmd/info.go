package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssargent/db2kit/pkg/di"
	"github.com/ssargent/db2kit/pkg/store"
	"github.com/ssargent/db2kit/pkg/wdc"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show the header, sections and columns of a table file",
	Long: `Validate a table file against its schema and print its structure
without decoding any record.

Examples:
  db2 info ChrRaces.db2
  db2 info spells.db2 --schema SpellName`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaFlag, _ := cmd.Flags().GetString("schema")
		return runInfo(cmd.OutOrStdout(), container, args[0], schemaFlag)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringP("schema", "s", "", "Schema name or file (default: derived from the file name)")
}

func runInfo(w io.Writer, c *di.Container, path, schemaFlag string) error {
	if c == nil {
		return errNoContainer
	}
	s, err := resolveSchema(c, path, schemaFlag)
	if err != nil {
		return err
	}
	data, err := store.ReadTable(path)
	if err != nil {
		return err
	}
	f, err := wdc.Parse(data, s)
	if err != nil {
		return err
	}
	printInfo(w, s.Name(), store.Checksum(data), f)
	return nil
}

func printInfo(out io.Writer, name, checksum string, f *wdc.File) {
	h := f.Header
	fmt.Fprintf(out, "Table:        %s\n", name)
	fmt.Fprintf(out, "BLAKE3:       %s\n", checksum)
	fmt.Fprintf(out, "Signature:    %s\n", h.Signature)
	fmt.Fprintf(out, "Records:      %d\n", h.RecordCount)
	fmt.Fprintf(out, "Fields:       %d (%d total)\n", h.FieldCount, h.TotalFieldCount)
	fmt.Fprintf(out, "Record size:  %d\n", h.RecordSize)
	fmt.Fprintf(out, "Table hash:   0x%08X\n", h.TableHash)
	fmt.Fprintf(out, "Layout hash:  0x%08X\n", h.LayoutHash)
	fmt.Fprintf(out, "ID range:     %d-%d\n", h.MinID, h.MaxID)
	fmt.Fprintf(out, "Flags:        %s\n", flagNames(h.Flags))
	fmt.Fprintf(out, "Region order: %s\n", f.Layout.Order)

	fmt.Fprintln(out, "\nSections:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tKEY\tOFFSET\tRECORDS\tSTRINGS\tIDS\tCOPIES\tRELATIONS\tOFFSET IDS")
	for i, sh := range f.Sections {
		sl := f.Layout.Sections[i]
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			i, keyName(sh.KeyID), sh.FileOffset, sh.RecordCount, sh.StringTableSize,
			sl.IDList.Len()/4, sh.CopyTableCount, sl.Relationships.Len(), sh.OffsetMapIDCount)
	}
	w.Flush()

	fmt.Fprintln(out, "\nColumns:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tOFFSET\tBITS\tCOMPRESSION\tADDITIONAL")
	for i, info := range f.FieldStorage {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%d\n",
			i, info.OffsetBits, info.SizeBits, info.Kind, info.AdditionalDataSize)
	}
	w.Flush()
}

func flagNames(f wdc.Flags) string {
	var names []string
	if f.Sparse() {
		names = append(names, "sparse")
	}
	if f.SecondaryKeys() {
		names = append(names, "secondary-keys")
	}
	if len(names) == 0 {
		return fmt.Sprintf("0x%04X", uint16(f))
	}
	return fmt.Sprintf("0x%04X (%s)", uint16(f), strings.Join(names, ", "))
}

func keyName(id uint64) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprintf("%016X", id)
}
