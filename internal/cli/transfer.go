package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/khal/internal/export"
	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/wire"
)

var importCmd = &cobra.Command{
	Use:   "import [source]",
	Short: "Copy every entity of another backend file into the configured one",
	Long: `Copy domains, affairs, interests, tasks, crafts, laws and the narrative
from source into the configured backend. Entities with the same id are
overwritten.

Example:
  khal import plans/KHAL.xlsx --store data/KHAL.sqlite`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.Import(commandContext(cmd), args[0])
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [csv|json] [destination]",
	Short: "Dump every SQLite table to CSV files or one JSON document",
	Long: `Read the SQLite backend without modifying it and write its tables out.

csv writes one <table>.csv per table into the destination directory.
json writes a single document keyed by table name.

Examples:
  khal export csv out/
  khal export json out/khal.json`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"csv", "json"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := wire.Current()
		if err != nil {
			return err
		}
		if a.Locator.Backend != models.BackendSQLite {
			return fmt.Errorf("export reads SQLite only; %s is a %s backend\nHint: Run 'khal import %s --store <file>.sqlite' first",
				a.Locator.Path, a.Locator.Backend, a.Locator.Path)
		}

		tables, err := export.ReadTables(ctx, a.Locator.Path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch args[0] {
		case "csv":
			files, err := export.WriteCSV(ctx, a.FS, tables, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Exported %d table(s) to %s\n", len(files), args[1])
			for _, f := range files {
				fmt.Fprintf(out, "  %s\n", f)
			}
		case "json":
			if err := export.WriteJSON(ctx, a.FS, tables, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Exported %d table(s) to %s\n", len(tables), args[1])
		default:
			return fmt.Errorf("unknown export format %q (expected csv or json)", args[0])
		}
		return nil
	},
}

// ImportCmd returns the import command
func ImportCmd() *cobra.Command {
	return importCmd
}

// ExportCmd returns the export command
func ExportCmd() *cobra.Command {
	return exportCmd
}
