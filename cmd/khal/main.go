package main

import (
	"github.com/spf13/cobra"

	"github.com/example/khal/internal/cli"
	"github.com/example/khal/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "khal",
		Short:   "KHAL - affairs, interests, tasks and crafts in SQLite or Excel",
		Version: version.String(),
		Long: `KHAL keeps affairs, interests, tasks, crafts and laws in a SQLite file or
an Excel workbook. Every write checks the file's modification time so
edits made elsewhere are never silently overwritten.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cli.ConfigureRoot(rootCmd)

	// Backend lifecycle
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.StateCmd())
	rootCmd.AddCommand(cli.ValidateCmd())
	rootCmd.AddCommand(cli.NormalizeCmd())
	rootCmd.AddCommand(cli.ConflictCmd())
	rootCmd.AddCommand(cli.WatchCmd())
	rootCmd.AddCommand(cli.LogCmd())

	// Entity commands
	rootCmd.AddCommand(cli.AffairCmd())
	rootCmd.AddCommand(cli.InterestCmd())
	rootCmd.AddCommand(cli.TaskCmd())
	rootCmd.AddCommand(cli.CraftCmd())
	rootCmd.AddCommand(cli.LawCmd())

	// Data transfer
	rootCmd.AddCommand(cli.ImportCmd())
	rootCmd.AddCommand(cli.ExportCmd())

	if err := rootCmd.Execute(); err != nil {
		cli.Fatal(err)
	}
}
