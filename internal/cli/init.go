package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/khal/internal/config"
	"github.com/example/khal/internal/wire"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write .khal/config.yaml and create the backend file",
	Long: `Initialize KHAL in the current directory.

Writes .khal/config.yaml pointing at the chosen backend file, then creates
the file with every required table or sheet.

Examples:
  khal init
  khal init --store plans/KHAL.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("config-dir")
		if dir == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			dir = cwd
		}
		store, _ := cmd.Flags().GetString("store")
		backend, _ := cmd.Flags().GetString("backend")
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(config.Path(dir)); err == nil && !force {
			return fmt.Errorf("%s already exists\nHint: Use --force to overwrite it", config.Path(dir))
		}

		cfg := config.Default()
		if store != "" {
			cfg.Store.Path = store
		}
		cfg.Store.Backend = backend
		if _, err := cfg.Locator(); err != nil {
			return err
		}
		if err := config.SaveConfig(dir, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", config.Path(dir))

		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.Normalize(commandContext(cmd))
	},
}

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	return initCmd
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing config")
}
