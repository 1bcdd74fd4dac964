package cli

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/khal/internal/adapters/filesystem"
	"github.com/example/khal/internal/wire"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Load the backend and show the dashboard",
	Long:  "Load every entity, compute derived metrics and print the do-now ranking",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.State(commandContext(cmd), asJSON)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the backend structure without changing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.Validate(commandContext(cmd))
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Add missing sheets, tables and metadata to the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.Normalize(commandContext(cmd))
	},
}

var conflictCmd = &cobra.Command{
	Use:   "conflict",
	Short: "Report whether the backend changed since --last-seen",
	RunE: func(cmd *cobra.Command, args []string) error {
		seen, err := lastSeen(cmd)
		if err != nil {
			return err
		}
		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.Conflict(commandContext(cmd), seen)
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the most recent writes",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.Log(commandContext(cmd), limit)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print a line whenever the backend file changes",
	Long: `Watch the backend file and print its new modification time after every
settled burst of writes. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		a, err := wire.Current()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		watcher := filesystem.NewWatcher(a.Locator.Path, debounce, func(modTime time.Time) {
			fmt.Fprintf(out, "%s changed (modified %s)\n", a.Locator.Path, modTime.UTC().Format(time.RFC3339Nano))
		}, a.Logger)
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()

		fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", a.Locator.Path)
		<-ctx.Done()
		return nil
	},
}

// StateCmd returns the state command
func StateCmd() *cobra.Command {
	return stateCmd
}

// ValidateCmd returns the validate command
func ValidateCmd() *cobra.Command {
	return validateCmd
}

// NormalizeCmd returns the normalize command
func NormalizeCmd() *cobra.Command {
	return normalizeCmd
}

// ConflictCmd returns the conflict command
func ConflictCmd() *cobra.Command {
	return conflictCmd
}

// LogCmd returns the log command
func LogCmd() *cobra.Command {
	return logCmd
}

// WatchCmd returns the watch command
func WatchCmd() *cobra.Command {
	return watchCmd
}

func init() {
	stateCmd.Flags().Bool("json", false, "Print the full snapshot as JSON")
	addLastSeenFlag(conflictCmd)
	logCmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
	watchCmd.Flags().Duration("debounce", filesystem.DefaultDebounce, "Quiet period before reporting a change")
}
