package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/primary"
	"github.com/example/khal/internal/wire"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks (units of work under an affair, interest or plan)",
}

var taskSetCmd = &cobra.Command{
	Use:   "set [task-id]",
	Short: "Create or update a task",
	Long: `Create a task, or update the one named by task-id.

A task can only be marked done once every task in --deps is done.
Passing --deps "" clears the dependency list.

Examples:
  khal task set --title "Call landlord" --source affair --source-id AFF-1
  khal task set TSK-3 --deps TSK-1,TSK-2
  khal task set TSK-3 --status done`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seen, err := lastSeen(cmd)
		if err != nil {
			return err
		}
		req := primary.WriteTaskRequest{
			SourceID:           optString(cmd, "source-id"),
			ParentTaskID:       optString(cmd, "parent"),
			DependencyIDs:      optList(cmd, "deps"),
			Title:              optString(cmd, "title"),
			Notes:              optString(cmd, "notes"),
			DueDate:            optString(cmd, "due"),
			Status:             optStatus(cmd),
			EffortEstimate:     optFloat(cmd, "effort"),
			LastSeenModifiedAt: seen,
		}
		if v := optString(cmd, "source"); v != nil {
			st := models.SourceType(enumValue(*v))
			req.SourceType = &st
		}
		if v := optString(cmd, "horizon"); v != nil {
			h := models.Horizon(enumValue(*v))
			req.Horizon = &h
		}
		if len(args) == 1 {
			req.ID = args[0]
		}

		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.WriteTask(commandContext(cmd), req)
	},
}

// TaskCmd returns the task command
func TaskCmd() *cobra.Command {
	return taskCmd
}

func init() {
	taskSetCmd.Flags().String("source", "", "Owner type (affair, interest, plan, preparation)")
	taskSetCmd.Flags().String("source-id", "", "Owner id")
	taskSetCmd.Flags().String("parent", "", "Parent task id")
	taskSetCmd.Flags().StringSlice("deps", nil, "Comma-separated ids of tasks that must be done first")
	taskSetCmd.Flags().StringP("title", "t", "", "Title")
	taskSetCmd.Flags().String("notes", "", "Notes")
	taskSetCmd.Flags().String("horizon", "", "Horizon (week, month, quarter, year)")
	taskSetCmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	taskSetCmd.Flags().StringP("status", "s", "", "Status (not_started, in_progress, waiting, parked, done)")
	taskSetCmd.Flags().Float64("effort", 0, "Effort estimate in hours")
	addLastSeenFlag(taskSetCmd)

	taskCmd.AddCommand(taskSetCmd)
}
