package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/khal/internal/ports/primary"
	"github.com/example/khal/internal/wire"
)

var affairCmd = &cobra.Command{
	Use:   "affair",
	Short: "Manage affairs (obligations that carry downside)",
}

var affairSetCmd = &cobra.Command{
	Use:   "set [affair-id]",
	Short: "Create or update an affair",
	Long: `Create an affair, or update the one named by affair-id.

Only the flags you pass are written; everything else keeps its stored value.

Examples:
  khal affair set --title "Renew lease" --domain Home --stakes 8 --risk 7
  khal affair set AFF-1 --completion 50 --last-seen 2026-03-01T09:00:00Z`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seen, err := lastSeen(cmd)
		if err != nil {
			return err
		}
		req := primary.WriteAffairRequest{
			DomainID:           optString(cmd, "domain"),
			Title:              optString(cmd, "title"),
			Description:        optString(cmd, "description"),
			Timeline:           optString(cmd, "timeline"),
			Stakes:             optFloat(cmd, "stakes"),
			Risk:               optFloat(cmd, "risk"),
			Status:             optStatus(cmd),
			CompletionPct:      optFloat(cmd, "completion"),
			LastSeenModifiedAt: seen,
		}
		if len(args) == 1 {
			req.ID = args[0]
		}

		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.WriteAffair(commandContext(cmd), req)
	},
}

var interestCmd = &cobra.Command{
	Use:   "interest",
	Short: "Manage interests (optional bets with asymmetric upside)",
}

var interestSetCmd = &cobra.Command{
	Use:   "set [interest-id]",
	Short: "Create or update an interest",
	Long: `Create an interest, or update the one named by interest-id.

Examples:
  khal interest set --title "Learn Go" --domain Craft --stakes 6 --convexity 9
  khal interest set INT-2 --status parked`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seen, err := lastSeen(cmd)
		if err != nil {
			return err
		}
		req := primary.WriteInterestRequest{
			DomainID:           optString(cmd, "domain"),
			Title:              optString(cmd, "title"),
			Description:        optString(cmd, "description"),
			Stakes:             optFloat(cmd, "stakes"),
			Risk:               optFloat(cmd, "risk"),
			Convexity:          optFloat(cmd, "convexity"),
			Asymmetry:          optString(cmd, "asymmetry"),
			Upside:             optString(cmd, "upside"),
			Downside:           optString(cmd, "downside"),
			Status:             optStatus(cmd),
			Notes:              optString(cmd, "notes"),
			LastSeenModifiedAt: seen,
		}
		if len(args) == 1 {
			req.ID = args[0]
		}

		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.WriteInterest(commandContext(cmd), req)
	},
}

// AffairCmd returns the affair command
func AffairCmd() *cobra.Command {
	return affairCmd
}

// InterestCmd returns the interest command
func InterestCmd() *cobra.Command {
	return interestCmd
}

func init() {
	affairSetCmd.Flags().String("domain", "", "Domain name or id (created when unknown)")
	affairSetCmd.Flags().StringP("title", "t", "", "Title")
	affairSetCmd.Flags().StringP("description", "d", "", "Description")
	affairSetCmd.Flags().String("timeline", "", "Free-form timeline")
	affairSetCmd.Flags().Float64("stakes", 0, "Stakes, 0-10")
	affairSetCmd.Flags().Float64("risk", 0, "Risk, 0-10")
	affairSetCmd.Flags().StringP("status", "s", "", "Status (not_started, in_progress, waiting, parked, done)")
	affairSetCmd.Flags().Float64("completion", 0, "Completion percentage, 0-100")
	addLastSeenFlag(affairSetCmd)

	interestSetCmd.Flags().String("domain", "", "Domain name or id (created when unknown)")
	interestSetCmd.Flags().StringP("title", "t", "", "Title")
	interestSetCmd.Flags().StringP("description", "d", "", "Description")
	interestSetCmd.Flags().Float64("stakes", 0, "Stakes, 0-10")
	interestSetCmd.Flags().Float64("risk", 0, "Risk, 0-10")
	interestSetCmd.Flags().Float64("convexity", 0, "Convexity, 0-10")
	interestSetCmd.Flags().String("asymmetry", "", "Why the payoff is asymmetric")
	interestSetCmd.Flags().String("upside", "", "Best case")
	interestSetCmd.Flags().String("downside", "", "Worst case")
	interestSetCmd.Flags().StringP("status", "s", "", "Status (not_started, in_progress, waiting, parked, done)")
	interestSetCmd.Flags().String("notes", "", "Notes")
	addLastSeenFlag(interestSetCmd)

	affairCmd.AddCommand(affairSetCmd)
	interestCmd.AddCommand(interestSetCmd)
}
