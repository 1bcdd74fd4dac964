package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/primary"
	"github.com/example/khal/internal/wire"
)

var craftCmd = &cobra.Command{
	Use:   "craft",
	Short: "Manage crafts and their five linked levels",
	Long: `A craft holds heaps, models, frameworks, barbell strategies and heuristics.
Each level above heaps references entities of the level directly below it.`,
}

var craftSetCmd = &cobra.Command{
	Use:   "set [craft-id]",
	Short: "Create or update a craft",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seen, err := lastSeen(cmd)
		if err != nil {
			return err
		}
		req := primary.WriteCraftRequest{
			Name:               optString(cmd, "name"),
			Description:        optString(cmd, "description"),
			LastSeenModifiedAt: seen,
		}
		if len(args) == 1 {
			req.ID = args[0]
		}

		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.WriteCraft(commandContext(cmd), req)
	},
}

var craftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List crafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.ListCrafts(commandContext(cmd))
	},
}

var craftShowCmd = &cobra.Command{
	Use:   "show [craft-id]",
	Short: "Show a craft with every level and its links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.ShowCraft(commandContext(cmd), args[0], asJSON)
	},
}

var craftEntityCmd = &cobra.Command{
	Use:   "entity [craft-id] [level] [entity-id]",
	Short: "Create or update one entity of a craft level",
	Long: `Create or update a heap, model, framework, barbell strategy or heuristic.

The reference list is always replaced with --refs, in the order given.
Omitting --refs clears it. Every reference must name an entity of the
level directly below, inside the same craft.

Examples:
  khal craft entity CRF-1 heap --title "Fooled by Randomness" --url https://example.com
  khal craft entity CRF-1 model MOD-2 --refs HEP-1,HEP-4`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := models.ParseCraftLevel(args[1])
		if err != nil {
			return err
		}
		seen, err := lastSeen(cmd)
		if err != nil {
			return err
		}
		req := primary.WriteCraftEntityRequest{
			CraftID:            args[0],
			Level:              level,
			Title:              optString(cmd, "title"),
			Type:               optString(cmd, "type"),
			URL:                optString(cmd, "url"),
			Notes:              optString(cmd, "notes"),
			Description:        optString(cmd, "description"),
			Hedge:              optString(cmd, "hedge"),
			Edge:               optString(cmd, "edge"),
			Content:            optString(cmd, "content"),
			LastSeenModifiedAt: seen,
		}
		if refs := optList(cmd, "refs"); refs != nil {
			req.RefIDs = *refs
		}
		if len(args) == 3 {
			req.ID = args[2]
		}

		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.WriteCraftEntity(commandContext(cmd), req)
	},
}

var craftLinksCmd = &cobra.Command{
	Use:   "links [level] [entity-id] [target-id...]",
	Short: "Replace the references of one entity",
	Long: `Replace the full reference list of a model, framework, barbell strategy or
heuristic. Passing no targets clears it.

Example:
  khal craft links framework FRM-1 MOD-2 MOD-1`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := models.ParseCraftLevel(args[0])
		if err != nil {
			return err
		}
		seen, err := lastSeen(cmd)
		if err != nil {
			return err
		}

		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.ReplaceCraftLinks(commandContext(cmd), primary.ReplaceCraftLinksRequest{
			Level:              level,
			SourceID:           args[1],
			TargetIDs:          args[2:],
			LastSeenModifiedAt: seen,
		})
	},
}

var lawCmd = &cobra.Command{
	Use:   "law",
	Short: "Manage laws (volatility rules that span crafts)",
}

var lawSetCmd = &cobra.Command{
	Use:   "set [law-id]",
	Short: "Create or update a law",
	Long: `Create a law, or update the one named by law-id.

Examples:
  khal law set --name "Lindy" --volatility "time" --crafts CRF-1,CRF-2
  khal law set LAW-1 --crafts ""`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seen, err := lastSeen(cmd)
		if err != nil {
			return err
		}
		req := primary.WriteLawRequest{
			Name:               optString(cmd, "name"),
			Description:        optString(cmd, "description"),
			VolatilitySource:   optString(cmd, "volatility"),
			CraftIDs:           optList(cmd, "crafts"),
			LastSeenModifiedAt: seen,
		}
		if len(args) == 1 {
			req.ID = args[0]
		}

		adapter, err := wire.SyncAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return adapter.WriteLaw(commandContext(cmd), req)
	},
}

// CraftCmd returns the craft command
func CraftCmd() *cobra.Command {
	return craftCmd
}

// LawCmd returns the law command
func LawCmd() *cobra.Command {
	return lawCmd
}

func init() {
	craftSetCmd.Flags().StringP("name", "n", "", "Name")
	craftSetCmd.Flags().StringP("description", "d", "", "Description")
	addLastSeenFlag(craftSetCmd)

	craftShowCmd.Flags().Bool("json", false, "Print the craft as JSON")

	craftEntityCmd.Flags().StringP("title", "t", "", "Title")
	craftEntityCmd.Flags().String("type", "", "Heap type (link, book, note, ...)")
	craftEntityCmd.Flags().String("url", "", "Heap URL")
	craftEntityCmd.Flags().String("notes", "", "Notes")
	craftEntityCmd.Flags().StringP("description", "d", "", "Description")
	craftEntityCmd.Flags().String("hedge", "", "Barbell hedge side")
	craftEntityCmd.Flags().String("edge", "", "Barbell edge side")
	craftEntityCmd.Flags().String("content", "", "Heuristic content")
	craftEntityCmd.Flags().StringSlice("refs", nil, "Comma-separated child entity ids, in order")
	addLastSeenFlag(craftEntityCmd)

	addLastSeenFlag(craftLinksCmd)

	lawSetCmd.Flags().StringP("name", "n", "", "Name")
	lawSetCmd.Flags().StringP("description", "d", "", "Description")
	lawSetCmd.Flags().String("volatility", "", "Source of volatility")
	lawSetCmd.Flags().StringSlice("crafts", nil, "Comma-separated craft ids the law applies to")
	addLastSeenFlag(lawSetCmd)

	craftCmd.AddCommand(craftSetCmd)
	craftCmd.AddCommand(craftListCmd)
	craftCmd.AddCommand(craftShowCmd)
	craftCmd.AddCommand(craftEntityCmd)
	craftCmd.AddCommand(craftLinksCmd)
	lawCmd.AddCommand(lawSetCmd)
}
