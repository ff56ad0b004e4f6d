package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notesafe/notesafe/internal/persist"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Manage sync-tool conflict files",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conflict files next to the document",
	Args:  cobra.NoArgs,
	RunE:  runConflictsList,
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-path>",
	Short: "Resolve one conflict file",
	Long: `Resolve applies one of three strategies:

  keepCurrent  keep the current document; back up and delete the conflict file
  useConflict  adopt the conflict file as the current document
  merge        combine both copies (page union, bookmarks OR'd)`,
	Example: `  notesafe conflicts resolve "document (conflicted copy).json" --strategy merge`,
	Args:    cobra.ExactArgs(1),
	RunE:    runConflictsResolve,
}

var resolveStrategy string

func init() {
	rootCmd.AddCommand(conflictsCmd)
	conflictsCmd.AddCommand(conflictsListCmd)
	conflictsCmd.AddCommand(conflictsResolveCmd)

	conflictsResolveCmd.Flags().StringVarP(&resolveStrategy, "strategy", "s", "merge",
		"Resolution strategy: keepCurrent, useConflict, merge")
}

func runConflictsList(cmd *cobra.Command, args []string) error {
	conflicts, err := app.DetectSyncConflicts()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"conflicts": conflicts})
		return nil
	}

	if len(conflicts) == 0 {
		printSuccess("No sync conflicts")
		return nil
	}

	printWarning("%d conflict file(s):", len(conflicts))
	for _, c := range conflicts {
		fmt.Printf("  %s\n", c)
	}

	return nil
}

func runConflictsResolve(cmd *cobra.Command, args []string) error {
	strategy := persist.ResolveStrategy(resolveStrategy)
	switch strategy {
	case persist.StrategyKeepCurrent, persist.StrategyUseConflict, persist.StrategyMerge:
	default:
		return fmt.Errorf("unknown strategy: %s", resolveStrategy)
	}

	doc, err := app.ResolveSyncConflict(args[0], strategy)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(doc)
		return nil
	}

	printSuccess("Conflict resolved (%s), document now has %d pages",
		resolveStrategy, doc.PageCount())
	return nil
}
