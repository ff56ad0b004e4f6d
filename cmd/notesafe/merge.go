package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <file>",
	Short: "Merge another document file into the current document",
	Long: `Merge reads a document file (current or legacy schema), combines it
with the current document and saves the result. Pages are unioned,
bookmarks from either copy are kept, and the newer side's cursor wins.`,
	Example: `  notesafe merge /backups/laptop/document.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	doc, err := app.MergeFromFile(args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(doc)
		return nil
	}

	printSuccess("Merged %s into the current document", args[0])
	fmt.Printf("Pages after merge: %d\n", doc.PageCount())

	return nil
}
