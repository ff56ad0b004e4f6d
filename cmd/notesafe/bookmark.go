package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Manage page bookmarks",
}

var bookmarkToggleCmd = &cobra.Command{
	Use:     "toggle <page-index>",
	Short:   "Toggle the bookmark on a page",
	Example: `  notesafe bookmark toggle 3`,
	Args:    cobra.ExactArgs(1),
	RunE:    runBookmarkToggle,
}

var bookmarkSetCmd = &cobra.Command{
	Use:     "set <page-index>...",
	Short:   "Set or clear bookmarks on multiple pages",
	Example: `  notesafe bookmark set 0 2 5 --value=false`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runBookmarkSet,
}

var bookmarkValue bool

func init() {
	rootCmd.AddCommand(bookmarkCmd)
	bookmarkCmd.AddCommand(bookmarkToggleCmd)
	bookmarkCmd.AddCommand(bookmarkSetCmd)

	bookmarkSetCmd.Flags().BoolVar(&bookmarkValue, "value", true,
		"Bookmark value to apply")
}

func runBookmarkToggle(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid page index: %s", args[0])
	}

	doc, err := app.ToggleBookmark(index, nil)
	if err != nil {
		return err
	}
	if doc == nil {
		printWarning("No document found")
		return nil
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"bookmarks": doc.Bookmarks})
		return nil
	}

	if index >= 0 && index < len(doc.Bookmarks) {
		printSuccess("Page %d bookmark: %v", index, doc.Bookmarks[index])
	} else {
		printWarning("Page index %d out of range, nothing changed", index)
	}

	return nil
}

func runBookmarkSet(cmd *cobra.Command, args []string) error {
	indices := make([]int, 0, len(args))
	for _, arg := range args {
		idx, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid page index: %s", arg)
		}
		indices = append(indices, idx)
	}

	doc, err := app.SetBookmarks(indices, bookmarkValue)
	if err != nil {
		return err
	}
	if doc == nil {
		printWarning("No document found")
		return nil
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"bookmarks": doc.Bookmarks})
		return nil
	}

	printSuccess("Bookmarks updated")
	return nil
}
