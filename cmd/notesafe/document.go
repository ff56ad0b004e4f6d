package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show document summary",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "List pages with bookmark markers",
	Args:  cobra.NoArgs,
	RunE:  runPages,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(pagesCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	doc, err := app.Load()
	if err != nil {
		return err
	}
	if doc == nil {
		printWarning("No document found")
		return nil
	}

	if jsonOutput {
		printJSON(doc)
		return nil
	}

	bookmarked := 0
	for _, b := range doc.Bookmarks {
		if b {
			bookmarked++
		}
	}

	fmt.Printf("Schema version: %d\n", doc.SchemaVersion)
	fmt.Printf("Pages:          %d (%d bookmarked)\n", doc.PageCount(), bookmarked)
	fmt.Printf("Current page:   %d\n", doc.CurrentPageIndex)
	fmt.Printf("UI state:       %s\n", doc.UIState)
	fmt.Printf("Sync status:    %s\n", doc.Metadata.SyncStatus)
	fmt.Printf("Last modified:  %s\n", doc.LastModified.Local().Format(time.RFC1123))
	fmt.Printf("Device:         %s\n", doc.DeviceID)

	return nil
}

func runPages(cmd *cobra.Command, args []string) error {
	doc, err := app.Load()
	if err != nil {
		return err
	}
	if doc == nil {
		printWarning("No document found")
		return nil
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"pages":     doc.Pages,
			"bookmarks": doc.Bookmarks,
		})
		return nil
	}

	for i, page := range doc.Pages {
		marker := " "
		if i < len(doc.Bookmarks) && doc.Bookmarks[i] {
			marker = "*"
		}

		fmt.Printf("%s %3d  %s\n", marker, i, previewText(page, 60))
	}

	return nil
}

// previewText truncates s to max runes, ending with an ellipsis.
// Truncating on runes keeps multi-byte characters intact.
func previewText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
