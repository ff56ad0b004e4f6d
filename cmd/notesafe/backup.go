package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage document backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the current document file",
	Args:  cobra.NoArgs,
	RunE:  runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

var backupRestoreCmd = &cobra.Command{
	Use:     "restore <backup-path>",
	Short:   "Restore the document from a backup",
	Example: `  notesafe backup restore backups/backup-2026-08-29T10-00-00-000Z.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runBackupRestore,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	path, err := app.CreateBackup()
	if err != nil {
		return err
	}
	if path == "" {
		printWarning("Nothing to back up (backups disabled or no document yet)")
		return nil
	}

	if jsonOutput {
		printJSON(map[string]string{"backup": path})
		return nil
	}

	printSuccess("Backup created: %s", path)
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	records, err := app.ListBackups()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(records)
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No backups")
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  %s\n", r.CreatedAt.Local().Format(time.RFC3339), r.Path)
	}

	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	doc, err := app.RestoreFromBackup(args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(doc)
		return nil
	}

	printSuccess("Restored document with %d pages", doc.PageCount())
	return nil
}
