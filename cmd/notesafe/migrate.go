package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate a legacy document to the current schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var (
	migrateForce bool
	migrateReset bool
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateForce, "force", false,
		"Clear the migration flag and re-run the check")
	migrateCmd.Flags().BoolVar(&migrateReset, "reset", false,
		"Only clear the migration flag, for troubleshooting")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateReset {
		if err := app.ResetMigrationState(); err != nil {
			return err
		}
		printSuccess("Migration state reset")
		return nil
	}

	var (
		migrated bool
		err      error
	)
	if migrateForce {
		migrated, err = app.ForceMigration()
	} else {
		migrated, err = app.CheckAndMigrate()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]bool{"migrated": migrated})
		return nil
	}

	if migrated {
		printSuccess("Document migrated to the current schema")
	} else {
		printSuccess("Document already up to date")
	}

	return nil
}
