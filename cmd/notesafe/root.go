package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/notesafe/notesafe/internal/client"
	"github.com/notesafe/notesafe/internal/config"
	"github.com/notesafe/notesafe/internal/events"
)

var (
	cfgFile     string
	storagePath string
	jsonOutput  bool
	verbose     bool

	cfg    *config.Config
	logger *events.Logger
	app    *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "notesafe",
	Short: "Persistence engine for a multi-page markdown note document",
	Long: `Notesafe keeps a multi-page note document safe in a single JSON file:
schema-validated load/save with legacy migration, rotating backups,
optimistic conflict detection against external writers, and resolution
of conflict copies left behind by folder-sync tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			_ = app.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file path (default: ./notesafe.yaml)")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage", "",
		"Storage directory override (custom absolute path mode)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
}

func initApp() error {
	var err error

	cfg, err = config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}

	if storagePath != "" {
		cfg.Storage.Mode = config.StorageModeCustom
		cfg.Storage.CustomPath = storagePath
	}

	if verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return err
	}
	events.SetDefault(logger)

	app, err = client.New(cfg, logger, nil)
	return err
}

// Output helpers

func printSuccess(format string, args ...interface{}) {
	color.Green(format, args...)
}

func printWarning(format string, args ...interface{}) {
	color.Yellow(format, args...)
}

func printError(format string, args ...interface{}) {
	color.Red(format, args...)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("marshal output: %v", err)
		return
	}
	fmt.Println(string(data))
}
