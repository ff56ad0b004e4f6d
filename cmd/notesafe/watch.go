package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/notesafe/notesafe/internal/client"
	"github.com/notesafe/notesafe/internal/persist"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the document for external changes until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Rebuild the client with a change handler attached.
	watchApp, err := client.New(cfg, logger, func(event persist.WatchEvent) {
		switch event.Type {
		case persist.WatchEventChanged:
			printWarning("%s  document changed externally",
				time.Now().Format(time.TimeOnly))
		case persist.WatchEventDeleted:
			printError("%s  document deleted externally",
				time.Now().Format(time.TimeOnly))
		}
	})
	if err != nil {
		return err
	}
	defer watchApp.Close()

	// Prime the watermark so pre-existing content does not notify.
	if _, err := watchApp.Load(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		printWarning("\nStopping watcher...")
		cancel()
	}()

	if cfg.Autosave.Enabled {
		// Heartbeat at the editor's autosave cadence so long sessions show
		// the watcher is still alive.
		ticker := time.NewTicker(cfg.Autosave.Interval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					logger.Debug("Watching")
				}
			}
		}()
	}

	fmt.Println("Watching for external changes (Ctrl-C to stop)")
	return watchApp.Watch(ctx)
}
