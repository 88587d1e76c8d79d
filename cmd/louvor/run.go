package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"louvor/internal/dashboard"
	"louvor/internal/engine"
	"louvor/internal/mirror"
	"louvor/internal/remote"
	"louvor/internal/schema"
	"louvor/internal/watch"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync engine in the foreground",
	Long: `Run the sync engine until interrupted.

The engine loads the mirrored document, polls the remote bin for changes
from other coordinators and pushes debounced local edits back. With
dashboard_port set it also serves a WebSocket feed for local displays,
and with drop_dir set it ingests schedule images dropped into that
folder.

Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store, err := mirror.Open(cfg.MirrorPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening mirror: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		client := remote.New(cfg.Endpoint, cfg.APIKey, newLogger(cfg, "remote"))

		engineCfg := engine.DefaultConfig()
		engineCfg.Actor = cfg.Actor
		engineCfg.PollInterval = cfg.PollInterval
		engineCfg.DebounceInterval = cfg.DebounceInterval
		engineCfg.RetryDelay = cfg.RetryDelay
		engineCfg.MaxAttempts = cfg.MaxAttempts
		engineCfg.Logger = newLogger(cfg, "engine")

		var board *dashboard.Server
		if cfg.DashboardPort > 0 {
			board = dashboard.NewServer(&dashboard.Config{
				Port:   cfg.DashboardPort,
				Logger: newLogger(cfg, "dashboard"),
			})
			engineCfg.Notifier = board
		}

		eng, err := engine.New(client, store, engineCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := eng.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting engine: %v\n", err)
			os.Exit(1)
		}
		defer eng.Stop()

		if board != nil {
			board.SetSnapshot(func() (engine.Status, *schema.Document) {
				return eng.Status(), eng.Document()
			})
			if err := board.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
				os.Exit(1)
			}
			defer board.Stop()
			fmt.Printf("Dashboard: ws://localhost:%d/ws\n", cfg.DashboardPort)
		}

		if cfg.DropDir != "" {
			watcher, err := watch.NewImageWatcher(&watch.Config{
				Dir:           cfg.DropDir,
				MaxImageBytes: cfg.MaxImageBytes,
				Logger:        newLogger(cfg, "watch"),
			}, eng)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating image watcher: %v\n", err)
				os.Exit(1)
			}
			if err := watcher.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting image watcher: %v\n", err)
				os.Exit(1)
			}
			defer watcher.Stop()
			fmt.Printf("Watching %s for schedule images\n", cfg.DropDir)
		}

		fmt.Printf("Syncing %s every %s (mirror: %s)\n", cfg.Endpoint, cfg.PollInterval, store.Path())
		fmt.Println("Press Ctrl+C to stop")

		<-ctx.Done()
		fmt.Println("\nShutting down...")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
