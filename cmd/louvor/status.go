package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"louvor/internal/mirror"
	"louvor/internal/remote"
	"louvor/internal/schema"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show remote and mirror state",
	Long: `Fetch the shared document and summarize it alongside the local mirror.

Shows the roster size, song counts, scale image count and the most recent
audit entries for both the published and draft snapshots.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client := remote.New(cfg.Endpoint, cfg.APIKey, newLogger(cfg, "remote"))
		doc, err := client.Fetch(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching remote document: %v\n", err)
			fmt.Fprintf(os.Stderr, "Falling back to the local mirror\n")
			doc = loadMirrorOrExit(cfg.MirrorPath)
			if doc == nil {
				fmt.Fprintf(os.Stderr, "Error: mirror is empty, nothing to show\n")
				os.Exit(1)
			}
			fmt.Println("\nSource: local mirror (remote unreachable)")
		} else {
			fmt.Println("\nSource: remote bin")
		}

		printSnapshot("Published", &doc.Published)
		printSnapshot("Draft", &doc.Draft)

		fmt.Printf("\nRecent activity (%d entries):\n", len(doc.Logs))
		for i, entry := range doc.Logs {
			if i >= 5 {
				fmt.Printf("  ... and %d more\n", len(doc.Logs)-i)
				break
			}
			fmt.Printf("  %s  %s: %s\n", entry.Timestamp, entry.User, entry.Action)
		}
		fmt.Println()
	},
}

func printSnapshot(label string, snap *schema.Snapshot) {
	songs := 0
	for _, m := range snap.Ministers {
		songs += len(m.Songs)
	}
	fmt.Printf("\n%s:\n", label)
	fmt.Printf("  Ministers: %d\n", len(snap.Ministers))
	fmt.Printf("  Songs: %d\n", songs)
	fmt.Printf("  Scale images: %d\n", len(snap.ScaleImages))
	if snap.RehearsalInfo != "" {
		fmt.Printf("  Rehearsal notice: %.60s\n", snap.RehearsalInfo)
	}
}

func loadMirrorOrExit(path string) *schema.Document {
	store, err := mirror.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening mirror: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	doc, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading mirror: %v\n", err)
		os.Exit(1)
	}
	return doc
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
