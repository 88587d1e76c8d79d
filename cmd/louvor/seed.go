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

var seedForce bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Initialize the remote bin with the default roster",
	Long: `Write the built-in starter document to the remote bin and the local
mirror.

Refuses to overwrite a bin that already holds ministers or audit history
unless --force is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client := remote.New(cfg.Endpoint, cfg.APIKey, newLogger(cfg, "remote"))

		if !seedForce {
			existing, err := client.Fetch(ctx)
			if err == nil && (len(existing.Published.Ministers) > 0 || len(existing.Logs) > 0) {
				fmt.Fprintf(os.Stderr, "Error: remote bin already holds data (use --force to overwrite)\n")
				os.Exit(1)
			}
		}

		doc := schema.Seed()
		if err := client.Push(ctx, doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing remote document: %v\n", err)
			os.Exit(1)
		}

		store, err := mirror.Open(cfg.MirrorPath)
		if err == nil {
			if err := store.Save(doc); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to update mirror: %v\n", err)
			}
			store.Close()
		} else {
			fmt.Fprintf(os.Stderr, "Warning: failed to open mirror: %v\n", err)
		}

		fmt.Printf("Seeded %s with %d ministers\n", cfg.Endpoint, len(doc.Published.Ministers))
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "overwrite existing remote data")
	rootCmd.AddCommand(seedCmd)
}
