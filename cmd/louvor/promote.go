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

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Publish the current draft",
	Long: `Deep-copy the draft snapshot over the published snapshot and write
the result back to the remote bin and the local mirror.

The whole team sees the published snapshot; promote is how a finished
draft schedule goes live.`,
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
			os.Exit(1)
		}

		promoted, err := schema.Promote(doc, cfg.Actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error promoting draft: %v\n", err)
			os.Exit(1)
		}

		if err := client.Push(ctx, promoted); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing remote document: %v\n", err)
			os.Exit(1)
		}

		// Mirror failures don't undo the publish; the next poll repairs it.
		store, err := mirror.Open(cfg.MirrorPath)
		if err == nil {
			if err := store.Save(promoted); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to update mirror: %v\n", err)
			}
			store.Close()
		} else {
			fmt.Fprintf(os.Stderr, "Warning: failed to open mirror: %v\n", err)
		}

		fmt.Printf("Draft published (%d ministers, %d scale images)\n",
			len(promoted.Published.Ministers), len(promoted.Published.ScaleImages))
	},
}

func init() {
	rootCmd.AddCommand(promoteCmd)
}
