package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"louvor/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "louvor",
	Short: "Worship schedule sync for praise teams",
	Long: `louvor synchronizes a worship team's shared schedule document.

The document holds the minister roster, each minister's song list, the
rehearsal notice and the monthly scale images. It lives in a hosted JSON
bin and is mirrored to a local SQLite file so the schedule stays readable
and editable offline.

Edits land in a draft snapshot first; 'louvor promote' publishes the
draft for the whole team.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default louvor.yaml, then ~/.config/louvor/louvor.yaml)")
}

// loadConfig reads and validates configuration for commands that talk to
// the remote bin.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the shared logger. With log_file set, output goes to a
// size-rotated file; otherwise to stderr.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	var sink io.Writer = os.Stderr
	if cfg.LogFile != "" {
		sink = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	return log.New(sink, fmt.Sprintf("[%s] ", prefix), log.LstdFlags)
}
