// Package cmd implements the CLI commands for notepipe using Cobra.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gaurav-prasanna/notepipe/core/config"
	"github.com/spf13/cobra"
)

// Global flag variables.
var (
	flagConfig  string
	flagArchive string
	flagVerbose bool
)

// cfg is loaded before any sub-command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "notepipe",
	Short: "notepipe - turn an Evernote export into a browsable archive",
	Long: `notepipe normalizes the notes of an Evernote export into a folder-per-note
archive (note.html, metadata.json, images/, attachments/) and republishes it
as a web listing, an RSS feed, a static site or Markdown/JSON/PDF exports.

Usage:
  notepipe import --source export.enex
  notepipe serve --listen :5000`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagArchive != "" {
			loaded.ArchiveRoot = flagArchive
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagArchive, "archive", "", "Archive root (default: ./articles)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose logging")
}
