package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gaurav-prasanna/notepipe/core/feed"
	"github.com/spf13/cobra"
)

var (
	flagFeedMax    int
	flagFeedOutput string
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Write the RSS feed of the newest notes",
	Long: `Feed builds an RSS 2.0 document from the most recently modified note
folders and prints it, or writes it to --output.

Examples:
  notepipe feed --max 20
  notepipe feed --output public/rss.xml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("max") {
			cfg.Site.FeedItems = flagFeedMax
		}

		rss, err := newFeedBuilder().RSS(cmd.Context(), cfg.Site.FeedItems)
		if err != nil {
			return err
		}

		if flagFeedOutput == "" {
			_, err := fmt.Fprint(os.Stdout, rss)
			return err
		}
		if err := os.MkdirAll(filepath.Dir(flagFeedOutput), 0755); err != nil {
			return fmt.Errorf("creating feed directory: %w", err)
		}
		if err := archive.WriteFileAtomic(flagFeedOutput, []byte(rss), 0644); err != nil {
			return fmt.Errorf("writing feed: %w", err)
		}
		fmt.Fprintf(os.Stdout, "✓ Written: %s\n", flagFeedOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.Flags().IntVar(&flagFeedMax, "max", feed.DefaultItems, "Maximum number of entries")
	feedCmd.Flags().StringVar(&flagFeedOutput, "output", "", "Write the feed to this file instead of stdout")
}

func newFeedBuilder() *feed.Builder {
	return feed.New(cfg.ArchiveRoot, feed.Channel{
		Title:       cfg.Site.Title,
		Link:        cfg.Site.URL,
		Description: cfg.Site.Description,
		Location:    cfg.Location(),
	}, slog.Default())
}
