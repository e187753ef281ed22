package cmd

import (
	"log/slog"
	"os"

	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gaurav-prasanna/notepipe/core/metrics"
	"github.com/gaurav-prasanna/notepipe/core/server"
	"github.com/spf13/cobra"
)

var (
	flagListen    string
	flagWatch     bool
	flagAccessLog bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the archive over HTTP",
	Long: `Serve exposes the archive: an HTML listing on /, a JSON listing on
/api/notes, note folders under /note/<guid>/, the RSS feed on /rss and
Prometheus metrics on /metrics.

Examples:
  notepipe serve
  notepipe serve --listen :8080 --watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("listen") {
			cfg.Listen = flagListen
		}

		opts := server.Options{
			Reader:    archive.NewReader(cfg.ArchiveRoot, slog.Default()),
			Feed:      newFeedBuilder(),
			FeedItems: cfg.Site.FeedItems,
			Title:     cfg.Site.Title,
			Metrics:   metrics.New(),
			Logger:    slog.Default(),
		}
		if flagAccessLog {
			opts.AccessLog = os.Stderr
		}
		srv := server.New(opts)

		if flagWatch {
			if err := srv.Catalog().Watch(cmd.Context()); err != nil {
				return err
			}
		}
		return srv.Listen(cmd.Context(), cfg.Listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagListen, "listen", ":5000", "Address to listen on")
	serveCmd.Flags().BoolVar(&flagWatch, "watch", false, "Refresh the listing when the archive changes")
	serveCmd.Flags().BoolVar(&flagAccessLog, "access_log", false, "Log every request to stderr")
}
