package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gaurav-prasanna/notepipe/core/site"
	"github.com/spf13/cobra"
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Build the static site from the archive",
	Long: `Site writes one content file per note into the content root and renders
the output tree: index pages, article pages, feeds/all.rss.xml, sitemap.xml
and a copy of the archive under articles/.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		builder := site.New(site.Options{
			ArchiveRoot: cfg.ArchiveRoot,
			ContentRoot: cfg.ContentRoot,
			OutputRoot:  cfg.OutputRoot,
			SiteURL:     cfg.Site.URL,
			Title:       cfg.Site.Title,
			Description: cfg.Site.Description,
			Author:      cfg.Site.Author,
			Category:    cfg.Site.Category,
			Pagination:  cfg.Site.Pagination,
			Location:    cfg.Location(),
			Logger:      slog.Default(),
		})

		stats, err := builder.Build(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "✓ Built %d articles on %d pages into %s\n", stats.Articles, stats.Pages, cfg.OutputRoot)
		if stats.Skipped > 0 {
			fmt.Fprintf(os.Stderr, "✗ %d notes skipped\n", stats.Skipped)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(siteCmd)
}
