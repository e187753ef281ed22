package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gaurav-prasanna/notepipe/core/config"
	"github.com/gaurav-prasanna/notepipe/core/enrich"
	"github.com/gaurav-prasanna/notepipe/core/fetch"
	"github.com/gaurav-prasanna/notepipe/core/metrics"
	"github.com/gaurav-prasanna/notepipe/core/pipeline"
	"github.com/gaurav-prasanna/notepipe/core/source"
	"github.com/spf13/cobra"
)

var (
	flagSource   string
	flagNotebook string
	flagEnrich   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Normalize the notes of an export into the archive",
	Long: `Import reads every note of the source, materializes its images and
attachments, rewrites the note markup into clean HTML and writes the note
folder. Re-running an import overwrites the same files.

The source is an .enex file, a directory of .enex files or an http(s) URL
of an export.

Examples:
  notepipe import --source export.enex
  notepipe import --source exports/ --notebook Travel --enrich local
  notepipe import --source https://example.com/notes.enex`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

var notebooksCmd = &cobra.Command{
	Use:   "notebooks",
	Short: "List the notebooks of a source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("source") {
			cfg.Import.Source = flagSource
		}
		src, cleanup, err := openSource(cmd.Context(), cfg.Import.Source)
		if err != nil {
			return err
		}
		defer cleanup()

		notebooks, err := src.ListNotebooks(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing notebooks: %w", err)
		}
		for _, nb := range notebooks {
			refs, err := src.ListNotes(cmd.Context(), nb.GUID)
			if err != nil {
				return fmt.Errorf("listing notes of %s: %w", nb.Name, err)
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\t%d notes\n", nb.GUID, nb.Name, len(refs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(notebooksCmd)

	for _, c := range []*cobra.Command{importCmd, notebooksCmd} {
		c.Flags().StringVar(&flagSource, "source", "", "ENEX file, directory or URL")
	}
	importCmd.Flags().StringVar(&flagNotebook, "notebook", "", "Import only this notebook (name or identifier)")
	importCmd.Flags().StringVar(&flagEnrich, "enrich", "", "Enrichment backend: none, local or ollama")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cmd.Flags().Changed("source") {
		cfg.Import.Source = flagSource
	}
	if cmd.Flags().Changed("notebook") {
		cfg.Import.Notebook = flagNotebook
	}
	if cmd.Flags().Changed("enrich") {
		cfg.Enrich.Backend = flagEnrich
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	src, cleanup, err := openSource(ctx, cfg.Import.Source)
	if err != nil {
		return err
	}
	defer cleanup()

	writer, err := archive.NewWriter(cfg.ArchiveRoot)
	if err != nil {
		return fmt.Errorf("initializing archive: %w", err)
	}

	m := metrics.New()
	importer := pipeline.New(pipeline.Options{
		Source:   src,
		Writer:   writer,
		Notebook: cfg.Import.Notebook,
		Enricher: selectEnricher(cfg.Enrich),
		Metrics:  m,
		Retry:    []source.RetryOption{source.WithMaxAttempts(cfg.Import.MaxAttempts)},
		Logger:   slog.Default(),
	})

	stats, err := importer.Run(ctx)
	logImportTotals(m)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "✓ Imported %d notes into %s (%d resources", stats.Notes, writer.Root, stats.Resources)
	if stats.Unresolved > 0 {
		fmt.Fprintf(os.Stdout, ", %d unresolved references dropped", stats.Unresolved)
	}
	fmt.Fprintln(os.Stdout, ")")
	if stats.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "✗ %d notes skipped after repeated rate limiting\n", stats.Skipped)
	}
	return nil
}

// logImportTotals logs the import counters, including for a failed run.
func logImportTotals(m *metrics.Metrics) {
	totals, err := m.ImportTotals()
	if err != nil {
		slog.Warn("gathering import metrics", "error", err)
		return
	}
	slog.Info("import metrics", "totals", totals)
}

// openSource opens a local export or downloads a remote one. cleanup
// removes any downloaded file.
func openSource(ctx context.Context, location string) (core.NoteSource, func(), error) {
	cleanup := func() {}
	if location == "" {
		return nil, cleanup, fmt.Errorf("--source is required")
	}

	path := location
	if fetch.IsRemote(location) {
		slog.Info("downloading export", "url", location)
		downloaded, err := fetch.New().Fetch(ctx, location, "")
		if err != nil {
			return nil, cleanup, fmt.Errorf("downloading export: %w", err)
		}
		path = downloaded
		cleanup = func() { os.Remove(downloaded) }
	}

	src, err := source.OpenENEX(ctx, path, slog.Default())
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return src, cleanup, nil
}

// selectEnricher creates the Enricher for the configured backend.
func selectEnricher(c config.EnrichConfig) core.Enricher {
	switch c.Backend {
	case config.EnrichLocal:
		return enrich.NewLocal(c.SummaryWords, c.Keywords)
	case config.EnrichOllama:
		return enrich.NewOllama(c.OllamaURL, c.Model, c.SummaryWords, c.Keywords, c.Timeout)
	default:
		return nil
	}
}
