// Package cmd, export command.
// It runs archived notes through the export pipeline:
// read → extract body → normalize → render → write.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gaurav-prasanna/notepipe/core/extract"
	"github.com/gaurav-prasanna/notepipe/core/normalize"
	"github.com/gaurav-prasanna/notepipe/core/output"
	"github.com/gaurav-prasanna/notepipe/core/render"
	"github.com/spf13/cobra"
)

// Flag variables.
var (
	flagPDF       bool
	flagMarkdown  bool
	flagJSON      bool
	flagOutputDir string
)

var exportCmd = &cobra.Command{
	Use:   "export [guid...]",
	Short: "Render archived notes as Markdown, JSON or PDF",
	Long: `Export reads archived notes, converts their body to Markdown and renders
it in the chosen format as <guid>.<ext>. Without arguments every note of the
archive is exported.

Examples:
  notepipe export --markdown
  notepipe export --json --output_dir ./out
  notepipe export --pdf 5c1e9a0b-3f0e-4f1f-9d55-6f6c1e2b8d41`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	// Output format flags (mutually exclusive).
	exportCmd.Flags().BoolVar(&flagPDF, "pdf", false, "Output PDF")
	exportCmd.Flags().BoolVar(&flagMarkdown, "markdown", false, "Output Markdown")
	exportCmd.Flags().BoolVar(&flagJSON, "json", false, "Output structured JSON")

	exportCmd.Flags().StringVar(&flagOutputDir, "output_dir", "", "Output directory (default: current directory)")
}

func runExport(cmd *cobra.Command, args []string) error {
	if err := validateFormatFlags(); err != nil {
		return err
	}
	renderer, err := selectRenderer()
	if err != nil {
		return err
	}

	writer, err := output.New(flagOutputDir)
	if err != nil {
		return fmt.Errorf("initializing output writer: %w", err)
	}

	ctx := cmd.Context()
	reader := archive.NewReader(cfg.ArchiveRoot, slog.Default())

	guids := args
	if len(guids) == 0 {
		notes, err := reader.ListNotes(ctx)
		if err != nil {
			return err
		}
		for _, n := range notes {
			guids = append(guids, n.Folder)
		}
	}
	if len(guids) == 0 {
		fmt.Fprintf(os.Stdout, "No notes found in %s\n", cfg.ArchiveRoot)
		return nil
	}

	extractor := extract.New()
	normalizer := normalize.New()

	var errCount int
	for i, guid := range guids {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "[%d/%d] Exporting %s\n", i+1, len(guids), guid)

		data, err := exportNote(ctx, reader, guid, extractor, normalizer, renderer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Error: %v\n", err)
			errCount++
			continue
		}

		path, err := writer.WriteNote(guid, data, renderer.Extension())
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Write error: %v\n", err)
			errCount++
			continue
		}
		fmt.Fprintf(os.Stdout, "  ✓ Written: %s\n", path)
	}

	if errCount > 0 {
		fmt.Fprintf(os.Stderr, "\n%d/%d notes failed\n", errCount, len(guids))
		if errCount == len(guids) {
			return errors.New("export failed")
		}
	}
	return nil
}

// exportNote runs a single archived note through the export pipeline.
func exportNote(
	ctx context.Context,
	reader *archive.Reader,
	guid string,
	extractor *extract.NoteExtractor,
	normalizer core.Normalizer,
	renderer core.Renderer,
) ([]byte, error) {
	// 1. Read
	meta, err := reader.ReadMetadata(guid)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	path, err := reader.NotePath(guid)
	if err != nil {
		return nil, fmt.Errorf("note: %w", err)
	}
	document, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("note: %w", err)
	}

	// 2. Extract the body fragment
	body, err := extractor.Body(string(document))
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	// 3. Normalize to Markdown
	markdown, err := normalizer.Normalize(body)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	// 4. Render to output format
	summary := archive.Summarize(guid, meta)
	data, err := renderer.Render(markdown, core.ExportMetadata{
		GUID:       summary.GUID,
		Title:      summary.Title,
		Author:     summary.Author,
		CreatedAt:  summary.CreatedAt,
		Tags:       summary.Tags,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return data, nil
}

// validateFormatFlags checks that exactly one output format is chosen.
func validateFormatFlags() error {
	formatCount := 0
	for _, set := range []bool{flagPDF, flagMarkdown, flagJSON} {
		if set {
			formatCount++
		}
	}

	if formatCount == 0 {
		return fmt.Errorf("exactly one output format is required: --pdf, --markdown or --json")
	}
	if formatCount > 1 {
		return fmt.Errorf("only one output format allowed per run (got %d)", formatCount)
	}
	return nil
}

// selectRenderer creates the appropriate Renderer based on flags.
func selectRenderer() (core.Renderer, error) {
	switch {
	case flagMarkdown:
		return render.NewMarkdownRenderer(), nil
	case flagJSON:
		return render.NewJSONRenderer(), nil
	case flagPDF:
		return render.NewPDFRenderer(), nil
	default:
		return nil, fmt.Errorf("no output format selected")
	}
}
