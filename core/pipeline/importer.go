// Package pipeline drives the import: every note of the source is fetched,
// normalized and written into its archive folder, one note at a time.
//
//	source → rewrite (materialize resources) → assemble → archive
//	       → optional enrich → metadata.json
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gaurav-prasanna/notepipe/core/assemble"
	"github.com/gaurav-prasanna/notepipe/core/extract"
	"github.com/gaurav-prasanna/notepipe/core/materialize"
	"github.com/gaurav-prasanna/notepipe/core/metrics"
	"github.com/gaurav-prasanna/notepipe/core/rewrite"
	"github.com/gaurav-prasanna/notepipe/core/source"
)

// Values written to metadata.json when the source has nothing better.
const (
	UnknownDate = "Unknown"
	UnknownTag  = "Unknown"
)

// Options configures an Importer.
type Options struct {
	Source core.NoteSource
	Writer *archive.Writer

	// Notebook restricts the import to the notebook with this name or
	// identifier. Empty imports every notebook.
	Notebook string

	Enricher core.Enricher // optional
	Metrics  *metrics.Metrics
	Retry    []source.RetryOption
	Logger   *slog.Logger
}

// Stats reports what an import run did.
type Stats struct {
	Notes      int
	Skipped    int
	Resources  int
	Unresolved int
}

// Importer normalizes notes from a source into the archive.
type Importer struct {
	source    core.NoteSource
	writer    *archive.Writer
	notebook  string
	enricher  core.Enricher
	metrics   *metrics.Metrics
	rewriter  *rewrite.Rewriter
	extractor *extract.NoteExtractor
	logger    *slog.Logger

	tags map[string]string // tag guid -> name, loaded on first use
}

// New creates an Importer. The source is wrapped with the rate-limit retry
// policy; opts.Retry tunes it.
func New(opts Options) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := append([]source.RetryOption{source.WithLogger(logger)}, opts.Retry...)

	return &Importer{
		source:    source.WithRetry(opts.Source, retry...),
		writer:    opts.Writer,
		notebook:  strings.TrimSpace(opts.Notebook),
		enricher:  opts.Enricher,
		metrics:   opts.Metrics,
		rewriter:  rewrite.New(logger),
		extractor: extract.New(),
		logger:    logger,
	}
}

// Run imports every note of the selected notebooks. A note whose fetch
// stays rate-limited after the retry ceiling is skipped and counted; any
// other source error stops the run.
func (im *Importer) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	notebooks, err := im.notebooks(ctx)
	if err != nil {
		return stats, err
	}

	seen := make(map[string]bool)
	for _, nb := range notebooks {
		refs, err := im.source.ListNotes(ctx, nb.GUID)
		if err != nil {
			return stats, fmt.Errorf("listing notes of %s: %w", nb.Name, err)
		}
		im.logger.Info("importing notebook", "notebook", nb.Name, "notes", len(refs))

		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if seen[ref.GUID] {
				continue
			}
			seen[ref.GUID] = true

			result, err := im.ImportNote(ctx, ref.GUID)
			if errors.Is(err, core.ErrRateLimited) {
				im.logger.Warn("skipping rate-limited note", "guid", ref.GUID, "title", ref.Title)
				stats.Skipped++
				im.countNote("skipped")
				if im.metrics != nil {
					im.metrics.RateLimitedNotes.Inc()
				}
				continue
			}
			if err != nil {
				im.countNote("failed")
				return stats, fmt.Errorf("importing note %s: %w", ref.GUID, err)
			}

			stats.Notes++
			stats.Resources += result.Resolved
			stats.Unresolved += result.Unresolved
			im.countNote("written")
		}
	}

	im.logger.Info("import finished",
		"notes", stats.Notes, "skipped", stats.Skipped,
		"resources", stats.Resources, "unresolved", stats.Unresolved)
	return stats, nil
}

// notebooks returns the notebooks selected for import.
func (im *Importer) notebooks(ctx context.Context) ([]core.Notebook, error) {
	all, err := im.source.ListNotebooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notebooks: %w", err)
	}
	if im.notebook == "" {
		return all, nil
	}
	for _, nb := range all {
		if nb.GUID == im.notebook || strings.EqualFold(nb.Name, im.notebook) {
			return []core.Notebook{nb}, nil
		}
	}
	return nil, fmt.Errorf("notebook %q: %w", im.notebook, core.ErrNotFound)
}

// ImportNote normalizes a single note into its folder and returns the
// rewrite result. Running it twice on the same input yields the same files.
func (im *Importer) ImportNote(ctx context.Context, guid string) (rewrite.Result, error) {
	note, err := im.source.GetNote(ctx, guid)
	if err != nil {
		return rewrite.Result{}, err
	}

	// Nothing is written until tags resolve.
	tags, err := im.tagNames(ctx, note)
	if err != nil {
		return rewrite.Result{}, err
	}

	dir, err := im.writer.Prepare(note.GUID)
	if err != nil {
		return rewrite.Result{}, err
	}

	m := materialize.New(dir)
	resolve := func(ctx context.Context, res core.Resource) (string, error) {
		data, err := im.source.GetResource(ctx, res.GUID)
		if err != nil {
			return "", err
		}
		rel, err := m.Materialize(res, data.Body, data.MIME)
		if err != nil {
			return "", err
		}
		if im.metrics != nil {
			im.metrics.ResourcesMaterialized.WithLabelValues(path.Dir(rel)).Inc()
		}
		return rel, nil
	}

	result, err := im.rewriter.Rewrite(ctx, note.Content, rewrite.IndexResources(note.Resources), resolve)
	if err != nil {
		return rewrite.Result{}, fmt.Errorf("rewriting: %w", err)
	}
	if result.Unresolved > 0 {
		im.logger.Warn("dropped unresolved references", "guid", note.GUID, "count", result.Unresolved)
		if im.metrics != nil {
			im.metrics.UnresolvedReferences.Add(float64(result.Unresolved))
		}
	}

	title := strings.TrimSpace(note.Title)
	meta := core.Metadata{
		Title:     title,
		GUID:      note.GUID,
		CreatedAt: CreatedDate(note.Created),
		Tags:      tags,
		Author:    strings.TrimSpace(note.Author),
	}
	im.enrich(ctx, &meta, result.HTML)

	if _, err := im.writer.WriteNote(note.GUID, assemble.Document(title, result.HTML)); err != nil {
		return rewrite.Result{}, err
	}
	if _, err := im.writer.WriteMetadata(note.GUID, meta); err != nil {
		return rewrite.Result{}, err
	}
	im.logger.Debug("note written", "guid", note.GUID, "title", title, "resources", result.Resolved)
	return result, nil
}

// enrich fills the computed fields of meta. Enrichment failures are logged
// and leave the fields empty.
func (im *Importer) enrich(ctx context.Context, meta *core.Metadata, fragment string) {
	if im.enricher == nil {
		return
	}
	text, err := im.extractor.Text(fragment)
	if err != nil || strings.TrimSpace(text) == "" {
		return
	}
	e, err := im.enricher.Enrich(ctx, text)
	if err != nil {
		im.logger.Warn("enrichment failed", "guid", meta.GUID, "error", err)
		return
	}
	meta.Summary = e.Summary
	meta.Keywords = e.Keywords
	meta.Sentiment = e.Sentiment
}

// tagNames returns the note's tag names, resolving tag identifiers through
// the source when the note carries no names.
func (im *Importer) tagNames(ctx context.Context, note *core.Note) ([]string, error) {
	if len(note.TagNames) > 0 || len(note.TagGUIDs) == 0 {
		return append([]string{}, note.TagNames...), nil
	}

	if im.tags == nil {
		tags, err := im.source.ListTags(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tags: %w", err)
		}
		im.tags = make(map[string]string, len(tags))
		for _, t := range tags {
			im.tags[t.GUID] = t.Name
		}
	}

	names := make([]string, 0, len(note.TagGUIDs))
	for _, id := range note.TagGUIDs {
		name, ok := im.tags[id]
		if !ok || strings.TrimSpace(name) == "" {
			name = UnknownTag
		}
		names = append(names, name)
	}
	return names, nil
}

func (im *Importer) countNote(outcome string) {
	if im.metrics != nil {
		im.metrics.NotesNormalized.WithLabelValues(outcome).Inc()
	}
}

// CreatedDate formats a creation time as YYYY-MM-DD in UTC, or "Unknown".
func CreatedDate(t time.Time) string {
	if t.IsZero() {
		return UnknownDate
	}
	return t.UTC().Format(time.DateOnly)
}
