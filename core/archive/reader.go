package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gaurav-prasanna/notepipe/core"
)

// Listing defaults for fields missing from metadata.json.
const (
	DefaultTitle   = "Untitled Note"
	DefaultAuthor  = "Unknown Author"
	DefaultDate    = "Unknown Date"
	DefaultSummary = "No summary available."
)

// Reader reads the archive produced by the import pipeline.
type Reader struct {
	Root   string
	logger *slog.Logger
}

// NewReader creates a Reader over root. A nil logger falls back to slog.Default().
func NewReader(root string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{Root: root, logger: logger}
}

// ListNotes returns a summary for every immediate sub-folder holding a
// metadata.json. A malformed entry is defaulted, never fatal. The result is
// ordered by creation date (newest first, unknown dates last), then by
// identifier.
func (r *Reader) ListNotes(ctx context.Context) ([]core.NoteSummary, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []core.NoteSummary{}, nil
		}
		return nil, fmt.Errorf("reading archive root: %w", err)
	}

	notes := make([]core.NoteSummary, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || !ValidID(entry.Name()) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.Root, entry.Name(), MetadataFile))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				r.logger.Warn("skipping unreadable metadata", "guid", entry.Name(), "error", err)
			}
			continue
		}

		meta, err := DecodeMetadata(data)
		if err != nil {
			r.logger.Warn("malformed metadata, using defaults", "guid", entry.Name(), "error", err)
		}
		notes = append(notes, Summarize(entry.Name(), meta))
	}

	SortSummaries(notes)
	return notes, nil
}

// ReadMetadata decodes metadata.json for guid. Missing fields stay empty
// except GUID, which falls back to the folder name.
func (r *Reader) ReadMetadata(guid string) (core.Metadata, error) {
	if !ValidID(guid) {
		return core.Metadata{}, fmt.Errorf("note %q: %w", guid, core.ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(r.Root, guid, MetadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Metadata{}, fmt.Errorf("metadata for %q: %w", guid, core.ErrNotFound)
		}
		return core.Metadata{}, fmt.Errorf("reading metadata for %q: %w", guid, err)
	}

	meta, err := DecodeMetadata(data)
	if err != nil {
		r.logger.Warn("malformed metadata, using defaults", "guid", guid, "error", err)
	}
	if meta.GUID == "" {
		meta.GUID = guid
	}
	return meta, nil
}

// NotePath returns the path of note.html for guid, or core.ErrNotFound.
func (r *Reader) NotePath(guid string) (string, error) {
	if !ValidID(guid) {
		return "", fmt.Errorf("note %q: %w", guid, core.ErrNotFound)
	}
	return regularFile(filepath.Join(r.Root, guid, NoteFile))
}

// ResourcePath returns the path of a file in the images or attachments
// folder of guid. Names escaping that folder are reported as not found.
func (r *Reader) ResourcePath(guid, kind, name string) (string, error) {
	if !ValidID(guid) {
		return "", fmt.Errorf("note %q: %w", guid, core.ErrNotFound)
	}
	if kind != ImagesDir && kind != AttachmentsDir {
		return "", fmt.Errorf("resource kind %q: %w", kind, core.ErrNotFound)
	}
	name = filepath.FromSlash(name)
	if name == "" || !filepath.IsLocal(name) {
		return "", fmt.Errorf("resource %q: %w", name, core.ErrNotFound)
	}
	return regularFile(filepath.Join(r.Root, guid, kind, name))
}

func regularFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", filepath.Base(path), core.ErrNotFound)
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), core.ErrNotFound)
	}
	return path, nil
}

// DecodeMetadata decodes metadata.json field by field. A field with the
// wrong type is ignored instead of failing the whole record; unparseable
// JSON returns an empty record together with the parse error.
func DecodeMetadata(data []byte) (core.Metadata, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.Metadata{}, fmt.Errorf("decoding metadata: %w", err)
	}

	return core.Metadata{
		Title:     strings.TrimSpace(stringField(raw, "title")),
		GUID:      stringField(raw, "guid"),
		CreatedAt: stringField(raw, "created_at"),
		Tags:      stringsField(raw, "tags"),
		Author:    stringField(raw, "author"),
		Summary:   stringField(raw, "summary"),
		Keywords:  stringsField(raw, "keywords"),
		Sentiment: stringField(raw, "sentiment"),
	}, nil
}

// Summarize applies listing defaults to meta for the folder named folder.
func Summarize(folder string, meta core.Metadata) core.NoteSummary {
	s := core.NoteSummary{
		Folder:    folder,
		GUID:      firstNonEmpty(meta.GUID, folder),
		Title:     firstNonEmpty(meta.Title, DefaultTitle),
		Summary:   firstNonEmpty(meta.Summary, DefaultSummary),
		Author:    firstNonEmpty(meta.Author, DefaultAuthor),
		CreatedAt: firstNonEmpty(meta.CreatedAt, DefaultDate),
		Tags:      meta.Tags,
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return s
}

// SortSummaries orders notes newest first by created_at, unknown dates
// last, ties broken by identifier.
func SortSummaries(notes []core.NoteSummary) {
	sort.SliceStable(notes, func(i, j int) bool {
		left, leftOK := parseDate(notes[i].CreatedAt)
		right, rightOK := parseDate(notes[j].CreatedAt)
		switch {
		case leftOK && !rightOK:
			return true
		case !leftOK && rightOK:
			return false
		case leftOK && rightOK && !left.Equal(right):
			return left.After(right)
		}
		return notes[i].Folder < notes[j].Folder
	})
}

func parseDate(value string) (time.Time, bool) {
	t, err := time.Parse(time.DateOnly, value)
	return t, err == nil
}

func stringField(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func stringsField(raw map[string]any, key string) []string {
	items, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
