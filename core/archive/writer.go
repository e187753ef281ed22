// Package archive handles the folder-per-note layout of the archive root.
// Every note owns <root>/<guid>/ holding note.html, metadata.json and the
// images/ and attachments/ sub-folders.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gaurav-prasanna/notepipe/core"
)

// Layout names.
const (
	NoteFile       = "note.html"
	MetadataFile   = "metadata.json"
	ImagesDir      = "images"
	AttachmentsDir = "attachments"
)

// Writer writes normalized notes into the archive root.
type Writer struct {
	Root string
}

// NewWriter creates a Writer targeting root.
// If root is empty, it defaults to ./articles under the working directory.
func NewWriter(root string) (*Writer, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		root = filepath.Join(wd, "articles")
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating archive root: %w", err)
	}

	return &Writer{Root: root}, nil
}

// ValidID reports whether id can be used as a single folder name inside
// the archive root.
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, `/\`) {
		return false
	}
	return filepath.IsLocal(id)
}

// NoteDir returns the folder owned by the note with the given identifier.
func (w *Writer) NoteDir(guid string) (string, error) {
	if !ValidID(guid) {
		return "", fmt.Errorf("invalid note identifier %q", guid)
	}
	return filepath.Join(w.Root, guid), nil
}

// Prepare creates the note folder and its resource sub-folders. It is safe
// to call repeatedly; existing files are left alone.
func (w *Writer) Prepare(guid string) (string, error) {
	dir, err := w.NoteDir(guid)
	if err != nil {
		return "", err
	}
	for _, sub := range []string{ImagesDir, AttachmentsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", sub, err)
		}
	}
	return dir, nil
}

// WriteNote replaces note.html for guid.
func (w *Writer) WriteNote(guid string, document string) (string, error) {
	dir, err := w.NoteDir(guid)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, NoteFile)
	if err := WriteFileAtomic(path, []byte(document), 0644); err != nil {
		return "", fmt.Errorf("writing file %s: %w", path, err)
	}
	return path, nil
}

// WriteMetadata replaces metadata.json for guid.
func (w *Writer) WriteMetadata(guid string, meta core.Metadata) (string, error) {
	dir, err := w.NoteDir(guid)
	if err != nil {
		return "", err
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}

	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, MetadataFile)
	if err := WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file %s: %w", path, err)
	}
	return path, nil
}
