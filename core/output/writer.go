// Package output handles file naming and writing for generated files:
// export renders named <guid><ext> and static site pages under one
// output directory.
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gaurav-prasanna/notepipe/core/archive"
)

// Writer writes rendered output to disk.
type Writer struct {
	OutputDir string
}

// New creates a Writer targeting the given output directory.
// If outputDir is empty, it defaults to the current working directory.
func New(outputDir string) (*Writer, error) {
	if outputDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		outputDir = wd
	}

	// Ensure the output directory exists.
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &Writer{OutputDir: outputDir}, nil
}

// WriteNote writes the render of one note as <guid><ext>.
func (w *Writer) WriteNote(guid string, data []byte, ext string) (string, error) {
	if !archive.ValidID(guid) {
		return "", fmt.Errorf("invalid note identifier %q", guid)
	}
	return w.Write(guid+ext, data)
}

// Write writes data at the slash-separated path rel inside the output
// directory, creating parent directories as needed.
func (w *Writer) Write(rel string, data []byte) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("output path %q escapes %s", rel, w.OutputDir)
	}
	fullPath := filepath.Join(w.OutputDir, local)

	// Ensure parent directories exist.
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := archive.WriteFileAtomic(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing file %s: %w", fullPath, err)
	}
	return fullPath, nil
}

// Path returns the absolute location of rel inside the output directory.
func (w *Writer) Path(rel string) string {
	return filepath.Join(w.OutputDir, filepath.FromSlash(rel))
}
