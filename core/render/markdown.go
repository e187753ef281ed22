// Package render provides the export renderers for archived notes.
// This file implements the Markdown renderer: a YAML front matter block
// followed by the note body.
package render

import (
	"bytes"
	"fmt"

	"github.com/gaurav-prasanna/notepipe/core"
	"gopkg.in/yaml.v3"
)

// frontMatter is the YAML header of a Markdown export.
type frontMatter struct {
	Title      string   `yaml:"title"`
	GUID       string   `yaml:"guid"`
	Author     string   `yaml:"author,omitempty"`
	Date       string   `yaml:"date"`
	Tags       []string `yaml:"tags,flow"`
	ExportedAt string   `yaml:"exported_at,omitempty"`
}

// MarkdownRenderer writes the note Markdown under a front matter header.
type MarkdownRenderer struct{}

// NewMarkdownRenderer creates a MarkdownRenderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// Render returns the front matter and the Markdown body.
func (r *MarkdownRenderer) Render(markdown string, meta core.ExportMetadata) ([]byte, error) {
	tags := meta.Tags
	if tags == nil {
		tags = []string{}
	}
	header, err := yaml.Marshal(frontMatter{
		Title:      meta.Title,
		GUID:       meta.GUID,
		Author:     meta.Author,
		Date:       meta.CreatedAt,
		Tags:       tags,
		ExportedAt: meta.ExportedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	buf.WriteString(markdown)
	if markdown != "" && markdown[len(markdown)-1] != '\n' {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Extension returns the file extension for Markdown output.
func (r *MarkdownRenderer) Extension() string {
	return ".md"
}
