// Package normalize implements the Normalizer interface.
// It converts an archived note body into Markdown, the intermediate format
// of every export renderer.
package normalize

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// checkboxes maps the ballot boxes left by to-do conversion to Markdown
// task list markers.
var checkboxes = strings.NewReplacer("☐ ", "[ ] ", "☑ ", "[x] ")

// MarkdownNormalizer converts HTML to Markdown using html-to-markdown.
type MarkdownNormalizer struct{}

// New creates a MarkdownNormalizer.
func New() *MarkdownNormalizer {
	return &MarkdownNormalizer{}
}

// Normalize converts a note body fragment into Markdown ending in a single
// newline. Blank input yields "".
func (n *MarkdownNormalizer) Normalize(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}

	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		lines[i] = checkboxes.Replace(strings.TrimRight(line, " \t"))
	}
	markdown = strings.TrimSpace(strings.Join(lines, "\n"))
	if markdown == "" {
		return "", nil
	}
	return markdown + "\n", nil
}
