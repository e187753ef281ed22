// Package extract reads content back out of archived note documents.
// It isolates the body fragment of a note.html and derives the plain text
// used for enrichment and exports.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelectors are removed before text extraction.
// They contribute no readable words to the note.
var noiseSelectors = []string{
	"script", "style", "noscript",
	"img", "picture", "figure", "figcaption",
	"iframe", "video", "audio",
	"svg", "canvas",
	"form", "button", "input", "select", "textarea",
}

// blockSelectors are followed by a line break so their words do not run together.
var blockSelectors = "p, div, li, h1, h2, h3, h4, h5, h6, tr, pre, blockquote, br"

// NoteExtractor pulls fragments and text out of note documents.
type NoteExtractor struct{}

// New creates a NoteExtractor.
func New() *NoteExtractor {
	return &NoteExtractor{}
}

// Body returns the inner HTML of the document's <body>. A fragment without
// a document shell is returned as parsed.
func (e *NoteExtractor) Body(document string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return "", fmt.Errorf("no body found in document")
	}

	result, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("serializing body: %w", err)
	}
	return strings.TrimSpace(result), nil
}

// Text returns the readable words of an HTML document or fragment, one
// block per line, with runs of whitespace collapsed.
func (e *NoteExtractor) Text(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}
	doc.Find("head").Remove()
	doc.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// Title returns the text of the document's <title>, or "".
func (e *NoteExtractor) Title(document string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}
