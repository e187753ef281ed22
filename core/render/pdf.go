// Package render, PDF renderer.
// Converts note Markdown into a styled PDF using gofpdf.
// Handles headings (variable font sizes), paragraphs, code blocks, and lists.
// Images are not embedded; they appear as "[image: name]" placeholders.
package render

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/jung-kurt/gofpdf"
)

// PDFRenderer renders Markdown content as a PDF document.
type PDFRenderer struct{}

// NewPDFRenderer creates a PDFRenderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render converts Markdown into PDF bytes.
func (r *PDFRenderer) Render(markdown string, meta core.ExportMetadata) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(meta.Title, true)
	pdf.SetAuthor(meta.Author, true)
	pdf.AddPage()

	// Core fonts are cp1252; translate note text into it.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Title from metadata.
	if meta.Title != "" {
		pdf.SetFont("Helvetica", "B", 18)
		pdf.MultiCell(0, 8, tr(meta.Title), "", "L", false)
		pdf.Ln(4)
	}

	// Byline.
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.MultiCell(0, 5, tr(byline(meta)), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	// Parse and render Markdown line by line.
	lines := strings.Split(markdown, "\n")
	inCodeBlock := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		// Toggle code block state.
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			if inCodeBlock {
				pdf.Ln(2)
				pdf.SetFont("Courier", "", 9)
				pdf.SetFillColor(245, 245, 245)
			} else {
				pdf.Ln(2)
			}
			continue
		}

		if inCodeBlock {
			// Render code lines with monospace font and background.
			pdf.SetFont("Courier", "", 9)
			pdf.SetFillColor(245, 245, 245)
			pdf.MultiCell(0, 4.5, tr(line), "", "L", true)
			continue
		}

		// Skip empty lines (add spacing instead).
		if strings.TrimSpace(line) == "" {
			pdf.Ln(3)
			continue
		}

		// Headings.
		if strings.HasPrefix(line, "#") {
			level := 0
			for _, ch := range line {
				if ch == '#' {
					level++
				} else {
					break
				}
			}
			text := strings.TrimSpace(strings.TrimLeft(line, "# "))
			renderHeading(pdf, tr(text), level)
			continue
		}

		// List items.
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			pdf.SetFont("Helvetica", "", 10)
			text := "• " + strings.TrimSpace(trimmed[2:])
			text = cleanInlineMarkdown(text)
			pdf.MultiCell(0, 5, tr(text), "", "L", false)
			continue
		}

		// Numbered list items.
		if numberedRegex.MatchString(trimmed) {
			pdf.SetFont("Helvetica", "", 10)
			text := cleanInlineMarkdown(trimmed)
			pdf.MultiCell(0, 5, tr(text), "", "L", false)
			continue
		}

		// Regular paragraph text.
		pdf.SetFont("Helvetica", "", 10)
		text := cleanInlineMarkdown(line)
		pdf.MultiCell(0, 5, tr(text), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// byline joins author, date and tags for the line under the title.
func byline(meta core.ExportMetadata) string {
	parts := make([]string, 0, 3)
	if meta.Author != "" {
		parts = append(parts, meta.Author)
	}
	if meta.CreatedAt != "" {
		parts = append(parts, meta.CreatedAt)
	}
	if len(meta.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(meta.Tags, ", "))
	}
	return strings.Join(parts, " | ")
}

// Extension returns the file extension for PDF output.
func (r *PDFRenderer) Extension() string {
	return ".pdf"
}

// renderHeading sets the font size based on heading level and writes text.
func renderHeading(pdf *gofpdf.Fpdf, text string, level int) {
	sizes := map[int]float64{1: 18, 2: 15, 3: 13, 4: 12, 5: 11, 6: 10}
	size, ok := sizes[level]
	if !ok {
		size = 10
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", size)
	pdf.MultiCell(0, size*0.6, cleanInlineMarkdown(text), "", "L", false)
	pdf.Ln(2)
}

var (
	numberedRegex = regexp.MustCompile(`^\d+\.\s`)
	italicRegex   = regexp.MustCompile(`(?:^|\s)\*([^*]+)\*(?:\s|$)`)
	pdfImageRegex = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)[^)]*\)`)
	pdfLinkRegex  = regexp.MustCompile(`\[([^\]]*)\]\([^)]+\)`)
)

// cleanInlineMarkdown strips inline Markdown formatting for PDF rendering.
func cleanInlineMarkdown(text string) string {
	// Remove bold markers.
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	// Remove italic markers (but not inside words like don't).
	text = italicRegex.ReplaceAllString(text, " $1 ")
	// Remove inline code markers.
	text = inlineCodeRegex.ReplaceAllString(text, "$1")
	// Images become placeholders naming the file.
	text = pdfImageRegex.ReplaceAllStringFunc(text, func(m string) string {
		src := pdfImageRegex.FindStringSubmatch(m)[1]
		return fmt.Sprintf("[image: %s]", path.Base(src))
	})
	// Remove link syntax, keep text.
	text = pdfLinkRegex.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
