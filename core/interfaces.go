// Package core defines the domain types and pipeline interfaces for notepipe.
// Each stage of the pipeline is a clean, testable interface.
package core

import (
	"context"
	"time"
)

// Notebook is a named collection of notes in the upstream service.
type Notebook struct {
	GUID string
	Name string
}

// NoteRef identifies a note inside a notebook listing.
type NoteRef struct {
	GUID  string
	Title string
}

// Tag maps a tag identifier to its display name.
type Tag struct {
	GUID string
	Name string
}

// Resource is a binary blob attached to a note. Hash is the lowercase hex
// digest the note markup uses to reference it.
type Resource struct {
	GUID     string
	NoteGUID string
	Hash     string
	MIME     string
	FileName string
	Size     int
}

// ResourceData holds the bytes of a resource as fetched from the upstream.
type ResourceData struct {
	Body []byte
	MIME string
}

// Note is a single note as delivered by a NoteSource.
type Note struct {
	GUID      string
	Title     string
	Created   time.Time
	Updated   time.Time
	TagNames  []string
	TagGUIDs  []string
	Author    string
	SourceURL string
	Content   string // raw ENML
	Resources []Resource
}

// Metadata is the record persisted as metadata.json next to note.html.
type Metadata struct {
	Title     string   `json:"title"`
	GUID      string   `json:"guid"`
	CreatedAt string   `json:"created_at"`
	Tags      []string `json:"tags"`
	Author    string   `json:"author,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`
}

// NoteSummary is the listing view of an archived note. Every field carries
// a default when metadata.json lacks it.
type NoteSummary struct {
	Folder    string   `json:"folder"` // note folder name; locates the files
	GUID      string   `json:"guid"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Author    string   `json:"author"`
	CreatedAt string   `json:"created_at"`
	Tags      []string `json:"tags"`
}

// Enrichment is the computed text analysis merged into metadata.
type Enrichment struct {
	Summary   string   `json:"summary"`
	Keywords  []string `json:"keywords"`
	Sentiment string   `json:"sentiment"`
}

// NoteSource is the upstream note service (or an export of it).
type NoteSource interface {
	ListNotebooks(ctx context.Context) ([]Notebook, error)
	ListNotes(ctx context.Context, notebookGUID string) ([]NoteRef, error)
	ListTags(ctx context.Context) ([]Tag, error)
	GetNote(ctx context.Context, guid string) (*Note, error)
	GetResource(ctx context.Context, guid string) (*ResourceData, error)
}

// Enricher derives a summary, keywords and a sentiment label from note text.
type Enricher interface {
	Enrich(ctx context.Context, text string) (Enrichment, error)
}

// Normalizer converts a cleaned HTML fragment into Markdown.
type Normalizer interface {
	Normalize(html string) (string, error)
}

// ExportMetadata describes an archived note handed to a Renderer.
type ExportMetadata struct {
	GUID       string   `json:"guid"`
	Title      string   `json:"title"`
	Author     string   `json:"author"`
	CreatedAt  string   `json:"created_at"`
	Tags       []string `json:"tags"`
	ExportedAt string   `json:"exported_at"` // ISO8601
}

// Section represents a heading-delimited section of content.
type Section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Text    string `json:"text"`
}

// Heading represents a single heading found in the content.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link represents a hyperlink found in the content.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// NoteContent holds the text and structured content of a note.
type NoteContent struct {
	Text     string    `json:"text"`
	Markdown string    `json:"markdown"`
	Sections []Section `json:"sections"`
}

// NoteStructure holds structural metadata parsed from the content.
type NoteStructure struct {
	Headings    []Heading `json:"headings"`
	Links       []Link    `json:"links"`
	Attachments []Link    `json:"attachments"`
	CodeBlocks  int       `json:"code_blocks"`
	Tables      int       `json:"tables"`
	Lists       int       `json:"lists"`
}

// NoteJSON is the complete JSON export for a single note.
type NoteJSON struct {
	Metadata  ExportMetadata `json:"metadata"`
	Content   NoteContent    `json:"content"`
	Structure NoteStructure  `json:"structure"`
}

// Renderer converts Markdown (and metadata) into a final output format.
type Renderer interface {
	Render(markdown string, meta ExportMetadata) ([]byte, error)
	// Extension returns the file extension for this renderer (e.g. ".md", ".pdf").
	Extension() string
}
