// Package source provides NoteSource implementations.
//
// ENEXSource reads Evernote ENEX export files. Each .enex file is one
// notebook. ENEX carries no stable identifiers, so notebook, note and
// resource GUIDs are derived deterministically (SHA-1 name-based UUIDs) from
// the file path, the note title and creation time, and the resource digest.
package source

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/google/uuid"
)

// enexTimeLayout is the timestamp format used by ENEX (<created>, <updated>).
const enexTimeLayout = "20060102T150405Z"

// ENEXPattern selects export files when the source is a directory.
const ENEXPattern = "**/*.enex"

var namespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("notepipe"))

type enexNote struct {
	Title      string         `xml:"title"`
	Content    string         `xml:"content"`
	Created    string         `xml:"created"`
	Updated    string         `xml:"updated"`
	Tags       []string       `xml:"tag"`
	Attributes enexAttributes `xml:"note-attributes"`
	Resources  []enexResource `xml:"resource"`
}

type enexAttributes struct {
	Author    string `xml:"author"`
	SourceURL string `xml:"source-url"`
}

type enexResource struct {
	Data struct {
		Encoding string `xml:"encoding,attr"`
		Value    string `xml:",chardata"`
	} `xml:"data"`
	Mime       string `xml:"mime"`
	Attributes struct {
		FileName string `xml:"file-name"`
	} `xml:"resource-attributes"`
}

// ENEXSource serves notes parsed from one or more ENEX files.
type ENEXSource struct {
	notebooks []core.Notebook
	refs      map[string][]core.NoteRef
	notes     map[string]*core.Note
	data      map[string]*core.ResourceData
	logger    *slog.Logger
}

// OpenENEX loads path, which is either a single .enex file or a directory
// searched recursively for .enex files.
func OpenENEX(ctx context.Context, path string, logger *slog.Logger) (*ENEXSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}

	files := []string{path}
	base := filepath.Dir(path)
	if info.IsDir() {
		base = path
		matches, err := doublestar.Glob(os.DirFS(path), ENEXPattern)
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", path, err)
		}
		sort.Strings(matches)
		files = files[:0]
		for _, m := range matches {
			files = append(files, filepath.Join(path, filepath.FromSlash(m)))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files under %s", ENEXPattern, path)
	}

	s := &ENEXSource{
		refs:   make(map[string][]core.NoteRef),
		notes:  make(map[string]*core.Note),
		data:   make(map[string]*core.ResourceData),
		logger: logger,
	}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(base, file)
		if err != nil {
			rel = filepath.Base(file)
		}
		if err := s.loadFile(file, filepath.ToSlash(rel)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *ENEXSource) loadFile(path, rel string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	notebook := core.Notebook{
		GUID: uuid.NewSHA1(namespace, []byte("notebook:"+rel)).String(),
		Name: strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel)),
	}

	count, err := s.decode(f, notebook.GUID)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	s.notebooks = append(s.notebooks, notebook)
	s.logger.Debug("loaded export", "file", rel, "notebook", notebook.Name, "notes", count)
	return nil
}

// decode streams <note> elements so large exports are not held twice.
func (s *ENEXSource) decode(r io.Reader, notebookGUID string) (int, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	count := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "note" {
			continue
		}

		var raw enexNote
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return count, err
		}
		note := s.addNote(raw)
		s.refs[notebookGUID] = append(s.refs[notebookGUID], core.NoteRef{GUID: note.GUID, Title: note.Title})
		count++
	}
}

func (s *ENEXSource) addNote(raw enexNote) *core.Note {
	title := strings.TrimSpace(raw.Title)
	created := parseENEXTime(raw.Created)

	key := title + "\x00" + strings.TrimSpace(raw.Created)
	id := uuid.NewSHA1(namespace, []byte(key))
	for n := 2; s.notes[id.String()] != nil; n++ {
		id = uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%s\x00#%d", key, n)))
	}

	note := &core.Note{
		GUID:      id.String(),
		Title:     title,
		Created:   created,
		Updated:   parseENEXTime(raw.Updated),
		TagNames:  trimAll(raw.Tags),
		Author:    strings.TrimSpace(raw.Attributes.Author),
		SourceURL: strings.TrimSpace(raw.Attributes.SourceURL),
		Content:   raw.Content,
	}

	seen := make(map[string]bool)
	for _, r := range raw.Resources {
		body, err := decodeResource(r.Data.Encoding, r.Data.Value)
		if err != nil {
			s.logger.Warn("skipping undecodable resource", "note", note.Title, "error", err)
			continue
		}
		if len(body) == 0 {
			continue
		}
		sum := md5.Sum(body)
		hash := hex.EncodeToString(sum[:])
		if seen[hash] {
			continue
		}
		seen[hash] = true

		res := core.Resource{
			GUID:     uuid.NewSHA1(id, []byte(hash)).String(),
			NoteGUID: note.GUID,
			Hash:     hash,
			MIME:     strings.TrimSpace(r.Mime),
			FileName: strings.TrimSpace(r.Attributes.FileName),
			Size:     len(body),
		}
		note.Resources = append(note.Resources, res)
		s.data[res.GUID] = &core.ResourceData{Body: body, MIME: res.MIME}
	}

	s.notes[note.GUID] = note
	return note
}

func decodeResource(encoding, value string) ([]byte, error) {
	if encoding != "" && !strings.EqualFold(encoding, "base64") {
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
	compact := strings.Join(strings.Fields(value), "")
	return base64.StdEncoding.DecodeString(compact)
}

func parseENEXTime(value string) time.Time {
	t, err := time.Parse(enexTimeLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return t
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ListNotebooks returns one notebook per export file, in path order.
func (s *ENEXSource) ListNotebooks(ctx context.Context) ([]core.Notebook, error) {
	return append([]core.Notebook(nil), s.notebooks...), nil
}

// ListNotes returns the notes of a notebook in file order.
func (s *ENEXSource) ListNotes(ctx context.Context, notebookGUID string) ([]core.NoteRef, error) {
	refs, ok := s.refs[notebookGUID]
	if !ok && !s.hasNotebook(notebookGUID) {
		return nil, fmt.Errorf("notebook %s: %w", notebookGUID, core.ErrNotFound)
	}
	return append([]core.NoteRef(nil), refs...), nil
}

// ListTags returns nothing: ENEX stores tag names on the notes themselves.
func (s *ENEXSource) ListTags(ctx context.Context) ([]core.Tag, error) {
	return nil, nil
}

// GetNote returns a copy of the note with its resource metadata.
func (s *ENEXSource) GetNote(ctx context.Context, guid string) (*core.Note, error) {
	note, ok := s.notes[guid]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", guid, core.ErrNotFound)
	}
	cp := *note
	cp.Resources = append([]core.Resource(nil), note.Resources...)
	cp.TagNames = append([]string(nil), note.TagNames...)
	return &cp, nil
}

// GetResource returns the decoded bytes of a resource.
func (s *ENEXSource) GetResource(ctx context.Context, guid string) (*core.ResourceData, error) {
	data, ok := s.data[guid]
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", guid, core.ErrNotFound)
	}
	return &core.ResourceData{Body: data.Body, MIME: data.MIME}, nil
}

func (s *ENEXSource) hasNotebook(guid string) bool {
	for _, nb := range s.notebooks {
		if nb.GUID == guid {
			return true
		}
	}
	return false
}

var _ core.NoteSource = (*ENEXSource)(nil)
