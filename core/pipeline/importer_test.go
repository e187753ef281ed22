package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gaurav-prasanna/notepipe/core/enrich"
	"github.com/gaurav-prasanna/notepipe/core/metrics"
	"github.com/gaurav-prasanna/notepipe/core/source"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory NoteSource. Notes listed in limited always
// answer with a rate-limit error.
type fakeSource struct {
	notebooks []core.Notebook
	refs      map[string][]core.NoteRef
	notes     map[string]*core.Note
	resources map[string]*core.ResourceData
	tags      []core.Tag
	limited   map[string]bool
	failing   map[string]error
	tagErr    error
	tagCalls  int
}

func (f *fakeSource) ListNotebooks(context.Context) ([]core.Notebook, error) {
	return f.notebooks, nil
}

func (f *fakeSource) ListNotes(_ context.Context, notebookGUID string) ([]core.NoteRef, error) {
	return f.refs[notebookGUID], nil
}

func (f *fakeSource) ListTags(context.Context) ([]core.Tag, error) {
	f.tagCalls++
	if f.tagErr != nil {
		return nil, f.tagErr
	}
	return f.tags, nil
}

func (f *fakeSource) GetNote(_ context.Context, guid string) (*core.Note, error) {
	if f.limited[guid] {
		return nil, &core.RateLimitError{Duration: time.Second}
	}
	if err := f.failing[guid]; err != nil {
		return nil, err
	}
	note, ok := f.notes[guid]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *note
	return &cp, nil
}

func (f *fakeSource) GetResource(_ context.Context, guid string) (*core.ResourceData, error) {
	data, ok := f.resources[guid]
	if !ok {
		return nil, core.ErrNotFound
	}
	return data, nil
}

const tripContent = `<?xml version="1.0" encoding="UTF-8"?><!DOCTYPE en-note SYSTEM "http://xml.evernote.com/pub/enml2.dtd">` +
	`<en-note><div>A wonderful day at the beach</div><div><en-media hash="d41d8c" type="image/jpeg"/></div>` +
	`<en-media hash="feedbeef" type="image/png"/></en-note>`

func tripSource() *fakeSource {
	return &fakeSource{
		notebooks: []core.Notebook{{GUID: "nb1", Name: "Travel"}, {GUID: "nb2", Name: "Work"}},
		refs: map[string][]core.NoteRef{
			"nb1": {{GUID: "n1", Title: "Trip Notes"}},
			"nb2": {{GUID: "n2", Title: "Plan"}, {GUID: "n1", Title: "Trip Notes"}},
		},
		notes: map[string]*core.Note{
			"n1": {
				GUID:     "n1",
				Title:    " Trip Notes ",
				Created:  time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("X", -2*3600)),
				TagNames: []string{"travel"},
				Content:  tripContent,
				Resources: []core.Resource{
					{GUID: "r1", NoteGUID: "n1", Hash: "D41D8C", MIME: "image/jpeg"},
				},
			},
			"n2": {
				GUID:     "n2",
				Title:    "Plan",
				TagGUIDs: []string{"t1", "t9"},
				Content:  `<en-note><div>Quarterly plan</div></en-note>`,
			},
		},
		resources: map[string]*core.ResourceData{
			"r1": {Body: []byte{0xff, 0xd8, 0xff, 0xe0}, MIME: "image/jpeg"},
		},
		tags: []core.Tag{{GUID: "t1", Name: "work"}},
	}
}

func newImporter(t *testing.T, src core.NoteSource, opts Options) (*Importer, string) {
	t.Helper()
	root := t.TempDir()
	w, err := archive.NewWriter(root)
	require.NoError(t, err)
	opts.Source = src
	opts.Writer = w
	opts.Retry = append(opts.Retry, source.WithSleep(func(context.Context, time.Duration) error { return nil }))
	return New(opts), root
}

func readMetadata(t *testing.T, root, guid string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, guid, archive.MetadataFile))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestImportTripNotes(t *testing.T) {
	m := metrics.New()
	im, root := newImporter(t, tripSource(), Options{Metrics: m})

	stats, err := im.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Notes: 2, Resources: 1, Unresolved: 1}, stats)

	image := filepath.Join(root, "n1", "images", "r1.jpg")
	assert.FileExists(t, image)

	html, err := os.ReadFile(filepath.Join(root, "n1", archive.NoteFile))
	require.NoError(t, err)
	assert.Contains(t, string(html), `<title>Trip Notes</title>`)
	assert.Contains(t, string(html), `<img src="images/r1.jpg"/>`)
	assert.NotContains(t, string(html), "en-media")

	meta := readMetadata(t, root, "n1")
	assert.Equal(t, "Trip Notes", meta["title"])
	assert.Equal(t, "n1", meta["guid"])
	assert.Equal(t, "2024-03-02", meta["created_at"])
	assert.Equal(t, []any{"travel"}, meta["tags"])
	assert.NotContains(t, meta, "summary")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotesNormalized.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResourcesMaterialized.WithLabelValues("images")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnresolvedReferences))
}

func TestImportIsIdempotent(t *testing.T) {
	im, root := newImporter(t, tripSource(), Options{})

	_, err := im.Run(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(root, "n1", archive.NoteFile))
	require.NoError(t, err)
	firstMeta, err := os.ReadFile(filepath.Join(root, "n1", archive.MetadataFile))
	require.NoError(t, err)

	_, err = im.Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(root, "n1", archive.NoteFile))
	require.NoError(t, err)
	secondMeta, err := os.ReadFile(filepath.Join(root, "n1", archive.MetadataFile))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstMeta, secondMeta)

	images, err := os.ReadDir(filepath.Join(root, "n1", "images"))
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

func TestImportResolvesTagIdentifiers(t *testing.T) {
	src := tripSource()
	im, root := newImporter(t, src, Options{})

	_, err := im.Run(context.Background())
	require.NoError(t, err)

	meta := readMetadata(t, root, "n2")
	assert.Equal(t, []any{"work", UnknownTag}, meta["tags"])
	assert.Equal(t, UnknownDate, meta["created_at"])
	assert.Equal(t, 1, src.tagCalls)
}

func TestImportTagFailureWritesNothing(t *testing.T) {
	src := tripSource()
	src.tagErr = errors.New("tag listing unavailable")
	im, root := newImporter(t, src, Options{})

	_, err := im.ImportNote(context.Background(), "n2")
	require.Error(t, err)
	assert.ErrorIs(t, err, src.tagErr)
	assert.NoFileExists(t, filepath.Join(root, "n2", archive.NoteFile))
	assert.NoFileExists(t, filepath.Join(root, "n2", archive.MetadataFile))
}

func TestImportEveryEmittedPathExists(t *testing.T) {
	src := &fakeSource{
		notebooks: []core.Notebook{{GUID: "nb1", Name: "Reports"}},
		refs:      map[string][]core.NoteRef{"nb1": {{GUID: "n3", Title: "Quarter"}}},
		notes: map[string]*core.Note{
			"n3": {
				GUID:  "n3",
				Title: "Quarter",
				Content: `<en-note><div>Photo</div><en-media hash="aa11" type="image/jpeg"/>` +
					`<div>First</div><en-media hash="bb22" type="application/pdf"/>` +
					`<div>Second</div><en-media hash="cc33" type="application/pdf"/>` +
					`<div>Gone</div><en-media hash="dd44" type="application/pdf"/>` +
					`<div>Again</div><en-media hash="AA11" type="image/jpeg"/></en-note>`,
				Resources: []core.Resource{
					{GUID: "img", NoteGUID: "n3", Hash: "aa11", MIME: "image/jpeg"},
					{GUID: "pdf1", NoteGUID: "n3", Hash: "bb22", MIME: "application/pdf", FileName: "report.pdf"},
					{GUID: "pdf2", NoteGUID: "n3", Hash: "cc33", MIME: "application/pdf", FileName: "report.pdf"},
				},
			},
		},
		resources: map[string]*core.ResourceData{
			"img":  {Body: []byte{0xff, 0xd8, 0xff, 0xe0}, MIME: "image/jpeg"},
			"pdf1": {Body: []byte("%PDF-1.4 first\n"), MIME: "application/pdf"},
			"pdf2": {Body: []byte("%PDF-1.4 second\n"), MIME: "application/pdf"},
		},
	}
	im, root := newImporter(t, src, Options{})

	stats, err := im.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Notes)
	assert.Equal(t, 1, stats.Unresolved)

	dir := filepath.Join(root, "n3")
	f, err := os.Open(filepath.Join(dir, archive.NoteFile))
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)

	var refs []string
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		refs = append(refs, s.AttrOr("src", ""))
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		refs = append(refs, s.AttrOr("href", ""))
	})
	assert.ElementsMatch(t, []string{
		"images/img.jpg", "images/img.jpg", "attachments/report.pdf", "attachments/report-2.pdf",
	}, refs)
	for _, ref := range refs {
		assert.True(t, filepath.IsLocal(filepath.FromSlash(ref)), ref)
		assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(ref)), ref)
	}
	assert.False(t, strings.Contains(doc.Text(), "dd44"))

	first, err := os.ReadFile(filepath.Join(dir, "attachments", "report.pdf"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "attachments", "report-2.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 first\n", string(first))
	assert.Equal(t, "%PDF-1.4 second\n", string(second))
}

func TestImportSkipsRateLimitedNotes(t *testing.T) {
	src := tripSource()
	src.limited = map[string]bool{"n2": true}
	m := metrics.New()
	im, root := newImporter(t, src, Options{Metrics: m})

	stats, err := im.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Notes)
	assert.Equal(t, 1, stats.Skipped)
	assert.NoDirExists(t, filepath.Join(root, "n2"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedNotes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotesNormalized.WithLabelValues("skipped")))
}

func TestImportStopsOnUpstreamFailure(t *testing.T) {
	src := tripSource()
	boom := errors.New("authentication expired")
	src.failing = map[string]error{"n2": boom}
	im, _ := newImporter(t, src, Options{})

	stats, err := im.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, stats.Notes)
}

func TestImportNotebookFilter(t *testing.T) {
	im, root := newImporter(t, tripSource(), Options{Notebook: "work"})

	stats, err := im.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Notes)
	assert.DirExists(t, filepath.Join(root, "n2"))

	im, _ = newImporter(t, tripSource(), Options{Notebook: "Archive"})
	_, err = im.Run(context.Background())
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestImportEnrichesMetadata(t *testing.T) {
	im, root := newImporter(t, tripSource(), Options{Enricher: enrich.NewLocal(3, 2)})

	_, err := im.Run(context.Background())
	require.NoError(t, err)

	meta := readMetadata(t, root, "n1")
	assert.Equal(t, "A wonderful day...", meta["summary"])
	assert.Equal(t, []any{"wonderful", "day"}, meta["keywords"])
	assert.Equal(t, enrich.Positive, meta["sentiment"])
}

func TestCreatedDate(t *testing.T) {
	assert.Equal(t, UnknownDate, CreatedDate(time.Time{}))
	assert.Equal(t, "2023-12-31", CreatedDate(time.Date(2023, 12, 31, 12, 0, 0, 0, time.UTC)))
}
