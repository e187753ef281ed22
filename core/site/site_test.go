package site

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gaurav-prasanna/notepipe/core/assemble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addNote(t *testing.T, w *archive.Writer, meta core.Metadata, fragment string) {
	t.Helper()
	dir, err := w.Prepare(meta.GUID)
	require.NoError(t, err)
	_, err = w.WriteNote(meta.GUID, assemble.Document(meta.Title, fragment))
	require.NoError(t, err)
	_, err = w.WriteMetadata(meta.GUID, meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "a.jpg"), []byte("jpg"), 0o644))
}

func newSite(t *testing.T) (*Builder, Options) {
	t.Helper()
	base := t.TempDir()
	opts := Options{
		ArchiveRoot: filepath.Join(base, "articles"),
		ContentRoot: filepath.Join(base, "content"),
		OutputRoot:  filepath.Join(base, "output"),
		SiteURL:     "https://notes.example.com/",
		Title:       "Evernote Notes",
		Description: "Notes",
		Pagination:  2,
	}
	return New(opts), opts
}

func TestBuild(t *testing.T) {
	b, opts := newSite(t)
	w, err := archive.NewWriter(opts.ArchiveRoot)
	require.NoError(t, err)

	addNote(t, w, core.Metadata{
		GUID: "trip", Title: "Trip Notes", CreatedAt: "2024-03-01", Tags: []string{"travel"},
		Keywords: []string{"beach", "Travel"}, Sentiment: "positive", Author: "Ana",
	}, "<p>\n Day one\n</p>\n<p>\n <img src=\"images/a.jpg\"/>\n</p>\n"+
		"<a href=\"attachments/r.pdf\">\n Download r.pdf\n</a>\n<a href=\"https://example.com/images/x\">\n ext\n</a>\n")
	addNote(t, w, core.Metadata{GUID: "work", Title: "Work", CreatedAt: "2024-02-01"}, "<p>\n Plan\n</p>\n")
	addNote(t, w, core.Metadata{GUID: "old", Title: "Old", CreatedAt: "Unknown"}, "<p>\n Old\n</p>\n")

	// A folder with metadata but no note.html is skipped.
	_, err = w.Prepare("broken")
	require.NoError(t, err)
	_, err = w.WriteMetadata("broken", core.Metadata{GUID: "broken", Title: "Broken"})
	require.NoError(t, err)

	// Stale files in a previous archive copy are replaced.
	stale := filepath.Join(opts.OutputRoot, ArticlesDir, "gone", "note.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	stats, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Articles: 3, Pages: 2, Skipped: 1}, stats)

	content, err := os.ReadFile(filepath.Join(opts.ContentRoot, "trip.html"))
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "<title>Trip Notes</title>")
	assert.Contains(t, text, `<meta name="tags" content="travel, beach, positive">`)
	assert.Contains(t, text, `<meta name="date" content="2024-03-01">`)
	assert.Contains(t, text, `<meta name="author" content="Ana">`)
	assert.Contains(t, text, `<meta name="category" content="Evernote Notes">`)
	assert.Contains(t, text, `<meta name="status" content="published">`)
	assert.Contains(t, text, `<meta name="summary" content="Day one Download r.pdf ext">`)
	assert.Contains(t, text, `src="/articles/trip/images/a.jpg"`)
	assert.Contains(t, text, `href="/articles/trip/attachments/r.pdf"`)
	assert.Contains(t, text, `href="https://example.com/images/x"`)

	old, err := os.ReadFile(filepath.Join(opts.ContentRoot, "old.html"))
	require.NoError(t, err)
	assert.NotContains(t, string(old), `name="date"`)
	assert.Contains(t, string(old), `<meta name="author" content="Unknown Author">`)

	assert.FileExists(t, filepath.Join(opts.OutputRoot, ArticlesDir, "trip", "images", "a.jpg"))
	assert.FileExists(t, filepath.Join(opts.OutputRoot, ArticlesDir, "trip", "metadata.json"))
	assert.NoFileExists(t, stale)

	index, err := os.ReadFile(filepath.Join(opts.OutputRoot, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), `href="/trip.html"`)
	assert.Contains(t, string(index), `href="/work.html"`)
	assert.NotContains(t, string(index), `href="/old.html"`)
	assert.Contains(t, string(index), `href="/index2.html"`)

	page2, err := os.ReadFile(filepath.Join(opts.OutputRoot, "index2.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page2), `href="/old.html"`)
	assert.Contains(t, string(page2), `href="/index.html">Newer`)

	article, err := os.ReadFile(filepath.Join(opts.OutputRoot, "trip.html"))
	require.NoError(t, err)
	assert.Contains(t, string(article), `src="/articles/trip/images/a.jpg"`)

	rss, err := os.ReadFile(filepath.Join(opts.OutputRoot, "feeds", "all.rss.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(rss), "https://notes.example.com/trip.html")
	assert.Equal(t, 3, strings.Count(string(rss), "<item>"))

	sitemap, err := os.ReadFile(filepath.Join(opts.OutputRoot, "sitemap.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(sitemap), "<loc>https://notes.example.com/index2.html</loc>")
	assert.Contains(t, string(sitemap), "<lastmod>2024-03-01</lastmod>")
}

func TestBuildEmptyArchive(t *testing.T) {
	b, opts := newSite(t)

	stats, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 1}, stats)
	assert.FileExists(t, filepath.Join(opts.OutputRoot, "index.html"))
	assert.DirExists(t, filepath.Join(opts.OutputRoot, ArticlesDir))
}

func TestBuildUsesFolderName(t *testing.T) {
	b, opts := newSite(t)
	w, err := archive.NewWriter(opts.ArchiveRoot)
	require.NoError(t, err)

	dir, err := w.Prepare("folder-a")
	require.NoError(t, err)
	_, err = w.WriteNote("folder-a", assemble.Document("Moved", "<p>\n Moved\n</p>\n<img src=\"images/a.jpg\"/>\n"))
	require.NoError(t, err)
	_, err = w.WriteMetadata("folder-a", core.Metadata{GUID: "other-id", Title: "Moved", CreatedAt: "2024-01-01"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "a.jpg"), []byte("jpg"), 0o644))

	stats, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Articles: 1, Pages: 1}, stats)
	assert.FileExists(t, filepath.Join(opts.ContentRoot, "folder-a.html"))
	assert.NoFileExists(t, filepath.Join(opts.ContentRoot, "other-id.html"))

	content, err := os.ReadFile(filepath.Join(opts.ContentRoot, "folder-a.html"))
	require.NoError(t, err)
	assert.Contains(t, string(content), ArticlesDir+"/folder-a/images/a.jpg")
}

func TestBuildPagination(t *testing.T) {
	b, opts := newSite(t)
	w, err := archive.NewWriter(opts.ArchiveRoot)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		addNote(t, w, core.Metadata{GUID: fmt.Sprintf("n%d", i), Title: "N", CreatedAt: fmt.Sprintf("2024-01-0%d", i+1)}, "<p>x</p>")
	}

	stats, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pages)
	assert.FileExists(t, filepath.Join(opts.OutputRoot, "index3.html"))
	assert.NoFileExists(t, filepath.Join(opts.OutputRoot, "index4.html"))
}

func TestPublishedTags(t *testing.T) {
	got := PublishedTags(core.Metadata{
		Tags:      []string{"Go", " web "},
		Keywords:  []string{"go", "server", ""},
		Sentiment: "neutral",
	})
	assert.Equal(t, []string{"Go", "web", "server", "neutral"}, got)
	assert.Empty(t, PublishedTags(core.Metadata{}))
}

func TestIsArchiveRelative(t *testing.T) {
	for href, want := range map[string]bool{
		"images/a.jpg":             true,
		"attachments/b c.pdf":      true,
		"images/../../etc/passwd":  false,
		"/images/a.jpg":            false,
		"https://x.y/images/a.jpg": false,
		"//x.y/images/a.jpg":       false,
		"#images/a":                false,
		"mailto:images/a":          false,
		"other/a.jpg":              false,
		"":                         false,
	} {
		assert.Equal(t, want, IsArchiveRelative(href), href)
	}
}

func TestRewriteLinks(t *testing.T) {
	out, err := RewriteLinks(`<p><img src="images/a.jpg"/><a href="attachments/r.pdf#p2">r</a><a href="notes.html">n</a></p>`, "g1")
	require.NoError(t, err)
	assert.Equal(t, `<p><img src="/articles/g1/images/a.jpg"/><a href="/articles/g1/attachments/r.pdf#p2">r</a><a href="notes.html">n</a></p>`, out)
}

func TestPageName(t *testing.T) {
	assert.Equal(t, "index.html", PageName(1))
	assert.Equal(t, "index2.html", PageName(2))
}
