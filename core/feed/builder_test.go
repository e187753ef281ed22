package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNote(t *testing.T, root, id string, modified time.Time) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "note.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))
	require.NoError(t, os.Chtimes(path, modified, modified))
}

func newBuilder(root string) *Builder {
	return New(root, Channel{
		Title:       "My Evernote RSS Feed",
		Link:        "http://localhost:5000/",
		Description: "Latest notes",
	}, nil)
}

func TestBuildKeepsTenNewest(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		writeNote(t, root, fmt.Sprintf("note_%02d", i), base.Add(time.Duration(i)*time.Hour))
	}
	// Folders without note.html are ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	feed, err := newBuilder(root).Build(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, feed.Items, 10)

	for i, item := range feed.Items {
		id := fmt.Sprintf("note_%02d", 11-i)
		link := "http://localhost:5000/note/" + id + "/note.html"
		assert.Equal(t, fmt.Sprintf("note %02d", 11-i), item.Title)
		assert.Equal(t, link, item.Link.Href)
		assert.Equal(t, "Read the full note: "+link, item.Description)
		assert.True(t, item.Created.Equal(base.Add(time.Duration(11-i)*time.Hour)))
	}
	assert.True(t, feed.Updated.Equal(base.Add(11*time.Hour)))
}

func TestBuildBreaksTiesByIdentifier(t *testing.T) {
	root := t.TempDir()
	same := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	writeNote(t, root, "b", same)
	writeNote(t, root, "a", same)
	writeNote(t, root, "c", same.Add(-time.Minute))

	feed, err := newBuilder(root).Build(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, feed.Items, 3)
	assert.Equal(t, "a", feed.Items[0].Title)
	assert.Equal(t, "b", feed.Items[1].Title)
	assert.Equal(t, "c", feed.Items[2].Title)
}

func TestBuildUsesLocation(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "n", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	loc := time.FixedZone("UTC+2", 2*60*60)
	b := New(root, Channel{Title: "t", Link: "http://x", Location: loc}, nil)
	feed, err := b.Build(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, 2, feed.Items[0].Created.Hour())
}

func TestRSS(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "trip_notes", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	rss, err := newBuilder(root).RSS(context.Background(), 10)
	require.NoError(t, err)
	assert.Contains(t, rss, `<rss version="2.0"`)
	assert.Contains(t, rss, "<title>My Evernote RSS Feed</title>")
	assert.Contains(t, rss, "<title>trip notes</title>")
	assert.Contains(t, rss, "http://localhost:5000/note/trip_notes/note.html")
	assert.Contains(t, rss, "Read the full note: http://localhost:5000/note/trip_notes/note.html")
}

func TestBuildMissingRoot(t *testing.T) {
	feed, err := newBuilder(filepath.Join(t.TempDir(), "missing")).Build(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, feed.Items)

	rss, err := newBuilder(filepath.Join(t.TempDir(), "missing")).RSS(context.Background(), 10)
	require.NoError(t, err)
	assert.Contains(t, rss, "<channel>")
}
