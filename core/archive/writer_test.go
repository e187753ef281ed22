package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterPrepareCreatesLayout(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "articles"))
	require.NoError(t, err)

	dir, err := w.Prepare("note-1")
	require.NoError(t, err)

	for _, sub := range []string{ImagesDir, AttachmentsDir} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Preparing again keeps existing resource files.
	keep := filepath.Join(dir, ImagesDir, "a.png")
	require.NoError(t, os.WriteFile(keep, []byte("png"), 0644))
	_, err = w.Prepare("note-1")
	require.NoError(t, err)
	assert.FileExists(t, keep)
}

func TestWriterRejectsEscapingIDs(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", ".", "..", "../x", "a/b", `a\b`} {
		_, err := w.Prepare(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestWriteMetadata(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	_, err = w.Prepare("g1")
	require.NoError(t, err)

	path, err := w.WriteMetadata("g1", core.Metadata{Title: "Trip Notes", GUID: "g1", CreatedAt: "2024-05-01"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "Trip Notes"`)
	assert.Contains(t, string(data), `"tags": []`)
	assert.NotContains(t, string(data), "author")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "g1", decoded["guid"])
}

func TestWriteNote(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	_, err = w.Prepare("g1")
	require.NoError(t, err)

	path, err := w.WriteNote("g1", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Root, "g1", NoteFile), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(got))
}
