package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteNote(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	path, err := w.WriteNote("note-1", []byte("# hi\n"), ".md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.OutputDir, "note-1.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# hi\n", string(data))

	_, err = w.WriteNote("../escape", []byte("x"), ".md")
	assert.Error(t, err)
}

func TestWriteNested(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	path, err := w.Write("feeds/all.rss.xml", []byte("<rss/>"))
	require.NoError(t, err)
	assert.Equal(t, w.Path("feeds/all.rss.xml"), path)
	assert.FileExists(t, path)

	_, err = w.Write("../outside.html", []byte("x"))
	assert.Error(t, err)
	_, err = w.Write("/abs.html", []byte("x"))
	assert.Error(t, err)
}
