package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	html := "<h1>\n Trip\n</h1>\n<p>\n Day <b>one</b>\n</p>\n<p>\n <img src=\"images/a.jpg\"/>\n</p>\n" +
		"<a href=\"attachments/r.pdf\">\n Download r.pdf\n</a>\n"

	md, err := New().Normalize(html)
	require.NoError(t, err)

	assert.Contains(t, md, "# Trip")
	assert.Contains(t, md, "**one**")
	assert.Contains(t, md, "](images/a.jpg)")
	assert.Contains(t, md, "](attachments/r.pdf)")
	assert.Equal(t, byte('\n'), md[len(md)-1])
	assert.NotEqual(t, byte('\n'), md[len(md)-2])
}

func TestNormalizeTodos(t *testing.T) {
	md, err := New().Normalize("<p>☑ Done</p><p>☐ Open</p>")
	require.NoError(t, err)
	assert.Contains(t, md, "[x] Done")
	assert.Contains(t, md, "[ ] Open")
}

func TestNormalizeBlank(t *testing.T) {
	md, err := New().Normalize("  \n")
	require.NoError(t, err)
	assert.Empty(t, md)
}
