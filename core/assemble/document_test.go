package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocument(t *testing.T) {
	got := Document(" Trip Notes ", "<p>\n hi\n</p>\n")

	want := "<!DOCTYPE html>\n" +
		"<html lang=\"en\">\n" +
		"<head>\n" +
		"    <meta charset=\"utf-8\">\n" +
		"    <title>Trip Notes</title>\n" +
		"</head>\n" +
		"<body>\n" +
		"<p>\n hi\n</p>\n" +
		"</body>\n" +
		"</html>\n"
	assert.Equal(t, want, got)
}

func TestDocumentEscapesTitle(t *testing.T) {
	got := Document(`Q&A <draft>`, "")
	assert.Contains(t, got, "<title>Q&amp;A &lt;draft&gt;</title>")
	assert.Contains(t, got, "<body>\n</body>")
}
