package source

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pixel = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func enexDocument(notes ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<!DOCTYPE en-export SYSTEM "http://xml.evernote.com/pub/evernote-export3.dtd">` +
		`<en-export export-date="20240301T120000Z" application="Evernote" version="10">`
	for _, n := range notes {
		out += n
	}
	return out + `</en-export>`
}

func tripNote() string {
	data := base64.StdEncoding.EncodeToString(pixel)
	sum := md5.Sum(pixel)
	return `<note><title>Trip Notes</title>` +
		`<content><![CDATA[<?xml version="1.0" encoding="UTF-8"?><en-note><div>Day one</div>` +
		`<en-media hash="` + hex.EncodeToString(sum[:]) + `" type="image/jpeg"/></en-note>]]></content>` +
		`<created>20240301T101500Z</created><updated>20240302T080000Z</updated>` +
		`<tag>travel</tag><tag> 2024 </tag>` +
		`<note-attributes><author>Ana</author><source-url>https://example.com/trip</source-url></note-attributes>` +
		`<resource><data encoding="base64">` + data[:8] + "\n  " + data[8:] + `</data><mime>image/jpeg</mime>` +
		`<resource-attributes><file-name>beach.jpg</file-name></resource-attributes></resource>` +
		`<resource><data encoding="base64">` + data + `</data><mime>image/jpeg</mime></resource>` +
		`</note>`
}

func writeExport(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestOpenENEXFile(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "Travel.enex", enexDocument(tripNote()))

	src, err := OpenENEX(context.Background(), path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	notebooks, err := src.ListNotebooks(ctx)
	require.NoError(t, err)
	require.Len(t, notebooks, 1)
	assert.Equal(t, "Travel", notebooks[0].Name)

	refs, err := src.ListNotes(ctx, notebooks[0].GUID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Trip Notes", refs[0].Title)

	note, err := src.GetNote(ctx, refs[0].GUID)
	require.NoError(t, err)
	assert.Equal(t, "Trip Notes", note.Title)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC), note.Created)
	assert.Equal(t, []string{"travel", "2024"}, note.TagNames)
	assert.Equal(t, "Ana", note.Author)
	assert.Equal(t, "https://example.com/trip", note.SourceURL)
	assert.Contains(t, note.Content, "<en-media")

	// The duplicate resource body collapses to one entry.
	require.Len(t, note.Resources, 1)
	res := note.Resources[0]
	sum := md5.Sum(pixel)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Hash)
	assert.Equal(t, "image/jpeg", res.MIME)
	assert.Equal(t, "beach.jpg", res.FileName)
	assert.Equal(t, note.GUID, res.NoteGUID)
	assert.Equal(t, len(pixel), res.Size)

	data, err := src.GetResource(ctx, res.GUID)
	require.NoError(t, err)
	assert.Equal(t, pixel, data.Body)
	assert.Equal(t, "image/jpeg", data.MIME)
}

func TestOpenENEXIdentifiersAreStable(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "Travel.enex", enexDocument(tripNote()))

	first, err := OpenENEX(context.Background(), path, nil)
	require.NoError(t, err)
	second, err := OpenENEX(context.Background(), path, nil)
	require.NoError(t, err)

	assert.Equal(t, first.notebooks, second.notebooks)
	assert.Equal(t, first.refs, second.refs)
}

func TestOpenENEXDirectory(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "b/Work.enex", enexDocument(`<note><title>Plan</title><content>x</content></note>`))
	writeExport(t, dir, "Home.enex", enexDocument(
		`<note><title>Same</title><created>20240101T000000Z</created><content>1</content></note>`,
		`<note><title>Same</title><created>20240101T000000Z</created><content>2</content></note>`,
	))
	writeExport(t, dir, "notes.txt", "ignored")

	src, err := OpenENEX(context.Background(), dir, nil)
	require.NoError(t, err)

	notebooks, err := src.ListNotebooks(context.Background())
	require.NoError(t, err)
	require.Len(t, notebooks, 2)
	assert.Equal(t, "Home", notebooks[0].Name)
	assert.Equal(t, "Work", notebooks[1].Name)

	refs, err := src.ListNotes(context.Background(), notebooks[0].GUID)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.NotEqual(t, refs[0].GUID, refs[1].GUID)

	work, err := src.ListNotes(context.Background(), notebooks[1].GUID)
	require.NoError(t, err)
	require.Len(t, work, 1)
	note, err := src.GetNote(context.Background(), work[0].GUID)
	require.NoError(t, err)
	assert.True(t, note.Created.IsZero())
}

func TestOpenENEXErrors(t *testing.T) {
	_, err := OpenENEX(context.Background(), filepath.Join(t.TempDir(), "missing.enex"), nil)
	assert.Error(t, err)

	_, err = OpenENEX(context.Background(), t.TempDir(), nil)
	assert.Error(t, err)
}

func TestENEXSourceNotFound(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "Travel.enex", enexDocument(tripNote()))
	src, err := OpenENEX(context.Background(), path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = src.ListNotes(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = src.GetNote(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = src.GetResource(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	tags, err := src.ListTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestENEXGetNoteReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "Travel.enex", enexDocument(tripNote()))
	src, err := OpenENEX(context.Background(), path, nil)
	require.NoError(t, err)

	refs, err := src.ListNotes(context.Background(), src.notebooks[0].GUID)
	require.NoError(t, err)

	note, err := src.GetNote(context.Background(), refs[0].GUID)
	require.NoError(t, err)
	note.Title = "changed"
	note.TagNames[0] = "changed"

	again, err := src.GetNote(context.Background(), refs[0].GUID)
	require.NoError(t, err)
	assert.Equal(t, "Trip Notes", again.Title)
	assert.Equal(t, "travel", again.TagNames[0])
}
