// Package materialize writes note resources into a note folder.
// Images go to images/, everything else to attachments/. Filenames come
// from the declared resource name when present, else from the resource
// identifier plus an extension derived from the MIME type.
package materialize

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/archive"
)

// MaxFilenameLength bounds sanitized filenames, in characters.
const MaxFilenameLength = 80

// MaxFilenameBytes bounds the UTF-8 length of a stored filename, collision
// suffix included. Most filesystems reject names above 255 bytes.
const MaxFilenameBytes = 255

// defaultExtension is used when a MIME type has no usable subtype.
const defaultExtension = "bin"

// extensionByMIME covers types whose subtype is not a usable extension.
var extensionByMIME = map[string]string{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"application/msword":       "doc",
	"application/vnd.ms-excel": "xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",
	"application/vnd.ms-powerpoint":                                             "ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"image/jpeg":    "jpg",
	"image/svg+xml": "svg",
	"text/plain":    "txt",
	"audio/mpeg":    "mp3",
}

// Materializer writes the resources of one note. Names are claimed in call
// order, so the same sequence of resources always yields the same files.
type Materializer struct {
	noteDir string
	byHash  map[string]string // hash -> relative path
	claimed map[string]string // lowercase relative path -> hash
}

// New creates a Materializer for the note folder noteDir. The images/ and
// attachments/ folders must already exist (see archive.Writer.Prepare).
func New(noteDir string) *Materializer {
	return &Materializer{
		noteDir: noteDir,
		byHash:  make(map[string]string),
		claimed: make(map[string]string),
	}
}

// Lookup returns the relative path already written for hash, if any.
func (m *Materializer) Lookup(hash string) (string, bool) {
	p, ok := m.byHash[strings.ToLower(hash)]
	return p, ok
}

// Materialize writes data for res and returns its path relative to the
// note folder, e.g. "images/photo.jpg". mimeType overrides res.MIME when
// non-empty; when both are empty the type is sniffed from data.
func (m *Materializer) Materialize(res core.Resource, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("resource %s: %w", res.GUID, core.ErrEmptyResource)
	}
	hash := strings.ToLower(res.Hash)
	if rel, ok := m.byHash[hash]; ok && hash != "" {
		return rel, nil
	}

	mediaType := baseMediaType(firstNonEmpty(mimeType, res.MIME))
	if mediaType == "" {
		mediaType = baseMediaType(mimetype.Detect(data).String())
	}

	dir := archive.AttachmentsDir
	if IsImage(mediaType) {
		dir = archive.ImagesDir
	}

	name := SanitizeFilename(res.FileName)
	if name == "" {
		id := SanitizeFilename(firstNonEmpty(res.GUID, hash, "resource"))
		name = truncate(id+"."+Extension(mediaType), MaxFilenameLength, MaxFilenameBytes)
	}
	rel := m.claim(dir, name, hash)

	target := filepath.Join(m.noteDir, filepath.FromSlash(rel))
	if err := archive.WriteFileAtomic(target, data, 0644); err != nil {
		return "", fmt.Errorf("writing resource %s: %w", rel, err)
	}

	if hash != "" {
		m.byHash[hash] = rel
	}
	return rel, nil
}

// claim reserves a relative path for hash, appending -2, -3, ... to the
// stem when a different resource already holds the name.
func (m *Materializer) claim(dir, name, hash string) string {
	stem, ext := splitExt(name)
	candidate := path.Join(dir, name)
	for n := 2; ; n++ {
		key := strings.ToLower(candidate)
		owner, taken := m.claimed[key]
		if !taken || (hash != "" && owner == hash) {
			m.claimed[key] = hash
			return candidate
		}
		suffix := "-" + strconv.Itoa(n)
		room := MaxFilenameLength - utf8.RuneCountInString(suffix+ext)
		byteRoom := MaxFilenameBytes - len(suffix+ext)
		if room < 1 || byteRoom < 1 {
			// Extension too long to keep; suffix the whole name instead.
			candidate = path.Join(dir, truncate(name, MaxFilenameLength-len(suffix), MaxFilenameBytes-len(suffix))+suffix)
			continue
		}
		candidate = path.Join(dir, truncate(stem, room, byteRoom)+suffix+ext)
	}
}

// IsImage reports whether mediaType is stored under images/.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}

// Extension returns the file extension (without dot) for a MIME type.
// Types without a subtype fall back to "bin".
func Extension(mediaType string) string {
	mediaType = baseMediaType(mediaType)
	if ext, ok := extensionByMIME[mediaType]; ok {
		return ext
	}

	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok {
		return defaultExtension
	}
	subtype, _, _ = strings.Cut(subtype, "+")
	ext := SanitizeFilename(subtype)
	if ext == "" {
		return defaultExtension
	}
	return ext
}

// SanitizeFilename strips path-hostile characters (< > : " / \ | ? * and
// control characters), replaces whitespace with underscores, drops leading
// dots and truncates to MaxFilenameLength characters and MaxFilenameBytes
// bytes.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('_')
		case unicode.IsControl(r) || r == utf8.RuneError:
			continue
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimLeft(b.String(), ".")
	return truncate(cleaned, MaxFilenameLength, MaxFilenameBytes)
}

func baseMediaType(mediaType string) string {
	mediaType, _, _ = strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func splitExt(name string) (string, string) {
	ext := path.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}

// truncate cuts s on a rune boundary so that it holds at most maxRunes
// runes and maxBytes bytes.
func truncate(s string, maxRunes, maxBytes int) string {
	if maxRunes <= 0 || maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes && utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := 0
	for i, r := range s {
		if runes == maxRunes || i+utf8.RuneLen(r) > maxBytes {
			return s[:i]
		}
		runes++
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
