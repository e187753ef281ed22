// Package assemble wraps a cleaned note fragment in a minimal HTML document.
package assemble

import (
	"strings"

	"golang.org/x/net/html"
)

// Document returns a UTF-8 HTML5 document titled title whose body is
// fragment. It has no side effects; identical inputs give identical output.
func Document(title, fragment string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString("<html lang=\"en\">\n")
	b.WriteString("<head>\n")
	b.WriteString("    <meta charset=\"utf-8\">\n")
	b.WriteString("    <title>" + html.EscapeString(strings.TrimSpace(title)) + "</title>\n")
	b.WriteString("</head>\n")
	b.WriteString("<body>\n")
	b.WriteString(fragment)
	if fragment != "" && !strings.HasSuffix(fragment, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("</body>\n")
	b.WriteString("</html>\n")
	return b.String()
}
