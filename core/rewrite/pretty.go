package rewrite

import (
	"strings"

	"golang.org/x/net/html"
)

// voidElements never have children or a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// verbatimElements keep their inner whitespace.
var verbatimElements = map[string]bool{
	"pre": true, "textarea": true,
}

// Pretty renders the children of root one tag per line with a single space
// of indentation per nesting level. Text is trimmed, runs of ASCII
// whitespace collapse to one space, and non-breaking spaces are written as
// &nbsp;. The output is stable for a given tree.
func Pretty(root *html.Node) string {
	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		writeNode(&b, c, 0)
	}
	return b.String()
}

func writeNode(b *strings.Builder, n *html.Node, depth int) {
	indent := strings.Repeat(" ", depth)

	switch n.Type {
	case html.TextNode:
		text := collapseSpace(n.Data)
		if text == "" {
			return
		}
		b.WriteString(indent)
		b.WriteString(escapeText(text))
		b.WriteByte('\n')

	case html.ElementNode:
		b.WriteString(indent)
		writeStartTag(b, n)
		if voidElements[n.Data] {
			b.WriteByte('\n')
			return
		}
		if verbatimElements[n.Data] {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				_ = html.Render(b, c)
			}
			b.WriteString("</" + n.Data + ">\n")
			return
		}
		b.WriteByte('\n')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(b, c, depth+1)
		}
		b.WriteString(indent)
		b.WriteString("</" + n.Data + ">\n")
	}
}

func writeStartTag(b *strings.Builder, n *html.Node) {
	b.WriteByte('<')
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		b.WriteByte(' ')
		if a.Namespace != "" {
			b.WriteString(a.Namespace)
			b.WriteByte(':')
		}
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
	if voidElements[n.Data] {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\u00a0", "&nbsp;")
}

// collapseSpace trims ASCII whitespace and collapses inner runs of it.
func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
