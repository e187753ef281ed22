// Package rewrite turns raw note markup (ENML) into a clean HTML fragment.
//
// The pipeline, in order:
//  1. Replace en-media placeholders with <img> or <a> elements pointing at
//     materialized files; drop placeholders that cannot be resolved.
//  2. Unwrap the en-note root so its children form the fragment.
//  3. Remove non-content elements and presentational attributes.
//  4. Turn divs without block-level descendants into paragraphs.
//  5. Prune paragraphs and headings that hold only whitespace or <br>.
//
// Every step collects the nodes it touches before mutating the tree.
package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gaurav-prasanna/notepipe/core"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ResolveFunc fetches and materializes a resource, returning its path
// relative to the note folder ("images/a.png", "attachments/b.pdf").
type ResolveFunc func(ctx context.Context, res core.Resource) (string, error)

// Result is the outcome of a rewrite.
type Result struct {
	HTML       string
	Resolved   int
	Unresolved int
}

// Rewriter normalizes note markup. It holds no per-note state and can be
// reused across notes.
type Rewriter struct {
	logger *slog.Logger
}

// New creates a Rewriter. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{logger: logger}
}

// selfClosing matches proprietary elements written in XML self-closing form,
// which an HTML parser would otherwise leave open.
var selfClosing = regexp.MustCompile(`(?is)<(en-media|en-todo|en-crypt)(\s[^>]*?)?\s*/>`)

// removedElements carry no authored content.
var removedElements = map[string]bool{
	"script": true, "style": true, "meta": true, "link": true,
}

// strippedAttributes are presentational or interactive. Any attribute
// starting with "on" is stripped as well.
var strippedAttributes = map[string]bool{
	"id": true, "class": true, "style": true, "rev": true,
}

// blockElements is the set of block-level elements used by the div
// reclassification step.
var blockElements = map[string]bool{
	"article": true, "aside": true, "blockquote": true, "div": true, "dl": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "noscript": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// prunable elements are removed when they hold nothing but whitespace and <br>.
var prunable = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// IndexResources keys resources by lowercase content hash.
func IndexResources(resources []core.Resource) map[string]core.Resource {
	index := make(map[string]core.Resource, len(resources))
	for _, res := range resources {
		if res.Hash == "" {
			continue
		}
		index[strings.ToLower(res.Hash)] = res
	}
	return index
}

// Rewrite normalizes raw and returns the pretty-printed fragment along with
// the number of resource references that could not be resolved.
func (r *Rewriter) Rewrite(ctx context.Context, raw string, index map[string]core.Resource, resolve ResolveFunc) (Result, error) {
	raw = selfClosing.ReplaceAllString(raw, "<$1$2></$1>")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("parsing note markup: %w", err)
	}

	root := doc.Find("en-note").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return Result{}, nil
	}
	rootNode := root.Get(0)

	var result Result
	if err := r.replaceMedia(ctx, rootNode, index, resolve, &result); err != nil {
		return Result{}, err
	}
	replaceTodos(rootNode)
	removeNodes(rootNode, func(n *html.Node) bool {
		if n.Type == html.CommentNode {
			return true
		}
		return n.Type == html.ElementNode && (removedElements[n.Data] || n.Data == "en-crypt")
	})
	stripAttributes(rootNode)
	reclassifyDivs(rootNode)
	pruneEmptyBlocks(rootNode)

	result.HTML = Pretty(rootNode)
	return result, nil
}

// replaceMedia swaps every en-media placeholder for an <img> or <a>.
func (r *Rewriter) replaceMedia(ctx context.Context, root *html.Node, index map[string]core.Resource, resolve ResolveFunc, result *Result) error {
	resolved := make(map[string]string) // hash -> relative path, "" when failed

	for _, media := range collect(root, isElement("en-media")) {
		if err := ctx.Err(); err != nil {
			return err
		}

		hash := strings.ToLower(strings.TrimSpace(attr(media, "hash")))
		rel, seen := resolved[hash]
		if !seen {
			rel = r.resolve(ctx, hash, index, resolve)
			resolved[hash] = rel
		}

		parent := media.Parent
		if rel == "" {
			parent.RemoveChild(media)
			result.Unresolved++
			continue
		}

		parent.InsertBefore(mediaElement(rel), media)
		parent.RemoveChild(media)
		result.Resolved++
	}
	return nil
}

func (r *Rewriter) resolve(ctx context.Context, hash string, index map[string]core.Resource, resolve ResolveFunc) string {
	if hash == "" {
		r.logger.Warn("media placeholder without hash")
		return ""
	}
	res, ok := index[hash]
	if !ok {
		r.logger.Warn("missing resource for hash", "hash", hash)
		return ""
	}
	if resolve == nil {
		return ""
	}
	rel, err := resolve(ctx, res)
	if err != nil {
		r.logger.Warn("skipping resource", "hash", hash, "resource", res.GUID, "error", err)
		return ""
	}
	return rel
}

// mediaElement builds the element that replaces a resolved placeholder.
func mediaElement(rel string) *html.Node {
	if strings.HasPrefix(rel, "images/") {
		return &html.Node{
			Type:     html.ElementNode,
			Data:     "img",
			DataAtom: atom.Img,
			Attr:     []html.Attribute{{Key: "src", Val: rel}},
		}
	}

	link := &html.Node{
		Type:     html.ElementNode,
		Data:     "a",
		DataAtom: atom.A,
		Attr:     []html.Attribute{{Key: "href", Val: rel}},
	}
	link.AppendChild(&html.Node{Type: html.TextNode, Data: "Download " + path.Base(rel)})
	return link
}

// replaceTodos turns en-todo checkboxes into plain ballot-box characters.
func replaceTodos(root *html.Node) {
	for _, todo := range collect(root, isElement("en-todo")) {
		mark := "☐ "
		if strings.EqualFold(attr(todo, "checked"), "true") {
			mark = "☑ "
		}
		todo.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: mark}, todo)
		todo.Parent.RemoveChild(todo)
	}
}

func stripAttributes(root *html.Node) {
	for _, n := range collect(root, func(n *html.Node) bool { return n.Type == html.ElementNode }) {
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			key := strings.ToLower(a.Key)
			if strippedAttributes[key] || strings.HasPrefix(key, "on") {
				continue
			}
			kept = append(kept, a)
		}
		n.Attr = kept
	}
}

// reclassifyDivs renames every div without a block-level descendant to p.
func reclassifyDivs(root *html.Node) {
	for _, div := range collect(root, isElement("div")) {
		if !hasBlockDescendant(div) {
			div.Data = "p"
			div.DataAtom = atom.P
		}
	}
}

func hasBlockDescendant(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && blockElements[c.Data] {
			return true
		}
		if hasBlockDescendant(c) {
			return true
		}
	}
	return false
}

// pruneEmptyBlocks removes empty paragraphs and headings until none remain.
func pruneEmptyBlocks(root *html.Node) {
	for {
		removed := removeNodes(root, func(n *html.Node) bool {
			return n.Type == html.ElementNode && prunable[n.Data] && isEmptyBlock(n)
		})
		if removed == 0 {
			return
		}
	}
}

func isEmptyBlock(n *html.Node) bool {
	if strings.TrimSpace(textContent(n)) != "" {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data != "br" {
			return false
		}
	}
	return true
}

// removeNodes detaches every descendant of root matching match and returns
// how many were removed. Matches nested in an already removed node are
// skipped.
func removeNodes(root *html.Node, match func(*html.Node) bool) int {
	nodes := collect(root, match)
	removed := 0
	for _, n := range nodes {
		if n.Parent == nil || !isDescendant(n, root) {
			continue
		}
		n.Parent.RemoveChild(n)
		removed++
	}
	return removed
}

// collect returns the descendants of root matching match, in document order.
func collect(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func isDescendant(n, root *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func isElement(name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
