package site

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gaurav-prasanna/notepipe/core/archive"
)

// ArticlesDir is where the archive copy lives inside the site output.
const ArticlesDir = "articles"

// IsArchiveRelative reports whether href points into a note folder
// (images/ or attachments/) rather than at another site, an absolute path,
// a fragment or a non-HTTP scheme.
func IsArchiveRelative(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "/") {
		return false
	}

	parsed, err := url.Parse(href)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return false
	}

	clean := path.Clean(parsed.Path)
	return strings.HasPrefix(clean, archive.ImagesDir+"/") || strings.HasPrefix(clean, archive.AttachmentsDir+"/")
}

// ArticlePath maps an archive-relative link of note folder to its location
// in the site: images/x becomes /articles/<folder>/images/x.
func ArticlePath(folder, href string) string {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	parsed.Path = "/" + path.Join(ArticlesDir, folder, path.Clean(parsed.Path))
	return parsed.String()
}

// RewriteLinks rewrites the archive-relative img src and a href values of
// a note body fragment to their site locations. Other links are untouched.
func RewriteLinks(fragment, folder string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + fragment + "</body>"))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	rewrite := func(attr string) func(int, *goquery.Selection) {
		return func(_ int, s *goquery.Selection) {
			value, exists := s.Attr(attr)
			if !exists || !IsArchiveRelative(value) {
				return
			}
			s.SetAttr(attr, ArticlePath(folder, value))
		}
	}
	doc.Find("img[src]").Each(rewrite("src"))
	doc.Find("a[href]").Each(rewrite("href"))

	out, err := doc.Find("body").First().Html()
	if err != nil {
		return "", fmt.Errorf("serializing body: %w", err)
	}
	return out, nil
}
