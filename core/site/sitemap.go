package site

import (
	"encoding/xml"
	"fmt"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// sitemapURL holds one page of the sitemap.
type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// sitemapIndex is the root element of sitemap.xml.
type sitemapIndex struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func renderSitemap(urls []sitemapURL) ([]byte, error) {
	body, err := xml.MarshalIndent(sitemapIndex{XMLNS: sitemapNamespace, URLs: urls}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling sitemap: %w", err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}
