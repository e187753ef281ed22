// Package site turns the archive into the input and output of a static
// site: one content file per note with its metadata as <meta> headers, and
// a rendered output tree with paginated index pages, article pages, an RSS
// feed, a sitemap and a copy of the archive under articles/.
package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gaurav-prasanna/notepipe/core/enrich"
	"github.com/gaurav-prasanna/notepipe/core/extract"
	"github.com/gaurav-prasanna/notepipe/core/output"
	"github.com/gorilla/feeds"
)

// Site generator defaults.
const (
	DefaultCategory     = "Evernote Notes"
	DefaultPagination   = 10
	SummaryMaxLength    = 50
	FeedPath            = "feeds/all.rss.xml"
	SitemapPath         = "sitemap.xml"
	publishedDateLayout = time.DateOnly
)

// Options configures a Builder.
type Options struct {
	ArchiveRoot string
	ContentRoot string
	OutputRoot  string

	SiteURL     string
	Title       string
	Description string
	Author      string // fallback when a note has none
	Category    string
	Pagination  int
	Location    *time.Location

	Logger *slog.Logger
}

// Stats reports what a build produced.
type Stats struct {
	Articles int
	Pages    int
	Skipped  int
}

// Article is one published note.
type Article struct {
	Slug      string
	Title     string
	Author    string
	Date      string
	Published time.Time
	Tags      []string
	Summary   string
	Category  string
	Body      template.HTML
}

// Builder generates the site from an archive.
type Builder struct {
	opts      Options
	reader    *archive.Reader
	extractor *extract.NoteExtractor
	logger    *slog.Logger
}

// New creates a Builder, filling defaults for empty options.
func New(opts Options) *Builder {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Category == "" {
		opts.Category = DefaultCategory
	}
	if opts.Pagination <= 0 {
		opts.Pagination = DefaultPagination
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Author == "" {
		opts.Author = archive.DefaultAuthor
	}
	opts.SiteURL = strings.TrimRight(opts.SiteURL, "/")

	return &Builder{
		opts:      opts,
		reader:    archive.NewReader(opts.ArchiveRoot, opts.Logger),
		extractor: extract.New(),
		logger:    opts.Logger,
	}
}

// Build writes the content root and the output tree. A note that cannot be
// read is skipped and counted; filesystem errors on the outputs are fatal.
func (b *Builder) Build(ctx context.Context) (Stats, error) {
	var stats Stats

	content, err := output.New(b.opts.ContentRoot)
	if err != nil {
		return stats, err
	}
	out, err := output.New(b.opts.OutputRoot)
	if err != nil {
		return stats, err
	}

	summaries, err := b.reader.ListNotes(ctx)
	if err != nil {
		return stats, err
	}

	articles := make([]Article, 0, len(summaries))
	for _, summary := range summaries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		article, err := b.article(summary.Folder)
		if err != nil {
			b.logger.Warn("skipping note", "folder", summary.Folder, "guid", summary.GUID, "error", err)
			stats.Skipped++
			continue
		}

		data, err := render(contentTemplate, article)
		if err != nil {
			return stats, err
		}
		if _, err := content.WriteNote(article.Slug, data, ".html"); err != nil {
			return stats, err
		}
		articles = append(articles, article)
	}
	stats.Articles = len(articles)

	if err := b.copyArchive(out); err != nil {
		return stats, err
	}

	pages, err := b.writePages(out, articles)
	if err != nil {
		return stats, err
	}
	stats.Pages = pages

	if err := b.writeFeed(out, articles); err != nil {
		return stats, err
	}
	if err := b.writeSitemap(out, articles, pages); err != nil {
		return stats, err
	}

	b.logger.Info("site built", "articles", stats.Articles, "pages", stats.Pages, "skipped", stats.Skipped)
	return stats, nil
}

// article reads one note folder and prepares it for publishing. The
// folder name, not the guid recorded in metadata.json, keys every path.
func (b *Builder) article(folder string) (Article, error) {
	meta, err := b.reader.ReadMetadata(folder)
	if err != nil {
		return Article{}, err
	}
	notePath, err := b.reader.NotePath(folder)
	if err != nil {
		return Article{}, err
	}
	document, err := os.ReadFile(notePath)
	if err != nil {
		return Article{}, fmt.Errorf("reading note: %w", err)
	}

	body, err := b.extractor.Body(string(document))
	if err != nil {
		return Article{}, err
	}
	body, err = RewriteLinks(body, folder)
	if err != nil {
		return Article{}, err
	}

	summary := strings.TrimSpace(meta.Summary)
	if summary == "" {
		text, err := b.extractor.Text(body)
		if err != nil {
			return Article{}, err
		}
		summary = enrich.Summarize(text, SummaryMaxLength)
	}
	if summary == "" {
		summary = archive.DefaultSummary
	}

	a := Article{
		Slug:     folder,
		Title:    firstNonEmpty(meta.Title, archive.DefaultTitle),
		Author:   firstNonEmpty(meta.Author, b.opts.Author),
		Tags:     PublishedTags(meta),
		Summary:  summary,
		Category: b.opts.Category,
		Body:     template.HTML(body),
	}
	if t, err := time.ParseInLocation(publishedDateLayout, meta.CreatedAt, b.opts.Location); err == nil {
		a.Date = meta.CreatedAt
		a.Published = t
	}
	return a, nil
}

// PublishedTags merges tags, keywords and the sentiment label, dropping
// case-insensitive duplicates and keeping first occurrences.
func PublishedTags(meta core.Metadata) []string {
	all := make([]string, 0, len(meta.Tags)+len(meta.Keywords)+1)
	all = append(all, meta.Tags...)
	all = append(all, meta.Keywords...)
	all = append(all, meta.Sentiment)

	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, tag := range all {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

// copyArchive replaces <output>/articles with a fresh copy of the archive.
func (b *Builder) copyArchive(out *output.Writer) error {
	dst := out.Path(ArticlesDir)
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("removing previous archive copy: %w", err)
	}
	if _, err := os.Stat(b.opts.ArchiveRoot); os.IsNotExist(err) {
		return os.MkdirAll(dst, 0755)
	}
	if err := os.CopyFS(dst, os.DirFS(b.opts.ArchiveRoot)); err != nil {
		return fmt.Errorf("copying archive: %w", err)
	}
	return nil
}

type indexPage struct {
	PageTitle string
	SiteTitle string
	Articles  []Article
	Page      int
	Pages     int
	Prev      string
	Next      string
}

type articlePage struct {
	PageTitle string
	SiteTitle string
	Article   Article
}

// PageName is the file name of index page n (1-based).
func PageName(n int) string {
	if n <= 1 {
		return "index.html"
	}
	return fmt.Sprintf("index%d.html", n)
}

func (b *Builder) writePages(out *output.Writer, articles []Article) (int, error) {
	for _, a := range articles {
		data, err := render(articleTemplate, articlePage{
			PageTitle: a.Title + " - " + b.opts.Title,
			SiteTitle: b.opts.Title,
			Article:   a,
		})
		if err != nil {
			return 0, err
		}
		if _, err := out.WriteNote(a.Slug, data, ".html"); err != nil {
			return 0, err
		}
	}

	per := b.opts.Pagination
	pages := (len(articles) + per - 1) / per
	if pages == 0 {
		pages = 1
	}
	for n := 1; n <= pages; n++ {
		start := (n - 1) * per
		end := min(start+per, len(articles))

		page := indexPage{
			PageTitle: b.opts.Title,
			SiteTitle: b.opts.Title,
			Articles:  articles[start:end],
			Page:      n,
			Pages:     pages,
		}
		if n > 1 {
			page.Prev = PageName(n - 1)
		}
		if n < pages {
			page.Next = PageName(n + 1)
		}

		data, err := render(indexTemplate, page)
		if err != nil {
			return 0, err
		}
		if _, err := out.Write(PageName(n), data); err != nil {
			return 0, err
		}
	}
	return pages, nil
}

func (b *Builder) writeFeed(out *output.Writer, articles []Article) error {
	feed := &feeds.Feed{
		Title:       b.opts.Title,
		Link:        &feeds.Link{Href: b.opts.SiteURL + "/"},
		Description: b.opts.Description,
	}
	for _, a := range articles {
		link := b.opts.SiteURL + "/" + a.Slug + ".html"
		item := &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: link},
			Author:      &feeds.Author{Name: a.Author},
			Description: a.Summary,
			Id:          link,
			Created:     a.Published,
		}
		if feed.Updated.Before(a.Published) {
			feed.Updated = a.Published
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return fmt.Errorf("rendering rss: %w", err)
	}
	_, err = out.Write(FeedPath, []byte(rss))
	return err
}

func (b *Builder) writeSitemap(out *output.Writer, articles []Article, pages int) error {
	urls := make([]sitemapURL, 0, pages+len(articles))
	for n := 1; n <= pages; n++ {
		urls = append(urls, sitemapURL{Loc: b.opts.SiteURL + "/" + PageName(n)})
	}
	for _, a := range articles {
		urls = append(urls, sitemapURL{Loc: b.opts.SiteURL + "/" + a.Slug + ".html", LastMod: a.Date})
	}

	data, err := renderSitemap(urls)
	if err != nil {
		return err
	}
	_, err = out.Write(SitemapPath, data)
	return err
}

func render(tmpl *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", tmpl.Name(), err)
	}
	return buf.Bytes(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
