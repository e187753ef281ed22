// Package feed publishes the most recently written notes of an archive as
// an RSS 2.0 document.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gorilla/feeds"
)

// DefaultItems is the entry count used when maxItems is not positive.
const DefaultItems = 10

// Channel describes the feed itself.
type Channel struct {
	Title       string
	Link        string // site base URL
	Description string
	Location    *time.Location
}

// Builder reads note folders under Root.
type Builder struct {
	Root    string
	Channel Channel
	logger  *slog.Logger
}

// New creates a Builder. A nil Location means UTC.
func New(root string, channel Channel, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if channel.Location == nil {
		channel.Location = time.UTC
	}
	channel.Link = strings.TrimRight(channel.Link, "/")
	return &Builder{Root: root, Channel: channel, logger: logger}
}

type candidate struct {
	id       string
	modified time.Time
}

// Build collects up to maxItems folders holding a note.html, newest
// modification time first, ties broken by identifier.
func (b *Builder) Build(ctx context.Context, maxItems int) (*feeds.Feed, error) {
	if maxItems <= 0 {
		maxItems = DefaultItems
	}

	candidates, err := b.candidates(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].modified.Equal(candidates[j].modified) {
			return candidates[i].modified.After(candidates[j].modified)
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > maxItems {
		candidates = candidates[:maxItems]
	}

	feed := &feeds.Feed{
		Title:       b.Channel.Title,
		Link:        &feeds.Link{Href: b.Channel.Link},
		Description: b.Channel.Description,
	}
	if len(candidates) > 0 {
		feed.Updated = candidates[0].modified.In(b.Channel.Location)
	}

	for _, c := range candidates {
		link := b.NoteURL(c.id)
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       strings.ReplaceAll(c.id, "_", " "),
			Link:        &feeds.Link{Href: link},
			Description: "Read the full note: " + link,
			Id:          link,
			Created:     c.modified.In(b.Channel.Location),
		})
	}
	return feed, nil
}

// RSS renders Build's feed as RSS 2.0.
func (b *Builder) RSS(ctx context.Context, maxItems int) (string, error) {
	feed, err := b.Build(ctx, maxItems)
	if err != nil {
		return "", err
	}
	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("rendering rss: %w", err)
	}
	return rss, nil
}

// NoteURL is the absolute link of a note page.
func (b *Builder) NoteURL(id string) string {
	return b.Channel.Link + "/note/" + url.PathEscape(id) + "/" + archive.NoteFile
}

func (b *Builder) candidates(ctx context.Context) ([]candidate, error) {
	entries, err := os.ReadDir(b.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading archive root: %w", err)
	}

	var out []candidate
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || !archive.ValidID(entry.Name()) {
			continue
		}
		info, err := os.Stat(filepath.Join(b.Root, entry.Name(), archive.NoteFile))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				b.logger.Warn("skipping unreadable note", "guid", entry.Name(), "error", err)
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		out = append(out, candidate{id: entry.Name(), modified: info.ModTime()})
	}
	return out, nil
}
