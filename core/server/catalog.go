package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/archive"
)

// Catalog caches the archive listing. The cache is dropped by Invalidate,
// which Watch calls on every filesystem change under the archive root.
type Catalog struct {
	reader *archive.Reader
	logger *slog.Logger

	mu    sync.Mutex
	notes []core.NoteSummary
	valid bool
}

// NewCatalog creates a Catalog over reader.
func NewCatalog(reader *archive.Reader, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{reader: reader, logger: logger}
}

// Notes returns the cached listing, reading the archive when needed.
func (c *Catalog) Notes(ctx context.Context) ([]core.NoteSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid {
		notes, err := c.reader.ListNotes(ctx)
		if err != nil {
			return nil, err
		}
		c.notes = notes
		c.valid = true
	}
	return append([]core.NoteSummary(nil), c.notes...), nil
}

// Invalidate forces the next Notes call to re-read the archive.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Watch invalidates the cache whenever the archive root or a note folder
// changes. It returns once the watcher is running; events are handled until
// ctx is done.
func (c *Catalog) Watch(ctx context.Context) error {
	root := c.reader.Root
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("creating archive root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", root, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("reading archive root: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			_ = watcher.Add(filepath.Join(root, entry.Name()))
		}
	}

	go c.run(ctx, watcher)
	return nil
}

func (c *Catalog) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			c.logger.Debug("archive changed", "name", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == filepath.Clean(c.reader.Root) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			c.Invalidate()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("fsnotify error", "error", err)
		}
	}
}
