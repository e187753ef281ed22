// Package server exposes the archive over HTTP: an HTML listing, a JSON
// listing, the note pages with their resources, the RSS feed and the
// Prometheus metrics.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/archive"
	"github.com/gaurav-prasanna/notepipe/core/feed"
	"github.com/gaurav-prasanna/notepipe/core/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Options wires the server to its collaborators.
type Options struct {
	Reader    *archive.Reader
	Feed      *feed.Builder
	FeedItems int
	Title     string
	Metrics   *metrics.Metrics // optional
	AccessLog io.Writer        // optional; nil disables the access log
	Logger    *slog.Logger
}

// Server serves one archive root.
type Server struct {
	opts    Options
	catalog *Catalog
	app     *fiber.App
	logger  *slog.Logger
}

// New builds the fiber application and registers every route.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FeedItems <= 0 {
		opts.FeedItems = feed.DefaultItems
	}
	if opts.Title == "" {
		opts.Title = "Evernote Notes"
	}

	s := &Server{
		opts:    opts,
		catalog: NewCatalog(opts.Reader, opts.Logger),
		logger:  opts.Logger,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
		UnescapePath:          true,
		ReadTimeout:           60 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           60 * time.Second,
	})

	app.Use(recover.New())
	if opts.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${method} ${path} ${latency}\n",
			Output: opts.AccessLog,
		}))
	}
	if opts.Metrics != nil {
		app.Use(s.instrument)
	}

	app.Get("/", s.index)
	app.Get("/api/notes", s.listNotes)
	app.Get("/rss", s.rss)
	app.Get("/note/:guid/note.html", s.note)
	app.Get("/note/:guid/images/*", s.resource(archive.ImagesDir))
	app.Get("/note/:guid/attachments/*", s.resource(archive.AttachmentsDir))
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics.Handler()))
	}

	s.app = app
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Catalog returns the listing cache.
func (s *Server) Catalog() *Catalog {
	return s.catalog
}

// Listen serves on addr until ctx is done.
func (s *Server) Listen(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Error("shutdown failed", "error", err)
		}
	}()
	s.logger.Info("serving archive", "addr", addr, "root", s.opts.Reader.Root)
	return s.app.Listen(addr)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
	})
}

// instrument records request counts and latencies per route.
func (s *Server) instrument(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	route := c.Route().Path

	s.opts.Metrics.RequestCounter.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
	s.opts.Metrics.RequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
	return err
}

func (s *Server) index(c *fiber.Ctx) error {
	notes, err := s.catalog.Notes(c.UserContext())
	if err != nil {
		return err
	}

	var buf strings.Builder
	if err := listingTemplate.Execute(&buf, listingPage{Title: s.opts.Title, Notes: notes}); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.SendString(buf.String())
}

func (s *Server) listNotes(c *fiber.Ctx) error {
	notes, err := s.catalog.Notes(c.UserContext())
	if err != nil {
		return err
	}
	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		notes = FilterByTag(notes, tag)
	}
	return c.JSON(fiber.Map{
		"count": len(notes),
		"notes": notes,
	})
}

func (s *Server) rss(c *fiber.Ctx) error {
	rss, err := s.opts.Feed.RSS(c.UserContext(), s.opts.FeedItems)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/rss+xml; charset=utf-8")
	return c.SendString(rss)
}

func (s *Server) note(c *fiber.Ctx) error {
	path, err := s.opts.Reader.NotePath(c.Params("guid"))
	if err != nil {
		return notFound(err, "note not found")
	}
	return sendFile(c, path)
}

func (s *Server) resource(kind string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path, err := s.opts.Reader.ResourcePath(c.Params("guid"), kind, c.Params("*"))
		if err != nil {
			return notFound(err, "file not found")
		}
		return sendFile(c, path)
	}
}

// sendFile writes the file verbatim with a type derived from its extension,
// falling back to content sniffing.
func sendFile(c *fiber.Ctx, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return notFound(err, "file not found")
	}

	ctype := mime.TypeByExtension(filepath.Ext(path))
	if ctype == "" {
		ctype = mimetype.Detect(data).String()
	}
	c.Set(fiber.HeaderContentType, ctype)
	return c.Send(data)
}

func notFound(err error, message string) error {
	if errors.Is(err, core.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fiber.NewError(fiber.StatusNotFound, message)
	}
	return err
}

// FilterByTag keeps the notes carrying tag, compared case-insensitively.
func FilterByTag(notes []core.NoteSummary, tag string) []core.NoteSummary {
	out := make([]core.NoteSummary, 0, len(notes))
	for _, n := range notes {
		for _, t := range n.Tags {
			if strings.EqualFold(t, tag) {
				out = append(out, n)
				break
			}
		}
	}
	return out
}
