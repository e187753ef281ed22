// Package config loads notepipe settings from a YAML file, a .env file and
// NOTEPIPE_* environment variables, in that order of precedence (later wins).
// Command-line flags are applied on top by the caller before Validate.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NOTEPIPE_"

// Enrichment backends.
const (
	EnrichNone   = "none"
	EnrichLocal  = "local"
	EnrichOllama = "ollama"
)

// Config holds every setting the commands need.
type Config struct {
	ArchiveRoot string `yaml:"archive_root" validate:"required"`
	ContentRoot string `yaml:"content_root" validate:"required"`
	OutputRoot  string `yaml:"output_root" validate:"required"`
	Listen      string `yaml:"listen" validate:"required"`

	Site   SiteConfig   `yaml:"site"`
	Import ImportConfig `yaml:"import"`
	Enrich EnrichConfig `yaml:"enrich"`
}

// SiteConfig drives the feed, the web listing and the static site.
type SiteConfig struct {
	URL         string `yaml:"url" validate:"required,url"`
	Title       string `yaml:"title" validate:"required"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	Category    string `yaml:"category"`
	TimeZone    string `yaml:"timezone" validate:"required,location"`
	FeedItems   int    `yaml:"feed_items" validate:"min=1"`
	Pagination  int    `yaml:"pagination" validate:"min=1"`
}

// ImportConfig controls the import run.
type ImportConfig struct {
	Source      string `yaml:"source"`
	Notebook    string `yaml:"notebook"`
	MaxAttempts int    `yaml:"max_attempts" validate:"min=1"`
}

// EnrichConfig selects the enrichment backend.
type EnrichConfig struct {
	Backend      string        `yaml:"backend" validate:"oneof=none local ollama"`
	SummaryWords int           `yaml:"summary_words" validate:"min=1"`
	Keywords     int           `yaml:"keywords" validate:"min=1"`
	OllamaURL    string        `yaml:"ollama_url" validate:"omitempty,url"`
	Model        string        `yaml:"model" validate:"required_if=Backend ollama"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ArchiveRoot: "articles",
		ContentRoot: "content",
		OutputRoot:  "output",
		Listen:      ":5000",
		Site: SiteConfig{
			URL:         "http://localhost:5000",
			Title:       "Evernote Notes",
			Description: "Latest notes from the archive",
			Author:      "Unknown Author",
			Category:    "Evernote Notes",
			TimeZone:    "UTC",
			FeedItems:   10,
			Pagination:  10,
		},
		Import: ImportConfig{
			MaxAttempts: 3,
		},
		Enrich: EnrichConfig{
			Backend:      EnrichNone,
			SummaryWords: 50,
			Keywords:     5,
			OllamaURL:    "http://localhost:11434",
			Model:        "llama3",
			Timeout:      60 * time.Second,
		},
	}
}

// Load builds a Config from the defaults, the optional YAML file at path,
// the optional .env file in the working directory and the environment.
// It does not validate; call Validate once flags are applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ARCHIVE_ROOT":     &c.ArchiveRoot,
		"CONTENT_ROOT":     &c.ContentRoot,
		"OUTPUT_ROOT":      &c.OutputRoot,
		"LISTEN":           &c.Listen,
		"SITE_URL":         &c.Site.URL,
		"SITE_TITLE":       &c.Site.Title,
		"SITE_DESCRIPTION": &c.Site.Description,
		"SITE_AUTHOR":      &c.Site.Author,
		"TIMEZONE":         &c.Site.TimeZone,
		"SOURCE":           &c.Import.Source,
		"NOTEBOOK":         &c.Import.Notebook,
		"ENRICH":           &c.Enrich.Backend,
		"OLLAMA_URL":       &c.Enrich.OllamaURL,
		"OLLAMA_MODEL":     &c.Enrich.Model,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"FEED_ITEMS":   &c.Site.FeedItems,
		"PAGINATION":   &c.Site.Pagination,
		"MAX_ATTEMPTS": &c.Import.MaxAttempts,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("location", validateLocation)
	return v
}

func validateLocation(fl validator.FieldLevel) bool {
	_, err := time.LoadLocation(fl.Field().String())
	return err == nil
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location returns the configured time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
