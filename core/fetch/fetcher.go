// Package fetch downloads remote ENEX exports so they can be imported like
// a local file.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gaurav-prasanna/notepipe/core"
)

const (
	defaultTimeout   = 5 * time.Minute
	defaultUserAgent = "notepipe/1.0 (https://github.com/gaurav-prasanna/notepipe)"
)

// HTTPFetcher downloads export files via HTTP.
type HTTPFetcher struct {
	client *http.Client
}

// New creates an HTTPFetcher with a sensible timeout.
func New() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// IsRemote reports whether source is an http(s) URL rather than a path.
func IsRemote(source string) bool {
	parsed, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// Fetch downloads rawURL into a new .enex file under dir (the system temp
// directory when empty) and returns its path. The caller removes the file.
// A 429 answer is reported as *core.RateLimitError.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/enex+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &core.RateLimitError{Duration: retryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	file, err := os.CreateTemp(dir, "notepipe-*.enex")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", fmt.Errorf("reading response body: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("closing download file: %w", err)
	}
	return file.Name(), nil
}

// retryAfter parses a Retry-After header given in seconds, defaulting to
// one minute.
func retryAfter(value string) time.Duration {
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Minute
}
