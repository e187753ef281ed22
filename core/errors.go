package core

import (
	"errors"
	"fmt"
	"time"
)

// Common errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrEmptyResource = errors.New("resource has no data")
	ErrRateLimited   = errors.New("upstream rate limit retries exhausted")
)

// RateLimitError is returned by a NoteSource when the upstream asks the
// caller to back off for Duration before retrying.
type RateLimitError struct {
	Duration time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.Duration)
}
