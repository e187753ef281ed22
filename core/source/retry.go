package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gaurav-prasanna/notepipe/core"
)

// DefaultMaxAttempts is the retry ceiling for rate-limited calls.
const DefaultMaxAttempts = 3

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrying wraps a NoteSource. When the upstream answers with a
// *core.RateLimitError it sleeps for the advertised duration and retries,
// up to MaxAttempts calls in total, then gives up with core.ErrRateLimited.
// Any other error is returned as is.
type Retrying struct {
	source      core.NoteSource
	maxAttempts int
	sleep       SleepFunc
	logger      *slog.Logger
}

// RetryOption configures a Retrying source.
type RetryOption func(*Retrying)

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) RetryOption {
	return func(r *Retrying) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithSleep replaces the context-aware timer sleep (useful for testing).
func WithSleep(sleep SleepFunc) RetryOption {
	return func(r *Retrying) {
		r.sleep = sleep
	}
}

// WithLogger sets the logger used for back-off messages.
func WithLogger(logger *slog.Logger) RetryOption {
	return func(r *Retrying) {
		r.logger = logger
	}
}

// WithRetry wraps src with the rate-limit retry policy.
func WithRetry(src core.NoteSource, opts ...RetryOption) *Retrying {
	r := &Retrying{
		source:      src,
		maxAttempts: DefaultMaxAttempts,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retry[T any](ctx context.Context, r *Retrying, op string, call func() (T, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		result, err := call()

		var limited *core.RateLimitError
		if !errors.As(err, &limited) {
			return result, err
		}

		if attempt >= r.maxAttempts {
			r.logger.Error("rate limit retry ceiling reached", "op", op, "attempts", attempt)
			var zero T
			return zero, fmt.Errorf("%s after %d attempts: %w: %w", op, attempt, core.ErrRateLimited, err)
		}

		r.logger.Warn("upstream rate-limited, waiting", "op", op, "wait", limited.Duration, "attempt", attempt)
		if err := r.sleep(ctx, limited.Duration); err != nil {
			var zero T
			return zero, err
		}
	}
}

func (r *Retrying) ListNotebooks(ctx context.Context) ([]core.Notebook, error) {
	return retry(ctx, r, "list notebooks", func() ([]core.Notebook, error) {
		return r.source.ListNotebooks(ctx)
	})
}

func (r *Retrying) ListNotes(ctx context.Context, notebookGUID string) ([]core.NoteRef, error) {
	return retry(ctx, r, "list notes", func() ([]core.NoteRef, error) {
		return r.source.ListNotes(ctx, notebookGUID)
	})
}

func (r *Retrying) ListTags(ctx context.Context) ([]core.Tag, error) {
	return retry(ctx, r, "list tags", func() ([]core.Tag, error) {
		return r.source.ListTags(ctx)
	})
}

func (r *Retrying) GetNote(ctx context.Context, guid string) (*core.Note, error) {
	return retry(ctx, r, "get note "+guid, func() (*core.Note, error) {
		return r.source.GetNote(ctx, guid)
	})
}

func (r *Retrying) GetResource(ctx context.Context, guid string) (*core.ResourceData, error) {
	return retry(ctx, r, "get resource "+guid, func() (*core.ResourceData, error) {
		return r.source.GetResource(ctx, guid)
	})
}

var _ core.NoteSource = (*Retrying)(nil)
