package sync

import (
	"context"
	"time"

	"github.com/nhle/studyflow/internal/apperr"
)

// Backoff bounds how often an upstream call is retried.
type Backoff struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// DefaultBackoff makes three attempts, waiting 500ms then 1s.
var DefaultBackoff = Backoff{
	MaxAttempts: 3,
	Initial:     500 * time.Millisecond,
	Max:         8 * time.Second,
}

// delay returns the wait before the given retry (1-based), doubling from
// Initial and capped at Max.
func (b Backoff) delay(retry int) time.Duration {
	d := b.Initial
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// retry calls fn until it succeeds, returns a non-temporary error, or the
// attempts run out. Only errors marked apperr.Temporary are retried.
func retry[T any](ctx context.Context, b Backoff, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := b.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil || !apperr.IsTemporary(err) || attempt == attempts {
			return result, err
		}

		timer := time.NewTimer(b.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, err
		case <-timer.C:
		}
	}
	return result, err
}
