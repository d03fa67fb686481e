package ratelimit

import (
	"context"
	"time"
)

const (
	defaultInitialBackoff = 150 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

// Backoff is a bounded exponential retry schedule shared by the HTTP clients.
type Backoff struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
}

// Retry runs fn until it succeeds, retryable returns false, or the budget is spent.
func (b Backoff) Retry(ctx context.Context, retryable func(error) bool, fn func() error) error {
	initial := b.Initial
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	maxBackoff := b.Max
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	wait := initial
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= b.MaxRetries || (retryable != nil && !retryable(err)) {
			return err
		}
		if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
			return sleepErr
		}
		wait *= 2
		if wait > maxBackoff {
			wait = maxBackoff
		}
	}
}
