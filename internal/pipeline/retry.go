package pipeline

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultRetryAttempts is the number of tries per page.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the fixed pause between tries.
	DefaultRetryDelay = 2 * time.Second
)

// RetryPolicy retries an operation a fixed number of times with a fixed delay.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns 3 attempts 2s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultRetryAttempts, Delay: DefaultRetryDelay}
}

// Do calls fn until it succeeds or attempts run out, waiting Delay between
// calls. attempt is 1-based. It returns the number of calls made and the last
// error. A done ctx ends the wait early and is joined to the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) (int, error) {
	attempts := max(p.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return attempt, nil
		}
		if attempt == attempts {
			return attempt, err
		}
		if p.Delay <= 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return attempt, errors.Join(err, ctxErr)
			}
			continue
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return attempts, err
}
