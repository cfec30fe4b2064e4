package source

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/source-watcher/internal/logic"
)

// Retrying retries ErrFrameRead failures a bounded number of times before
// giving up. End of stream, unavailability and cancellation pass through
// unchanged.
type Retrying struct {
	inner   Source
	retries int
	backoff time.Duration
}

// NewRetrying wraps inner. retries is the number of extra attempts per frame.
func NewRetrying(inner Source, retries int, backoff time.Duration) *Retrying {
	return &Retrying{inner: inner, retries: retries, backoff: backoff}
}

// Next reads a frame, retrying transient read failures.
func (r *Retrying) Next(ctx context.Context) (logic.Frame, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 && r.backoff > 0 {
			timer := time.NewTimer(r.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return logic.Frame{}, ctx.Err()
			case <-timer.C:
			}
		}

		frame, err := r.inner.Next(ctx)
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, ErrFrameRead) {
			return logic.Frame{}, err
		}
		lastErr = err
	}
	return logic.Frame{}, lastErr
}

// Close closes the wrapped source.
func (r *Retrying) Close() error {
	return r.inner.Close()
}
