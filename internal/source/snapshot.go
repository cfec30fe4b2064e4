package source

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sweeney/source-watcher/internal/logic"
)

// SnapshotSource polls a still-image endpoint at a fixed interval.
type SnapshotSource struct {
	http     *resty.Client
	url      string
	interval time.Duration
	seq      sequencer
	pending  []byte
	last     time.Time
}

// OpenSnapshot creates a polling source and fetches one image up front so a
// dead camera is reported as ErrUnavailable at start. That image is
// returned by the first call to Next.
func OpenSnapshot(ctx context.Context, opts Options) (*SnapshotSource, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "image/jpeg")
	if opts.Username != "" {
		client.SetBasicAuth(opts.Username, opts.Password)
	}

	s := &SnapshotSource{
		http:     client,
		url:      opts.URL,
		interval: opts.PollInterval,
		seq:      sequencer{now: opts.Now},
	}

	first, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.pending = first
	return s, nil
}

func (s *SnapshotSource) fetch(ctx context.Context) ([]byte, error) {
	resp, err := s.http.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", Redact(s.url), err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get snapshot %s: %s", Redact(s.url), resp.Status())
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("get snapshot %s: response body is empty", Redact(s.url))
	}
	return resp.Body(), nil
}

// Next waits until the poll interval has elapsed since the previous frame
// and fetches a new image.
func (s *SnapshotSource) Next(ctx context.Context) (logic.Frame, error) {
	if s.pending != nil {
		data := s.pending
		s.pending = nil
		s.last = time.Now()
		return s.seq.frame(data), nil
	}

	if wait := s.interval - time.Since(s.last); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return logic.Frame{}, ctx.Err()
		case <-timer.C:
		}
	}

	data, err := s.fetch(ctx)
	s.last = time.Now()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return logic.Frame{}, ctxErr
		}
		return logic.Frame{}, fmt.Errorf("%w: %v", ErrFrameRead, err)
	}
	return s.seq.frame(data), nil
}

// Close is a no-op; each poll is a separate request.
func (s *SnapshotSource) Close() error {
	return nil
}
