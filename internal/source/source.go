// Package source provides video frame acquisition with transport abstraction.
// Real implementations read MJPEG streams, poll HTTP snapshot endpoints or
// replay a directory of images. The fake implementation allows testing
// without a camera.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/source-watcher/internal/logic"
)

var (
	// ErrUnavailable means the source could not be opened or initialised.
	ErrUnavailable = errors.New("source unavailable")
	// ErrEndOfStream means the stream ended normally.
	ErrEndOfStream = errors.New("end of stream")
	// ErrFrameRead means a single frame could not be read or decoded.
	ErrFrameRead = errors.New("frame read failed")
)

// Source supplies frames on demand.
type Source interface {
	// Next blocks until the next frame is available. Any error means no
	// frame was produced; the caller treats the stream as ended unless it
	// has opted into retries.
	Next(ctx context.Context) (logic.Frame, error)

	// Close releases the underlying stream.
	Close() error
}

// Kinds of source understood by Open.
const (
	KindMJPEG    = "mjpeg"
	KindSnapshot = "snapshot"
	KindDir      = "dir"
)

// Options configures Open.
type Options struct {
	Kind         string
	URL          string
	Username     string
	Password     string
	Dir          string
	PollInterval time.Duration
	Timeout      time.Duration
	ReadRetries  int
	RetryBackoff time.Duration

	// Now is the frame clock. Defaults to time.Now.
	Now func() time.Time
}

// Open creates the source described by opts. Failures wrap ErrUnavailable.
func Open(ctx context.Context, opts Options) (Source, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var (
		src Source
		err error
	)
	switch opts.Kind {
	case KindMJPEG, "":
		src, err = OpenMJPEG(ctx, opts)
	case KindSnapshot:
		src, err = OpenSnapshot(ctx, opts)
	case KindDir:
		src, err = OpenDir(opts)
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", ErrUnavailable, opts.Kind)
	}
	if err != nil {
		return nil, err
	}

	if opts.ReadRetries > 0 {
		src = NewRetrying(src, opts.ReadRetries, opts.RetryBackoff)
	}
	return src, nil
}

// sequencer stamps frames with a monotonically increasing sequence number.
type sequencer struct {
	seq uint64
	now func() time.Time
}

func (s *sequencer) frame(data []byte) logic.Frame {
	s.seq++
	now := s.now
	if now == nil {
		now = time.Now
	}
	return logic.Frame{Seq: s.seq, Time: now(), Image: data}
}
