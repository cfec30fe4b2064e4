package source

import (
	"context"

	"github.com/sweeney/source-watcher/internal/logic"
)

// FakeSource is a test double that returns scripted frames.
type FakeSource struct {
	// Frames contains the scripted frames. Each call to Next consumes one.
	// When exhausted, Next returns ErrEndOfStream.
	Frames []logic.Frame

	// index tracks current position in Frames
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Next.
	ReadError error

	// FailAt, if > 0, makes the FailAt-th call to Next (1-based) return ErrFrameRead.
	FailAt int

	calls int
}

// NewFakeSource creates a FakeSource with the given frames.
func NewFakeSource(frames []logic.Frame) *FakeSource {
	return &FakeSource{Frames: frames}
}

// Next returns the next scripted frame.
func (f *FakeSource) Next(ctx context.Context) (logic.Frame, error) {
	if err := ctx.Err(); err != nil {
		return logic.Frame{}, err
	}
	f.calls++
	if f.ReadError != nil {
		return logic.Frame{}, f.ReadError
	}
	if f.FailAt > 0 && f.calls == f.FailAt {
		return logic.Frame{}, ErrFrameRead
	}
	if f.index >= len(f.Frames) {
		return logic.Frame{}, ErrEndOfStream
	}

	frame := f.Frames[f.index]
	f.index++
	return frame, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the source to the first frame.
func (f *FakeSource) Reset() {
	f.index = 0
	f.calls = 0
	f.Closed = false
}
