package source

import (
	"context"
	"errors"
	"testing"
)

func TestRetryingRecoversFromFrameRead(t *testing.T) {
	inner := NewFakeSource(frames(2))
	inner.FailAt = 1
	r := NewRetrying(inner, 1, 0)

	frame, err := r.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Seq != 1 {
		t.Errorf("seq got %d, want 1", frame.Seq)
	}
}

func TestRetryingGivesUp(t *testing.T) {
	inner := NewFakeSource(frames(1))
	inner.ReadError = ErrFrameRead
	r := NewRetrying(inner, 2, 0)

	_, err := r.Next(context.Background())
	if !errors.Is(err, ErrFrameRead) {
		t.Errorf("expected ErrFrameRead, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestRetryingPassesThroughEndOfStream(t *testing.T) {
	inner := NewFakeSource(nil)
	r := NewRetrying(inner, 5, 0)

	if _, err := r.Next(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("end of stream should not be retried, got %d calls", inner.calls)
	}
}

func TestRetryingClose(t *testing.T) {
	inner := NewFakeSource(nil)
	r := NewRetrying(inner, 1, 0)
	r.Close()
	if !inner.Closed {
		t.Error("Close should close the wrapped source")
	}
}
