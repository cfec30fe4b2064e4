package detect

import (
	"context"
	"sync"

	"github.com/sweeney/source-watcher/internal/logic"
)

// FakeDetector is a test double with scripted detections.
type FakeDetector struct {
	mu sync.Mutex

	// BySeq maps frame sequence numbers to detections. Frames not present
	// produce no detections.
	BySeq map[uint64][]logic.Detection

	// Errors maps frame sequence numbers to a Detect error.
	Errors map[uint64]error

	// Calls records the sequence number of every frame seen.
	Calls []uint64
}

// NewFakeDetector creates an empty FakeDetector.
func NewFakeDetector() *FakeDetector {
	return &FakeDetector{
		BySeq:  make(map[uint64][]logic.Detection),
		Errors: make(map[uint64]error),
	}
}

// Detect returns the scripted detections for frame.Seq.
func (f *FakeDetector) Detect(ctx context.Context, frame logic.Frame) ([]logic.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, frame.Seq)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.Errors[frame.Seq]; err != nil {
		return nil, err
	}
	return f.BySeq[frame.Seq], nil
}

// Person is shorthand for a person detection with the given confidence.
func Person(confidence float64) logic.Detection {
	return logic.Detection{
		Label:      logic.PersonLabel,
		Confidence: confidence,
		Box:        logic.Box{X1: 10, Y1: 10, X2: 50, Y2: 90},
	}
}
