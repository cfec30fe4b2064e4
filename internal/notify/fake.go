package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/source-watcher/internal/logic"
)

// FakeChannel is a test double that records alerts.
type FakeChannel struct {
	mu sync.Mutex

	name   string
	alerts []logic.AlertEvent

	// Err, if set, is returned by Notify after recording.
	Err error
	// Panic, if non-nil, is raised by Notify after recording.
	Panic any
	// Delay, if set, blocks Notify until it elapses or ctx ends.
	Delay time.Duration
}

// NewFakeChannel creates a FakeChannel with the given name.
func NewFakeChannel(name string) *FakeChannel {
	return &FakeChannel{name: name}
}

// Name implements Channel.
func (f *FakeChannel) Name() string { return f.name }

// Notify records the alert.
func (f *FakeChannel) Notify(ctx context.Context, alert logic.AlertEvent) error {
	f.mu.Lock()
	f.alerts = append(f.alerts, alert)
	f.mu.Unlock()

	if f.Delay > 0 {
		timer := time.NewTimer(f.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if f.Panic != nil {
		panic(f.Panic)
	}
	return f.Err
}

// Alerts returns a copy of the recorded alerts.
func (f *FakeChannel) Alerts() []logic.AlertEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.AlertEvent(nil), f.alerts...)
}

// Count returns the number of recorded alerts.
func (f *FakeChannel) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}
