package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/source-watcher/internal/gpio"
	"github.com/sweeney/source-watcher/internal/logic"
)

// Siren pulses a GPIO output (siren, strobe or relay) for each alert.
type Siren struct {
	mu    sync.Mutex
	out   gpio.Output
	pulse time.Duration
}

// NewSiren creates a siren channel that holds out active for pulse.
func NewSiren(out gpio.Output, pulse time.Duration) *Siren {
	return &Siren{out: out, pulse: pulse}
}

// Name implements Channel.
func (s *Siren) Name() string { return "gpio" }

// Notify drives the output high for the pulse duration. The output is always
// returned low, even when ctx ends the pulse early.
func (s *Siren) Notify(ctx context.Context, alert logic.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.out.Set(true); err != nil {
		return fmt.Errorf("siren on: %w", err)
	}

	timer := time.NewTimer(s.pulse)
	select {
	case <-ctx.Done():
		timer.Stop()
	case <-timer.C:
	}

	if err := s.out.Set(false); err != nil {
		return fmt.Errorf("siren off: %w", err)
	}
	return nil
}

// Close releases the output.
func (s *Siren) Close() error {
	return s.out.Close()
}
