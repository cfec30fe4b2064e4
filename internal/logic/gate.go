package logic

import (
	"sync"
	"time"
)

// Gate rate-limits alerts. At most one alert fires per cooldown window,
// measured from the previous fired alert rather than from the previous
// detected transition.
//
// Gate is the only core state that may be shared between goroutines, so the
// fire decision and the timestamp update happen under one lock.
type Gate struct {
	mu        sync.Mutex
	cooldown  time.Duration
	lastAlert time.Time
	fired     bool
}

// NewGate creates a gate that has never fired.
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown}
}

// TryFire decides whether an alert may fire at now. On success it records now
// as the last alert time. On suppression it returns the remaining cooldown,
// which is informational only.
func (g *Gate) TryFire(now time.Time) (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fired {
		elapsed := now.Sub(g.lastAlert)
		if elapsed <= g.cooldown {
			return false, g.cooldown - elapsed
		}
	}

	g.lastAlert = now
	g.fired = true
	return true, 0
}

// LastFired returns the time of the last fired alert and whether one has fired.
func (g *Gate) LastFired() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastAlert, g.fired
}

// Cooldown returns the configured cooldown.
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}
