// Package status provides a thread-safe status tracker for the source-watcher daemon.
// It is read by the HTTP handlers and by the heartbeat and lifecycle MQTT events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/source-watcher/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Source      string // redacted source URL or directory
	SourceKind  string
	Detector    string
	Label       string
	Threshold   float64
	CooldownMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	Channels    []string
}

// AlertInfo summarises the most recent dispatched alert.
type AlertInfo struct {
	ID        string
	Seq       uint64
	Timestamp time.Time
	Snapshot  string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Presence        logic.Presence
	Counts          logic.EventCounts
	FramesProcessed uint64
	DetectErrors    uint64
	LastFrame       time.Time
	LastAlert       *AlertInfo
	StartTime       time.Time
	Now             time.Time
	MQTTConnected   bool
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// CooldownRemaining returns how long until the next alert may fire, or 0.
func (s Snapshot) CooldownRemaining() time.Duration {
	if s.LastAlert == nil {
		return 0
	}
	remaining := time.Duration(s.Config.CooldownMs)*time.Millisecond - s.Now.Sub(s.LastAlert.Timestamp)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Presence:  logic.PresenceClear,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records a processed frame: the resulting presence state and counts.
// Called from runLoop once per frame.
func (t *Tracker) Update(presence logic.Presence, counts logic.EventCounts, frameTime time.Time) {
	t.mu.Lock()
	t.snap.Presence = presence
	t.snap.Counts = counts
	t.snap.FramesProcessed++
	t.snap.LastFrame = frameTime
	t.mu.Unlock()
}

// RecordAlert stores the most recent dispatched alert.
func (t *Tracker) RecordAlert(alert logic.AlertEvent) {
	t.mu.Lock()
	t.snap.LastAlert = &AlertInfo{
		ID:        alert.ID,
		Seq:       alert.Seq,
		Timestamp: alert.Timestamp,
		Snapshot:  alert.SnapshotPath,
	}
	t.mu.Unlock()
}

// RecordDetectError counts a frame the detector failed on. The frame still
// counts as read, so LastFrame advances.
func (t *Tracker) RecordDetectError(frameTime time.Time) {
	t.mu.Lock()
	t.snap.DetectErrors++
	t.snap.LastFrame = frameTime
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastAlert != nil {
		a := *s.LastAlert
		s.LastAlert = &a
	}
	s.Config.Channels = append([]string(nil), t.snap.Config.Channels...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
