// Package logic contains the pure presence-detection core.
// This package has NO external dependencies (no camera, network, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// PersonLabel is the detector class that counts as a person.
const PersonLabel = "person"

// Defaults for the configuration surface consumed by the core.
const (
	DefaultConfidenceThreshold = 0.5
	DefaultCooldown            = 300 * time.Second
)

// Presence represents the logical state of the watched scene.
type Presence string

const (
	PresenceClear    Presence = "CLEAR"
	PresenceOccupied Presence = "OCCUPIED"
)

// EventType represents a presence transition.
type EventType string

const (
	EventBecamePresent EventType = "BECAME_PRESENT"
	EventBecameClear   EventType = "BECAME_CLEAR"
)

// Box is a bounding box in frame pixel coordinates.
type Box struct {
	X1, Y1, X2, Y2 int
}

// Detection is one classified, confidence-scored box produced by a detector.
type Detection struct {
	Label      string
	Confidence float64
	Box        Box
}

// Frame is the part of a video frame the core needs: when it was taken,
// its sequence number and the encoded image (used only for the snapshot).
type Frame struct {
	Seq   uint64
	Time  time.Time
	Image []byte
}

// Input represents a single per-frame presence signal.
type Input struct {
	Present bool
	Time    time.Time
}

// Event represents a presence transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     Presence
	FrameSeq  uint64
}

// EventCounts tracks the number of each transition and alert outcome since startup.
type EventCounts struct {
	BecamePresent int
	BecameClear   int
	Alerts        int
	Suppressed    int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
