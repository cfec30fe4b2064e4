package logic

import (
	"fmt"
	"time"
)

// AlertEvent is created only on a CLEAR->OCCUPIED transition that passes the
// gate. It is immutable once created and handed to the notifier for fan-out.
type AlertEvent struct {
	ID           string
	Seq          uint64
	Timestamp    time.Time
	Message      string
	Frame        Frame
	Detections   []Detection
	SnapshotPath string
}

// WithSnapshotPath returns a copy of the event that references the given snapshot path.
func (a AlertEvent) WithSnapshotPath(path string) AlertEvent {
	a.SnapshotPath = path
	return a
}

// Suppression describes an alert the gate refused.
type Suppression struct {
	Timestamp time.Time
	Remaining time.Duration
}

// Outcome is the result of observing one frame.
type Outcome struct {
	Present    bool
	Transition *Event
	Alert      *AlertEvent
	Suppressed *Suppression
}

// Watch is the event-producing core: classifier, presence state machine and
// alert gate wired together. Observe does no I/O; acting on the Outcome is
// the caller's job.
type Watch struct {
	label     string
	threshold float64
	machine   *Machine
	gate      *Gate
	newID     func() string
	seq       uint64
}

// WatchConfig holds the values the core consumes.
type WatchConfig struct {
	Label     string        // defaults to PersonLabel
	Threshold float64
	Cooldown  time.Duration
	// NewID generates alert IDs. Defaults to "alert-<seq>".
	NewID func() string
}

// NewWatch creates a Watch in the CLEAR state with a gate that has never fired.
func NewWatch(cfg WatchConfig, startTime time.Time) *Watch {
	if cfg.Label == "" {
		cfg.Label = PersonLabel
	}
	return &Watch{
		label:     cfg.Label,
		threshold: cfg.Threshold,
		machine:   NewMachine(startTime),
		gate:      NewGate(cfg.Cooldown),
		newID:     cfg.NewID,
	}
}

// Observe processes one frame's detections.
func (w *Watch) Observe(frame Frame, dets []Detection) Outcome {
	present := Classify(dets, w.label, w.threshold)
	out := Outcome{Present: present}

	event := w.machine.Process(Input{Present: present, Time: frame.Time})
	if event == nil {
		return out
	}
	event.FrameSeq = frame.Seq
	out.Transition = event

	// Only BecamePresent reaches the gate.
	if event.Type != EventBecamePresent {
		return out
	}

	fired, remaining := w.gate.TryFire(frame.Time)
	w.machine.recordAlert(fired)
	if !fired {
		out.Suppressed = &Suppression{Timestamp: frame.Time, Remaining: remaining}
		return out
	}

	w.seq++
	id := fmt.Sprintf("alert-%d", w.seq)
	if w.newID != nil {
		id = w.newID()
	}
	out.Alert = &AlertEvent{
		ID:         id,
		Seq:        w.seq,
		Timestamp:  frame.Time,
		Message:    FormatAlertMessage(frame.Time),
		Frame:      frame,
		Detections: Qualifying(dets, w.label, w.threshold),
	}
	return out
}

// Machine exposes the presence state machine for status and heartbeat reporting.
func (w *Watch) Machine() *Machine {
	return w.machine
}

// Gate exposes the alert gate for status reporting.
func (w *Watch) Gate() *Gate {
	return w.gate
}

// Threshold returns the confidence threshold in use.
func (w *Watch) Threshold() float64 {
	return w.threshold
}

// Label returns the class label in use.
func (w *Watch) Label() string {
	return w.label
}

// FormatAlertMessage returns the human-readable alert text.
func FormatAlertMessage(t time.Time) string {
	return "PERSON DETECTED at " + t.Format("2006-01-02 15:04:05")
}

// FormatClearMessage returns the human-readable scene-clear text.
func FormatClearMessage(t time.Time) string {
	return "Scene clear at " + t.Format("2006-01-02 15:04:05")
}
