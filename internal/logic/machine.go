package logic

import "time"

// Machine tracks presence state and detects CLEAR/OCCUPIED transitions.
// There is no hysteresis: a single frame flips the state.
// Not safe for concurrent use; frames are processed strictly in sequence.
type Machine struct {
	state         Presence
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewMachine creates a presence state machine in the CLEAR state.
// The startTime is used for calculating uptime in heartbeat events.
func NewMachine(startTime time.Time) *Machine {
	return &Machine{
		state:         PresenceClear,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process consumes one frame's presence signal and returns the transition
// event, or nil if the state did not change.
func (m *Machine) Process(input Input) *Event {
	next := PresenceClear
	if input.Present {
		next = PresenceOccupied
	}

	if next == m.state {
		return nil
	}
	m.state = next

	event := &Event{
		Timestamp: input.Time,
		State:     next,
	}
	if next == PresenceOccupied {
		event.Type = EventBecamePresent
		m.eventCounts.BecamePresent++
	} else {
		event.Type = EventBecameClear
		m.eventCounts.BecameClear++
	}
	return event
}

// CurrentState returns the presence state after the most recent frame.
func (m *Machine) CurrentState() Presence {
	return m.state
}

// recordAlert counts a gate decision. Called by Watch only.
func (m *Machine) recordAlert(fired bool) {
	if fired {
		m.eventCounts.Alerts++
	} else {
		m.eventCounts.Suppressed++
	}
}

// EventCountsSnapshot returns a copy of the counters.
func (m *Machine) EventCountsSnapshot() EventCounts {
	return m.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (m *Machine) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.eventCounts,
	}
}
