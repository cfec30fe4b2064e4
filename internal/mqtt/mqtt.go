// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/source-watcher/internal/logic"
	"github.com/sweeney/source-watcher/internal/notify"
)

// Topic is the MQTT topic for presence transitions.
const Topic = "security/source-watcher/events"

// TopicAlerts is the MQTT topic for dispatched alerts.
const TopicAlerts = "security/source-watcher/alerts"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "security/source-watcher/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a presence transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishAlert sends a dispatched alert to the broker.
	PublishAlert(alert logic.AlertEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "END_OF_STREAM" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a presence transition.
type Payload struct {
	Presence PresencePayload `json:"presence"`
}

// PresencePayload contains the transition details.
type PresencePayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	State     string `json:"state"`
	FrameSeq  uint64 `json:"frame_seq"`
}

// FormatPayload creates the JSON payload for a presence transition.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Presence: PresencePayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			State:     string(event.State),
			FrameSeq:  event.FrameSeq,
		},
	}
	return json.Marshal(payload)
}

// AlertPayload wraps an alert for the alerts topic.
type AlertPayload struct {
	Alert notify.Payload `json:"alert"`
}

// FormatAlertPayload creates the JSON payload for an alert.
func FormatAlertPayload(alert logic.AlertEvent) ([]byte, error) {
	return json.Marshal(AlertPayload{Alert: notify.NewPayload(alert)})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
