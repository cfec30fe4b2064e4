package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event                    string         `json:"event,omitempty"`
	Reason                   string         `json:"reason,omitempty"`
	Presence                 string         `json:"presence"`
	UptimeSeconds            int64          `json:"uptime_seconds"`
	StartTime                string         `json:"start_time"`
	Timestamp                string         `json:"timestamp"`
	FramesProcessed          uint64         `json:"frames_processed"`
	DetectErrors             uint64         `json:"detect_errors"`
	LastFrame                string         `json:"last_frame,omitempty"`
	CooldownRemainingSeconds int64          `json:"cooldown_remaining_seconds"`
	LastAlert                *LastAlertJSON `json:"last_alert,omitempty"`
	MQTT                     MQTTStatus     `json:"mqtt"`
	Counts                   CountsJSON     `json:"event_counts"`
	Config                   ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	BecamePresent int `json:"became_present"`
	BecameClear   int `json:"became_clear"`
	Alerts        int `json:"alerts"`
	Suppressed    int `json:"suppressed"`
}

// LastAlertJSON is the JSON representation of the most recent alert.
type LastAlertJSON struct {
	ID        string `json:"id"`
	Seq       uint64 `json:"seq"`
	Timestamp string `json:"timestamp"`
	Snapshot  string `json:"snapshot,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Source      string   `json:"source"`
	SourceKind  string   `json:"source_kind"`
	Detector    string   `json:"detector"`
	Label       string   `json:"label"`
	Threshold   float64  `json:"confidence_threshold"`
	CooldownMs  int64    `json:"cooldown_ms"`
	HeartbeatMs int64    `json:"heartbeat_ms"`
	Broker      string   `json:"broker,omitempty"`
	HTTPPort    string   `json:"http_port,omitempty"`
	Channels    []string `json:"channels"`
}

func buildInner(snap Snapshot) StatusInner {
	presence := string(snap.Presence)
	if presence == "" {
		presence = "UNKNOWN"
	}
	channels := snap.Config.Channels
	if channels == nil {
		channels = []string{}
	}

	inner := StatusInner{
		Presence:                 presence,
		UptimeSeconds:            int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:                snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:                snap.Now.UTC().Format(time.RFC3339),
		FramesProcessed:          snap.FramesProcessed,
		DetectErrors:             snap.DetectErrors,
		CooldownRemainingSeconds: int64(snap.CooldownRemaining().Seconds()),
		MQTT:                     MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			BecamePresent: snap.Counts.BecamePresent,
			BecameClear:   snap.Counts.BecameClear,
			Alerts:        snap.Counts.Alerts,
			Suppressed:    snap.Counts.Suppressed,
		},
		Config: ConfigJSON{
			Source:      snap.Config.Source,
			SourceKind:  snap.Config.SourceKind,
			Detector:    snap.Config.Detector,
			Label:       snap.Config.Label,
			Threshold:   snap.Config.Threshold,
			CooldownMs:  snap.Config.CooldownMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			Channels:    channels,
		},
	}
	if !snap.LastFrame.IsZero() {
		inner.LastFrame = snap.LastFrame.UTC().Format(time.RFC3339)
	}
	if snap.LastAlert != nil {
		inner.LastAlert = &LastAlertJSON{
			ID:        snap.LastAlert.ID,
			Seq:       snap.LastAlert.Seq,
			Timestamp: snap.LastAlert.Timestamp.UTC().Format(time.RFC3339),
			Snapshot:  snap.LastAlert.Snapshot,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
