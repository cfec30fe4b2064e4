package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/source-watcher/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{SourceKind: "mjpeg", CooldownMs: 300000, Broker: "tcp://localhost:1883", HTTPPort: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Presence != logic.PresenceClear {
		t.Errorf("Presence: got %q, want CLEAR", snap.Presence)
	}
	if snap.Config.HTTPPort != ":8080" {
		t.Errorf("Config.HTTPPort: got %q, want %q", snap.Config.HTTPPort, ":8080")
	}
	if snap.LastAlert != nil {
		t.Error("expected no LastAlert initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	frameTime := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)

	tr.Update(logic.PresenceOccupied, logic.EventCounts{BecamePresent: 3, Alerts: 1}, frameTime)
	tr.Update(logic.PresenceOccupied, logic.EventCounts{BecamePresent: 3, Alerts: 1}, frameTime)

	snap := tr.Snapshot()
	if snap.Presence != logic.PresenceOccupied {
		t.Errorf("Presence: got %q, want OCCUPIED", snap.Presence)
	}
	if snap.Counts.BecamePresent != 3 {
		t.Errorf("Counts.BecamePresent: got %d, want 3", snap.Counts.BecamePresent)
	}
	if snap.FramesProcessed != 2 {
		t.Errorf("FramesProcessed: got %d, want 2", snap.FramesProcessed)
	}
	if !snap.LastFrame.Equal(frameTime) {
		t.Errorf("LastFrame: got %v", snap.LastFrame)
	}
}

func TestRecordAlertAndDetectError(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tr.RecordAlert(logic.AlertEvent{ID: "a1", Seq: 1, Timestamp: ts, SnapshotPath: "alerts/x.jpg"})
	tr.RecordDetectError(ts.Add(time.Second))
	tr.RecordDetectError(ts.Add(2 * time.Second))

	snap := tr.Snapshot()
	if snap.LastAlert == nil || snap.LastAlert.ID != "a1" || snap.LastAlert.Snapshot != "alerts/x.jpg" {
		t.Errorf("unexpected LastAlert: %+v", snap.LastAlert)
	}
	if snap.DetectErrors != 2 {
		t.Errorf("DetectErrors: got %d, want 2", snap.DetectErrors)
	}
	if snap.FramesProcessed != 0 {
		t.Errorf("FramesProcessed: got %d, want 0", snap.FramesProcessed)
	}
	if !snap.LastFrame.Equal(ts.Add(2 * time.Second)) {
		t.Errorf("LastFrame: got %v", snap.LastFrame)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotCooldownRemaining(t *testing.T) {
	alertAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		alert *AlertInfo
		now   time.Time
		want  time.Duration
	}{
		{"never fired", nil, alertAt, 0},
		{"inside cooldown", &AlertInfo{Timestamp: alertAt}, alertAt.Add(100 * time.Second), 200 * time.Second},
		{"expired", &AlertInfo{Timestamp: alertAt}, alertAt.Add(400 * time.Second), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{LastAlert: tt.alert, Now: tt.now, Config: Config{CooldownMs: 300000}}
			if got := snap.CooldownRemaining(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Channels: []string{"console"}})
	tr.Update(logic.PresenceOccupied, logic.EventCounts{BecamePresent: 1}, time.Now())
	tr.RecordAlert(logic.AlertEvent{ID: "a1"})

	snap1 := tr.Snapshot()
	snap1.Config.Channels[0] = "mutated"
	snap1.LastAlert.ID = "mutated"

	tr.Update(logic.PresenceClear, logic.EventCounts{BecamePresent: 1, BecameClear: 1}, time.Now())

	if snap1.Presence != logic.PresenceOccupied {
		t.Error("snapshot should be a copy; Presence was modified")
	}
	snap2 := tr.Snapshot()
	if snap2.Config.Channels[0] != "console" {
		t.Error("mutating a snapshot must not affect the tracker's channels")
	}
	if snap2.LastAlert.ID != "a1" {
		t.Error("mutating a snapshot must not affect the tracker's last alert")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Presence:        logic.PresenceOccupied,
		Counts:          logic.EventCounts{BecamePresent: 2, BecameClear: 1, Alerts: 1, Suppressed: 1},
		FramesProcessed: 120,
		LastAlert:       &AlertInfo{ID: "a1", Seq: 1, Timestamp: start.Add(time.Minute), Snapshot: "alerts/a.jpg"},
		StartTime:       start,
		Now:             start.Add(2 * time.Minute),
		MQTTConnected:   true,
		Config: Config{
			SourceKind: "mjpeg",
			Threshold:  0.5,
			CooldownMs: 300000,
			Broker:     "tcp://localhost:1883",
			Channels:   []string{"snapshot", "console"},
		},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Presence != "OCCUPIED" {
		t.Errorf("presence: got %s", s.Presence)
	}
	if s.UptimeSeconds != 120 {
		t.Errorf("uptime_seconds: got %d, want 120", s.UptimeSeconds)
	}
	if s.CooldownRemainingSeconds != 240 {
		t.Errorf("cooldown_remaining_seconds: got %d, want 240", s.CooldownRemainingSeconds)
	}
	if s.Counts.Suppressed != 1 || s.Counts.Alerts != 1 {
		t.Errorf("unexpected counts: %+v", s.Counts)
	}
	if s.LastAlert == nil || s.LastAlert.Snapshot != "alerts/a.jpg" {
		t.Errorf("unexpected last_alert: %+v", s.LastAlert)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("unexpected mqtt: %+v", s.MQTT)
	}
	if len(s.Config.Channels) != 2 {
		t.Errorf("unexpected channels: %v", s.Config.Channels)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web JSON should not carry event or reason")
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	snap := Snapshot{Now: time.Now(), StartTime: time.Now()}

	data := FormatJSON(snap)
	if !strings.Contains(string(data), `"presence": "UNKNOWN"`) {
		t.Errorf("expected UNKNOWN presence, got %s", data)
	}
	if !strings.Contains(string(data), `"channels": []`) {
		t.Errorf("expected empty channels array, got %s", data)
	}
	if strings.Contains(string(data), "last_alert") {
		t.Error("last_alert should be omitted before any alert")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{Presence: logic.PresenceClear, StartTime: start, Now: start}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("event: got %s", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("reason: got %s", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{Presence: logic.PresenceClear, StartTime: time.Now(), Now: time.Now()}

	data := FormatStatusEvent(snap, "STARTUP", "")
	if strings.Contains(string(data), `"reason"`) {
		t.Errorf("reason should be omitted: %s", data)
	}
	if strings.Contains(string(data), "\n") {
		t.Error("MQTT status events should be compact JSON")
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(logic.PresenceOccupied, logic.EventCounts{BecamePresent: i}, time.Now())
			tr.SetMQTTConnected(i%2 == 0)
			tr.RecordAlert(logic.AlertEvent{ID: "a"})
			tr.RecordDetectError(time.Now())
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
