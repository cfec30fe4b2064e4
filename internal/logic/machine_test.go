package logic

import (
	"testing"
	"time"
)

func TestNewMachine(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMachine(startTime)
	if m.CurrentState() != PresenceClear {
		t.Errorf("expected initial state CLEAR, got %s", m.CurrentState())
	}
	if !m.lastHeartbeat.Equal(startTime) {
		t.Errorf("expected lastHeartbeat %v, got %v", startTime, m.lastHeartbeat)
	}
}

func TestMachineTransitionTable(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		from      Presence
		present   bool
		wantState Presence
		wantEvent EventType // "" means no event
	}{
		{"clear stays clear", PresenceClear, false, PresenceClear, ""},
		{"clear becomes occupied", PresenceClear, true, PresenceOccupied, EventBecamePresent},
		{"occupied stays occupied", PresenceOccupied, true, PresenceOccupied, ""},
		{"occupied becomes clear", PresenceOccupied, false, PresenceClear, EventBecameClear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(now)
			m.state = tt.from

			event := m.Process(Input{Present: tt.present, Time: now})
			if m.CurrentState() != tt.wantState {
				t.Errorf("state: got %s, want %s", m.CurrentState(), tt.wantState)
			}
			if tt.wantEvent == "" {
				if event != nil {
					t.Errorf("expected no event, got %s", event.Type)
				}
				return
			}
			if event == nil {
				t.Fatalf("expected %s event, got none", tt.wantEvent)
			}
			if event.Type != tt.wantEvent {
				t.Errorf("event: got %s, want %s", event.Type, tt.wantEvent)
			}
			if event.State != tt.wantState {
				t.Errorf("event state: got %s, want %s", event.State, tt.wantState)
			}
			if !event.Timestamp.Equal(now) {
				t.Errorf("event timestamp: got %v, want %v", event.Timestamp, now)
			}
		})
	}
}

func TestMachineRepeatsCollapse(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMachine(now)

	signals := []bool{false, true, true, false, true}
	var got []EventType
	for i, p := range signals {
		if e := m.Process(Input{Present: p, Time: now.Add(time.Duration(i) * time.Second)}); e != nil {
			got = append(got, e.Type)
		}
	}

	want := []EventType{EventBecamePresent, EventBecameClear, EventBecamePresent}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestMachineStateTracksLastSignal(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMachine(now)

	for i, p := range []bool{true, false, false, true, true, false, true} {
		m.Process(Input{Present: p, Time: now})
		want := PresenceClear
		if p {
			want = PresenceOccupied
		}
		if m.CurrentState() != want {
			t.Errorf("frame %d: state %s does not reflect signal %v", i, m.CurrentState(), p)
		}
	}
}

func TestMachineEventCounts(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMachine(now)

	for _, p := range []bool{true, false, true, false, true} {
		m.Process(Input{Present: p, Time: now})
	}

	counts := m.EventCountsSnapshot()
	if counts.BecamePresent != 3 {
		t.Errorf("BecamePresent: got %d, want 3", counts.BecamePresent)
	}
	if counts.BecameClear != 2 {
		t.Errorf("BecameClear: got %d, want 2", counts.BecameClear)
	}
}

func TestCheckHeartbeat(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMachine(start)
	interval := 15 * time.Minute

	if hb := m.CheckHeartbeat(start.Add(14*time.Minute), interval); hb != nil {
		t.Error("expected no heartbeat before interval")
	}

	m.Process(Input{Present: true, Time: start.Add(time.Minute)})

	hb := m.CheckHeartbeat(start.Add(15*time.Minute), interval)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("uptime: got %v, want 15m", hb.Uptime)
	}
	if hb.Counts.BecamePresent != 1 {
		t.Errorf("counts.BecamePresent: got %d, want 1", hb.Counts.BecamePresent)
	}

	// Interval restarts from the last heartbeat
	if hb := m.CheckHeartbeat(start.Add(20*time.Minute), interval); hb != nil {
		t.Error("expected no heartbeat 5m after previous one")
	}
	if hb := m.CheckHeartbeat(start.Add(30*time.Minute), interval); hb == nil {
		t.Error("expected heartbeat 15m after previous one")
	}
}

func TestCheckHeartbeatDisabled(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMachine(start)

	if hb := m.CheckHeartbeat(start.Add(24*time.Hour), 0); hb != nil {
		t.Error("expected nil heartbeat when interval is 0")
	}
	if hb := m.CheckHeartbeat(start.Add(24*time.Hour), -time.Second); hb != nil {
		t.Error("expected nil heartbeat when interval is negative")
	}
}
