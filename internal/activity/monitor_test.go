package activity

import (
	"testing"
	"time"
)

func TestMonitorTiers(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMonitor(30*time.Second, 15*time.Minute, start)

	if s, changed := m.Check(start.Add(29 * time.Second)); s != Active || changed {
		t.Errorf("before idle timeout: got %v changed=%v", s, changed)
	}

	s, changed := m.Check(start.Add(30 * time.Second))
	if s != Idle || !changed {
		t.Errorf("at idle timeout: got %v changed=%v", s, changed)
	}

	if s, changed := m.Check(start.Add(time.Minute)); s != Idle || changed {
		t.Errorf("still idle: got %v changed=%v", s, changed)
	}

	s, changed = m.Check(start.Add(15 * time.Minute))
	if s != Sleep || !changed {
		t.Errorf("at sleep timeout: got %v changed=%v", s, changed)
	}
}

func TestMonitorRecordWakes(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMonitor(time.Second, 0, start)

	if m.Record(start.Add(500 * time.Millisecond)) {
		t.Error("Record while active should not report a change")
	}

	m.Check(start.Add(2 * time.Second))
	if m.State() != Idle {
		t.Fatalf("expected IDLE, got %v", m.State())
	}

	if !m.Record(start.Add(3 * time.Second)) {
		t.Error("Record while idle should report waking")
	}
	if m.State() != Active {
		t.Errorf("expected ACTIVE, got %v", m.State())
	}

	// Idle timer restarts from the last event.
	if s, _ := m.Check(start.Add(3500 * time.Millisecond)); s != Active {
		t.Errorf("expected ACTIVE half a second after event, got %v", s)
	}
}

func TestMonitorSleepDisabled(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMonitor(time.Second, 0, start)

	if s, _ := m.Check(start.Add(24 * time.Hour)); s != Idle {
		t.Errorf("with sleep disabled expected IDLE, got %v", s)
	}
}

func TestMonitorIgnoresOutOfOrderEvents(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMonitor(time.Second, 0, start)

	m.Record(start.Add(10 * time.Second))
	m.Record(start.Add(5 * time.Second))

	if s, _ := m.Check(start.Add(10500 * time.Millisecond)); s != Active {
		t.Errorf("expected ACTIVE, got %v", s)
	}
}
