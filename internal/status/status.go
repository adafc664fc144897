// Package status provides a thread-safe status tracker for the scan daemon.
// It is read by the HTTP handlers and by the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/topre-kscan/internal/activity"
	"github.com/sweeney/topre-kscan/internal/kscan"
	"github.com/sweeney/topre-kscan/internal/matrix"
)

// Config contains daemon configuration for display.
type Config struct {
	Backend        string
	PowerMode      string
	ActiveMs       int64
	IdleMs         int64
	SleepMs        int64
	IdleTimeoutMs  int64
	SleepTimeoutMs int64
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
	SerialDevice   string
}

// Snapshot is a point-in-time view of daemon state.
type Snapshot struct {
	Pressed       matrix.Readings
	Activity      activity.State
	Interval      time.Duration
	Scanning      bool
	Stats         kscan.Stats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// PressedCount returns the number of keys currently held.
func (s Snapshot) PressedCount() int {
	n := 0
	for _, p := range s.Pressed {
		if p {
			n++
		}
	}
	return n
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
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Device is the part of kscan.Device the tracker reads.
type Device interface {
	Pressed() matrix.Readings
	Activity() activity.State
	Interval() time.Duration
	Enabled() bool
	Stats() kscan.Stats
}

// Refresh copies the current device state. Called from runLoop on every tick.
func (t *Tracker) Refresh(d Device) {
	pressed := d.Pressed()
	st := d.Activity()
	iv := d.Interval()
	on := d.Enabled()
	stats := d.Stats()

	t.mu.Lock()
	t.snap.Pressed = pressed
	t.snap.Activity = st
	t.snap.Interval = iv
	t.snap.Scanning = on
	t.snap.Stats = stats
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
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
