package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/topre-kscan/internal/matrix"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Activity      string     `json:"activity"`
	IntervalMs    int64      `json:"interval_ms"`
	Scanning      bool       `json:"scanning"`
	Pressed       []KeyJSON  `json:"pressed"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Scans         ScansJSON  `json:"scans"`
	Config        ConfigJSON `json:"config"`
}

// KeyJSON is one held key.
type KeyJSON struct {
	Row   int `json:"row"`
	Col   int `json:"col"`
	Index int `json:"index"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ScansJSON is the JSON representation of scan counters.
type ScansJSON struct {
	Total     int    `json:"total"`
	Failed    int    `json:"failed"`
	Changes   int    `json:"changes"`
	Last      string `json:"last,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend        string `json:"backend"`
	PowerMode      string `json:"power_mode"`
	ActiveMs       int64  `json:"active_ms"`
	IdleMs         int64  `json:"idle_ms"`
	SleepMs        int64  `json:"sleep_ms"`
	IdleTimeoutMs  int64  `json:"idle_timeout_ms"`
	SleepTimeoutMs int64  `json:"sleep_timeout_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
	SerialDevice   string `json:"serial_device,omitempty"`
}

// PressedKeys lists the held keys in row-major order.
func PressedKeys(r matrix.Readings) []KeyJSON {
	keys := []KeyJSON{}
	for row := 0; row < matrix.Rows; row++ {
		for col := 0; col < matrix.Cols; col++ {
			i := matrix.Index(row, col)
			if r[i] {
				keys = append(keys, KeyJSON{Row: row, Col: col, Index: i})
			}
		}
	}
	return keys
}

func buildInner(snap Snapshot) StatusInner {
	scans := ScansJSON{
		Total:     snap.Stats.Scans,
		Failed:    snap.Stats.FailedScans,
		Changes:   snap.Stats.Changes,
		LastError: snap.Stats.LastError,
	}
	if !snap.Stats.LastScan.IsZero() {
		scans.Last = snap.Stats.LastScan.UTC().Format(time.RFC3339Nano)
	}

	c := snap.Config
	return StatusInner{
		Activity:      snap.Activity.String(),
		IntervalMs:    snap.Interval.Milliseconds(),
		Scanning:      snap.Scanning,
		Pressed:       PressedKeys(snap.Pressed),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: c.Broker},
		Scans:         scans,
		Config: ConfigJSON{
			Backend:        c.Backend,
			PowerMode:      c.PowerMode,
			ActiveMs:       c.ActiveMs,
			IdleMs:         c.IdleMs,
			SleepMs:        c.SleepMs,
			IdleTimeoutMs:  c.IdleTimeoutMs,
			SleepTimeoutMs: c.SleepTimeoutMs,
			HeartbeatMs:    c.HeartbeatMs,
			Broker:         c.Broker,
			HTTPAddr:       c.HTTPAddr,
			SerialDevice:   c.SerialDevice,
		},
	}
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
