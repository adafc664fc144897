// Package mqtt publishes matrix change events and daemon lifecycle events,
// and receives activity state commands.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/topre-kscan/internal/matrix"
)

// DefaultTopicPrefix is prepended to every topic.
const DefaultTopicPrefix = "keyboard/kscan"

// Topics are the topics used by one daemon.
type Topics struct {
	Events   string // key change events
	System   string // STARTUP, SHUTDOWN, HEARTBEAT
	Activity string // ACTIVE/IDLE/SLEEP commands, subscribed
}

// NewTopics derives the topics from prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Events:   prefix + "/events",
		System:   prefix + "/system",
		Activity: prefix + "/activity",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a key change event.
	// Returns error if publishing fails (should not crash the process).
	Publish(event KeyEvent) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// KeyEvent is a matrix change stamped with the time it was reported.
type KeyEvent struct {
	Timestamp time.Time
	matrix.Change
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Key states in payloads.
const (
	StatePressed  = "PRESSED"
	StateReleased = "RELEASED"
)

// Payload represents the MQTT message payload for a key event.
type Payload struct {
	Key KeyPayload `json:"key"`
}

// KeyPayload contains the key event details.
type KeyPayload struct {
	Timestamp string `json:"timestamp"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Index     int    `json:"index"`
	State     string `json:"state"`
}

// FormatPayload creates the JSON payload for a key event.
func FormatPayload(event KeyEvent) ([]byte, error) {
	state := StateReleased
	if event.Pressed {
		state = StatePressed
	}
	payload := Payload{
		Key: KeyPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Row:       event.Row,
			Col:       event.Col,
			Index:     event.Index(),
			State:     state,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the payload for simple system events (LWT, RECONNECTED)
// that don't carry a full status snapshot.
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
// If event.RawPayload is set, it is returned directly.
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
