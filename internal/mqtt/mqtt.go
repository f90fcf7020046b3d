// Package mqtt publishes relay transitions and collector lifecycle events.
// Sensor readings are never published; they only go to the record file.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// Topic is the MQTT topic for relay events.
const Topic = "farmbeats/sensor/relay/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "farmbeats/sensor/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a relay event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// EventType is the kind of relay transition.
type EventType string

const (
	EventRelayOn  EventType = "RELAY_ON"
	EventRelayOff EventType = "RELAY_OFF"
)

// Event is a relay transition observed by the collector.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Counts    logic.TransitionCounts
}

// EventFromSnapshot returns the relay event carried by s, if any.
func EventFromSnapshot(s logic.Snapshot, counts logic.TransitionCounts) (Event, bool) {
	if !s.RelayChanged || !s.Relay.Valid {
		return Event{}, false
	}
	typ := EventRelayOff
	if s.Relay.Float == logic.RelayOn {
		typ = EventRelayOn
	}
	return Event{Timestamp: s.Time, Type: typ, Counts: counts}, true
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Relay RelayPayload `json:"relay"`
}

// RelayPayload contains the relay event details.
type RelayPayload struct {
	Timestamp string       `json:"timestamp"`
	Event     string       `json:"event"`
	State     string       `json:"state"`
	Counts    CountPayload `json:"counts"`
}

// CountPayload is the number of transitions since startup.
type CountPayload struct {
	On  int `json:"on"`
	Off int `json:"off"`
}

// FormatPayload creates the JSON payload for a relay event.
func FormatPayload(event Event) ([]byte, error) {
	state := "OFF"
	if event.Type == EventRelayOn {
		state = "ON"
	}
	payload := Payload{
		Relay: RelayPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			State:     state,
			Counts:    CountPayload{On: event.Counts.On, Off: event.Counts.Off},
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
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
