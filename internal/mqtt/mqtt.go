// Package mqtt publishes schedule telemetry over MQTT with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/flybox/internal/logic"
)

// Topic is the MQTT topic for event transitions.
const Topic = "flybox/controller/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "flybox/controller/system"

// Transition event types.
const (
	EventStart = "EVENT_START"
	EventStop  = "EVENT_STOP"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an event transition to the broker.
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

// Event is a scheduled event switching on or off.
type Event struct {
	Timestamp  time.Time
	Now        logic.Time // schedule time of the tick
	Transition logic.Transition
}

// SystemEvent represents a system lifecycle event (e.g., startup, halt, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "HALT"
	Reason     string // e.g., "SIGTERM", "RESET" (shutdown only), load error (halt)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Event EventPayload `json:"event"`
}

// EventPayload contains the transition details.
type EventPayload struct {
	Timestamp    string `json:"timestamp"`
	Type         string `json:"type"`
	Index        int    `json:"index"`
	Device       int    `json:"device"`
	Frequency    int    `json:"frequency"`
	Intensity    int    `json:"intensity"`
	Sunset       bool   `json:"sunset"`
	Start        string `json:"start"`
	Stop         string `json:"stop"`
	ScheduleTime string `json:"schedule_time"`
}

// FormatPayload creates the JSON payload for an event transition.
func FormatPayload(event Event) ([]byte, error) {
	tr := event.Transition
	typ := EventStop
	if tr.Active {
		typ = EventStart
	}
	payload := Payload{
		Event: EventPayload{
			Timestamp:    event.Timestamp.UTC().Format(time.RFC3339),
			Type:         typ,
			Index:        tr.Index,
			Device:       tr.Event.Device,
			Frequency:    tr.Event.Frequency,
			Intensity:    tr.Event.Intensity,
			Sunset:       tr.Event.Sunset,
			Start:        tr.Event.Start.String(),
			Stop:         tr.Event.Stop.String(),
			ScheduleTime: event.Now.String(),
		},
	}
	return json.Marshal(payload)
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

// Discard is a Publisher that drops everything. Used when no broker is configured.
type Discard struct{}

// Publish drops the event.
func (Discard) Publish(Event) error { return nil }

// PublishSystem drops the event.
func (Discard) PublishSystem(SystemEvent) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }

// IsConnected always reports false.
func (Discard) IsConnected() bool { return false }
