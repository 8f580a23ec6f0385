// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/dht11-sensor/internal/dht"
	"github.com/sweeney/dht11-sensor/internal/logic"
)

// DefaultTopicPrefix is the root of all topics published by the daemon.
const DefaultTopicPrefix = "climate/dht11"

// Topics are the MQTT topics derived from a prefix.
type Topics struct {
	Reading string // latest good reading, retained
	Events  string // alert transitions
	System  string // lifecycle events
}

// NewTopics derives the topic set from prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Reading: prefix + "/reading",
		Events:  prefix + "/events",
		System:  prefix + "/system",
	}
}

// Publisher publishes readings and events to MQTT.
type Publisher interface {
	// PublishReading sends a good reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishReading(r dht.Reading) error

	// Publish sends an alert event to the broker.
	Publish(event logic.Event) error

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
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT", "MQTT_DISCONNECT"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ReadingPayload is the MQTT payload for a reading.
type ReadingPayload struct {
	Reading ReadingInner `json:"reading"`
}

// ReadingInner contains the reading details.
type ReadingInner struct {
	Timestamp   string `json:"timestamp"`
	Temperature int    `json:"temperature"`
	Humidity    int    `json:"humidity"`
}

// FormatReadingPayload creates the JSON payload for a reading.
func FormatReadingPayload(r dht.Reading) ([]byte, error) {
	return json.Marshal(ReadingPayload{
		Reading: ReadingInner{
			Timestamp:   r.CapturedAt.UTC().Format(time.RFC3339),
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
		},
	})
}

// Payload represents the MQTT payload for an alert event.
type Payload struct {
	Alert AlertPayload `json:"alert"`
}

// AlertPayload contains the alert event details.
type AlertPayload struct {
	Timestamp   string        `json:"timestamp"`
	Event       string        `json:"event"`
	Temperature QuantityState `json:"temperature"`
	Humidity    QuantityState `json:"humidity"`
}

// QuantityState represents one measured quantity's alert state.
type QuantityState struct {
	State string `json:"state"`
	Value int    `json:"value"`
}

// FormatPayload creates the JSON payload for an alert event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Alert: AlertPayload{
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
			Event:       string(event.Type),
			Temperature: QuantityState{State: string(event.TempState), Value: event.Temperature},
			Humidity:    QuantityState{State: string(event.HumidityState), Value: event.Humidity},
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

// Discard is a Publisher that drops everything. It stands in when no broker
// is configured.
type Discard struct{}

func (Discard) PublishReading(dht.Reading) error { return nil }
func (Discard) Publish(logic.Event) error        { return nil }
func (Discard) PublishSystem(SystemEvent) error  { return nil }
func (Discard) Close() error                     { return nil }
func (Discard) IsConnected() bool                { return false }
