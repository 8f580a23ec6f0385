// Package logic contains pure alerting logic for climate readings.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State is the alert level of a measured quantity.
type State string

const (
	StateOK   State = "OK"
	StateHigh State = "HIGH"
)

// EventType represents an alert transition.
type EventType string

const (
	EventTempHigh     EventType = "TEMP_HIGH"
	EventTempOK       EventType = "TEMP_OK"
	EventHumidityHigh EventType = "HUMIDITY_HIGH"
	EventHumidityOK   EventType = "HUMIDITY_OK"
)

// Event represents an alert transition to be published.
type Event struct {
	Timestamp     time.Time
	Type          EventType
	TempState     State
	HumidityState State
	Temperature   int
	Humidity      int
}

// Thresholds are the warning limits. A value strictly above its limit is HIGH.
type Thresholds struct {
	Temperature int // degrees Celsius
	Humidity    int // percent
}

// DefaultThresholds matches the original dashboard's warning levels.
func DefaultThresholds() Thresholds {
	return Thresholds{Temperature: 40, Humidity: 95}
}

// TemperatureState classifies a temperature.
func (t Thresholds) TemperatureState(celsius int) State {
	if celsius > t.Temperature {
		return StateHigh
	}
	return StateOK
}

// HumidityState classifies a humidity.
func (t Thresholds) HumidityState(percent int) State {
	if percent > t.Humidity {
		return StateHigh
	}
	return StateOK
}

// ChannelState tracks debounce state for a single quantity.
type ChannelState struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Input is one good reading.
type Input struct {
	Temperature int
	Humidity    int
	Time        time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	TempHigh     int
	TempOK       int
	HumidityHigh int
	HumidityOK   int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
