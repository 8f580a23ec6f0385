package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	InstanceID    string       `json:"instance_id"`
	Reading       *ReadingJSON `json:"reading"`
	LastError     *ErrorJSON   `json:"last_error,omitempty"`
	Alerts        AlertsJSON   `json:"alerts"`
	Reads         ReadsJSON    `json:"reads"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the JSON representation of the latest good reading.
type ReadingJSON struct {
	Temperature int    `json:"temperature"`
	Humidity    int    `json:"humidity"`
	CapturedAt  string `json:"captured_at"`
	AgeSeconds  int64  `json:"age_seconds"`
}

// ErrorJSON is the JSON representation of the last failed attempt.
type ErrorJSON struct {
	Message string `json:"message"`
	At      string `json:"at"`
}

// AlertsJSON reports the debounced alert states and the instantaneous
// warnings for the current reading.
type AlertsJSON struct {
	Temperature        string `json:"temperature"`
	Humidity           string `json:"humidity"`
	Ready              bool   `json:"ready"`
	TemperatureWarning bool   `json:"temperature_warning"`
	HumidityWarning    bool   `json:"humidity_warning"`
}

// ReadsJSON counts attempts that drove the line.
type ReadsJSON struct {
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	TempHigh     int `json:"temp_high"`
	TempOK       int `json:"temp_ok"`
	HumidityHigh int `json:"humidity_high"`
	HumidityOK   int `json:"humidity_ok"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend         string `json:"backend"`
	Pin             int    `json:"pin"`
	PollMs          int64  `json:"poll_ms"`
	MinIntervalMs   int64  `json:"min_interval_ms"`
	DebounceMs      int64  `json:"debounce_ms"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	TempWarning     int    `json:"temperature_warning"`
	HumidityWarning int    `json:"humidity_warning"`
	Broker          string `json:"broker"`
	HTTPAddr        string `json:"http_addr"`
}

func stateOrUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		InstanceID: snap.InstanceID,
		Alerts: AlertsJSON{
			Temperature:        stateOrUnknown(string(snap.TempState)),
			Humidity:           stateOrUnknown(string(snap.HumidityState)),
			Ready:              snap.Baselined,
			TemperatureWarning: snap.TemperatureWarning(),
			HumidityWarning:    snap.HumidityWarning(),
		},
		Reads:         ReadsJSON{OK: snap.Reads.OK, Failed: snap.Reads.Failed},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			TempHigh:     snap.Counts.TempHigh,
			TempOK:       snap.Counts.TempOK,
			HumidityHigh: snap.Counts.HumidityHigh,
			HumidityOK:   snap.Counts.HumidityOK,
		},
		Config: ConfigJSON{
			Backend:         snap.Config.Backend,
			Pin:             snap.Config.Pin,
			PollMs:          snap.Config.PollMs,
			MinIntervalMs:   snap.Config.MinIntervalMs,
			DebounceMs:      snap.Config.DebounceMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			TempWarning:     snap.Config.Thresholds.Temperature,
			HumidityWarning: snap.Config.Thresholds.Humidity,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
		},
	}

	if snap.HasReading {
		inner.Reading = &ReadingJSON{
			Temperature: snap.Reading.Temperature,
			Humidity:    snap.Reading.Humidity,
			CapturedAt:  snap.Reading.CapturedAt.UTC().Format(time.RFC3339),
			AgeSeconds:  int64(snap.Age().Truncate(time.Second).Seconds()),
		}
	}
	if snap.LastError != "" {
		inner.LastError = &ErrorJSON{
			Message: snap.LastError,
			At:      snap.LastErrorAt.UTC().Format(time.RFC3339),
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatCompactJSON returns the web status without indentation, for the
// websocket feed.
func FormatCompactJSON(snap Snapshot) []byte {
	data, _ := json.Marshal(StatusJSON{Status: buildInner(snap)})
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
