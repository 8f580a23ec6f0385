package logic

import "time"

// Detector tracks alert state and detects debounced threshold crossings.
type Detector struct {
	thresholds       Thresholds
	debounceDuration time.Duration
	temp             ChannelState
	humidity         ChannelState
	baselined        bool
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time
}

// NewDetector creates a detector for the given thresholds and debounce duration.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(thresholds Thresholds, debounceDuration time.Duration, startTime time.Time) *Detector {
	return &Detector{
		thresholds:       thresholds,
		debounceDuration: debounceDuration,
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
}

// Process takes a new reading and returns any events that should be emitted.
// Events are only returned after baseline is established and on state transitions.
func (d *Detector) Process(input Input) []Event {
	tempState := d.thresholds.TemperatureState(input.Temperature)
	humState := d.thresholds.HumidityState(input.Humidity)

	tempTransition := processChannel(&d.temp, tempState, input.Time, d.debounceDuration)
	humTransition := processChannel(&d.humidity, humState, input.Time, d.debounceDuration)

	if !d.baselined {
		if d.temp.Baselined && d.humidity.Baselined {
			d.baselined = true
		}
		return nil // No events until baseline established
	}

	var events []Event

	// Temperature first if both cross on the same reading
	if tempTransition {
		d.emit(&events, input, temperatureEvent(d.temp.Stable))
	}
	if humTransition {
		d.emit(&events, input, humidityEvent(d.humidity.Stable))
	}
	return events
}

func (d *Detector) emit(events *[]Event, input Input, t EventType) {
	*events = append(*events, Event{
		Timestamp:     input.Time,
		Type:          t,
		TempState:     d.temp.Stable,
		HumidityState: d.humidity.Stable,
		Temperature:   input.Temperature,
		Humidity:      input.Humidity,
	})

	switch t {
	case EventTempHigh:
		d.eventCounts.TempHigh++
	case EventTempOK:
		d.eventCounts.TempOK++
	case EventHumidityHigh:
		d.eventCounts.HumidityHigh++
	case EventHumidityOK:
		d.eventCounts.HumidityOK++
	}
}

// processChannel handles debounce logic for a single quantity.
// Returns true if the stable state changed.
func processChannel(ch *ChannelState, newState State, now time.Time, debounce time.Duration) bool {
	if !ch.Baselined {
		if ch.Pending != newState {
			// First sample, or state changed during baseline: restart
			ch.Pending = newState
			ch.PendingSince = now
			return false
		}
		if now.Sub(ch.PendingSince) >= debounce {
			ch.Stable = newState
			ch.Baselined = true
			ch.Pending = ""
		}
		return false
	}

	if newState == ch.Stable {
		ch.Pending = ""
		return false
	}

	if ch.Pending != newState {
		ch.Pending = newState
		ch.PendingSince = now
		return false
	}

	if now.Sub(ch.PendingSince) >= debounce {
		ch.Stable = newState
		ch.Pending = ""
		return true
	}
	return false
}

func temperatureEvent(to State) EventType {
	if to == StateHigh {
		return EventTempHigh
	}
	return EventTempOK
}

func humidityEvent(to State) EventType {
	if to == StateHigh {
		return EventHumidityHigh
	}
	return EventHumidityOK
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the current stable alert states.
func (d *Detector) CurrentState() (temp State, humidity State) {
	return d.temp.Stable, d.humidity.Stable
}

// EventCountsSnapshot returns a copy of the event counters.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// Thresholds returns the configured warning limits.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
