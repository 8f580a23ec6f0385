// Package status provides a thread-safe holder for the latest sensor state.
// It is written by the polling loop and read by HTTP handlers, the websocket
// feed and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/dht11-sensor/internal/dht"
	"github.com/sweeney/dht11-sensor/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend       string
	Pin           int
	PollMs        int64
	MinIntervalMs int64
	DebounceMs    int64
	HeartbeatMs   int64
	Thresholds    logic.Thresholds
	Broker        string
	HTTPAddr      string
}

// ReadCounts counts attempts that drove the line.
type ReadCounts struct {
	OK     int
	Failed int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Reading       dht.Reading
	HasReading    bool
	LastError     string
	LastErrorAt   time.Time
	Reads         ReadCounts
	TempState     logic.State
	HumidityState logic.State
	Baselined     bool
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	InstanceID    string
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Age returns how old the current reading is, or 0 if there is none.
func (s Snapshot) Age() time.Duration {
	if !s.HasReading {
		return 0
	}
	return s.Now.Sub(s.Reading.CapturedAt)
}

// TemperatureWarning reports whether the current reading exceeds the
// temperature threshold, independent of debounce.
func (s Snapshot) TemperatureWarning() bool {
	return s.HasReading && s.Config.Thresholds.TemperatureState(s.Reading.Temperature) == logic.StateHigh
}

// HumidityWarning reports whether the current reading exceeds the
// humidity threshold, independent of debounce.
func (s Snapshot) HumidityWarning() bool {
	return s.HasReading && s.Config.Thresholds.HumidityState(s.Reading.Humidity) == logic.StateHigh
}

// Tracker holds mutable daemon state behind an RWMutex and fans out
// snapshots to subscribers after each reading or failure.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, instanceID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:  startTime,
			InstanceID: instanceID,
			Config:     cfg,
		},
		now:  time.Now,
		subs: make(map[int]chan Snapshot),
	}
}

// Update stores a new good reading.
func (t *Tracker) Update(r dht.Reading) {
	t.mu.Lock()
	t.snap.Reading = r
	t.snap.HasReading = true
	t.snap.Reads.OK++
	t.mu.Unlock()
	t.broadcast()
}

// RecordError stores a failed attempt. The last good reading is kept.
func (t *Tracker) RecordError(err error, at time.Time) {
	t.mu.Lock()
	t.snap.LastError = err.Error()
	t.snap.LastErrorAt = at
	t.snap.Reads.Failed++
	t.mu.Unlock()
	t.broadcast()
}

// SetAlerts sets the debounced alert states and event counts.
func (t *Tracker) SetAlerts(temp, humidity logic.State, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.TempState = temp
	t.snap.HumidityState = humidity
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

// Subscribe returns a channel that receives a snapshot after every Update
// or RecordError. A slow subscriber loses its oldest pending snapshot, never
// blocks the writer. Call cancel to unsubscribe; it closes the channel.
func (t *Tracker) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	t.subMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (t *Tracker) broadcast() {
	snap := t.Snapshot()

	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
