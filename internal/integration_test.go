package internal

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sweeney/dht11-sensor/internal/dht"
	"github.com/sweeney/dht11-sensor/internal/gpio"
	"github.com/sweeney/dht11-sensor/internal/logic"
	"github.com/sweeney/dht11-sensor/internal/metrics"
	"github.com/sweeney/dht11-sensor/internal/mqtt"
	"github.com/sweeney/dht11-sensor/internal/status"
	"github.com/sweeney/dht11-sensor/internal/web"
)

// stepClock advances only when slept on or stepped explicitly.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// pipeline is the daemon's per-tick wiring, driven by hand.
type pipeline struct {
	clock     *stepClock
	chip      *gpio.FakeChip
	sim       *dht.Simulator
	sensor    *dht.Sensor
	metrics   *metrics.Metrics
	detector  *logic.Detector
	tracker   *status.Tracker
	publisher *mqtt.FakePublisher
	frames    []dht.Frame
}

func newPipeline(t *testing.T, frames []dht.Frame) *pipeline {
	t.Helper()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &pipeline{
		clock:     &stepClock{now: start},
		chip:      gpio.NewFakeChip(nil),
		metrics:   metrics.New(),
		detector:  logic.NewDetector(logic.DefaultThresholds(), 5*time.Second, start),
		tracker:   status.NewTracker(start, "it", status.Config{Thresholds: logic.DefaultThresholds()}),
		publisher: mqtt.NewFakePublisher(),
		frames:    frames,
	}
	p.sim = dht.NewSimulator(p.clock, dht.Frame{})
	p.sim.NextFrame = func() dht.Frame {
		f := p.frames[0]
		if len(p.frames) > 1 {
			p.frames = p.frames[1:]
		}
		return f
	}
	p.sim.Attach(p.chip)
	p.sensor = dht.New(gpio.NewController(p.chip, gpio.DefaultPin),
		dht.WithClock(p.clock),
		dht.WithObserver(p.metrics))
	return p
}

// tick performs one poll and then lets the poll interval pass.
func (p *pipeline) tick(t *testing.T) error {
	t.Helper()
	now := p.clock.Now()
	r, err := p.sensor.Read()
	if err != nil {
		p.tracker.RecordError(err, now)
	} else {
		events := p.detector.Process(logic.Input{Temperature: r.Temperature, Humidity: r.Humidity, Time: now})
		temp, hum := p.detector.CurrentState()
		p.tracker.SetAlerts(temp, hum, p.detector.IsBaselined(), p.detector.EventCountsSnapshot())
		p.tracker.Update(r)
		if err := p.publisher.PublishReading(r); err != nil {
			t.Fatalf("publish reading: %v", err)
		}
		for _, e := range events {
			if err := p.publisher.Publish(e); err != nil {
				t.Fatalf("publish event: %v", err)
			}
		}
	}
	if p.chip.Claimed(gpio.DefaultPin) {
		t.Fatal("line left claimed after read")
	}
	p.clock.Sleep(2 * time.Second)
	return err
}

func repeatFrame(f dht.Frame, n int) []dht.Frame {
	out := make([]dht.Frame, n)
	for i := range out {
		out[i] = f
	}
	return out
}

// TestIntegrationFullFlow goes from the simulated line to MQTT payloads.
func TestIntegrationFullFlow(t *testing.T) {
	frames := append(repeatFrame(dht.EncodeFrame(50, 25), 4), repeatFrame(dht.EncodeFrame(50, 41), 4)...)
	p := newPipeline(t, frames)

	for i := 0; i < 8; i++ {
		if err := p.tick(t); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	if len(p.publisher.Readings) != 8 {
		t.Fatalf("expected 8 readings, got %d", len(p.publisher.Readings))
	}
	if len(p.publisher.Events) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(p.publisher.Events))
	}

	var payload mqtt.Payload
	if err := json.Unmarshal(p.publisher.Payloads[0], &payload); err != nil {
		t.Fatalf("invalid alert payload: %v", err)
	}
	if payload.Alert.Event != "TEMP_HIGH" || payload.Alert.Temperature.Value != 41 {
		t.Errorf("alert payload: %+v", payload.Alert)
	}

	var reading mqtt.ReadingPayload
	if err := json.Unmarshal(p.publisher.ReadingPayloads[0], &reading); err != nil {
		t.Fatalf("invalid reading payload: %v", err)
	}
	if reading.Reading.Temperature != 25 || reading.Reading.Humidity != 50 {
		t.Errorf("reading payload: %+v", reading.Reading)
	}

	if p.sim.Starts != 8 {
		t.Errorf("start signals: got %d, want 8", p.sim.Starts)
	}
}

func TestIntegrationFailureKeepsLastReading(t *testing.T) {
	p := newPipeline(t, []dht.Frame{dht.EncodeFrame(40, 20)})

	if err := p.tick(t); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	p.sim.Silent = true
	err := p.tick(t)
	if !errors.Is(err, dht.ErrNoResponse) {
		t.Fatalf("expected no response, got %v", err)
	}

	snap := p.tracker.Snapshot()
	if !snap.HasReading || snap.Reading.Humidity != 40 {
		t.Errorf("last good reading lost: %+v", snap.Reading)
	}
	if snap.Reads.OK != 1 || snap.Reads.Failed != 1 {
		t.Errorf("read counts: %+v", snap.Reads)
	}

	n, err := testutil.GatherAndCount(p.metrics.Registry(), "dht_reads_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Errorf("expected ok and no_response series, got %d", n)
	}
}

func TestIntegrationCorruptFrame(t *testing.T) {
	p := newPipeline(t, []dht.Frame{{0x32, 0x00, 0x19, 0x00, 0x4C}})

	err := p.tick(t)
	if !errors.Is(err, dht.ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	if len(p.publisher.Readings) != 0 {
		t.Error("corrupt frame must not be published")
	}
}

func TestIntegrationDashboard(t *testing.T) {
	p := newPipeline(t, []dht.Frame{dht.EncodeFrame(96, 41)})
	if err := p.tick(t); err != nil {
		t.Fatalf("tick: %v", err)
	}
	p.sim.Silent = true
	p.tick(t)

	srv := web.New(":0", p.tracker, web.Options{Metrics: p.metrics.Handler()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if got := strings.Count(string(body), ">WARNING<"); got != 2 {
		t.Errorf("expected both warning boxes, got %d", got)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		`dht_reads_total{result="ok"} 1`,
		`dht_reads_total{result="no_response"} 1`,
		`dht_temperature_celsius 41`,
		`dht_humidity_percent 96`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
