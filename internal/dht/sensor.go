// Package dht reads a DHT11 humidity/temperature sensor over a single GPIO
// line by bit-banging the start signal and timing the sensor's pulses.
//
// The package has no goroutines, no HTTP and no global state. Each call to
// Sensor.Read is exactly one attempt; retry policy belongs to the caller.
package dht

import (
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/sweeney/dht11-sensor/internal/gpio"
)

// Outcome describes one call to Sensor.Read.
type Outcome struct {
	Cached   bool
	Duration time.Duration
	Reading  Reading
	Err      error
}

// Observer is notified after every Read.
type Observer interface {
	ObserveRead(Outcome)
}

// Option configures a Sensor.
type Option func(*Sensor)

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(s *Sensor) { s.timing = t }
}

// WithClock overrides SystemClock. Used by tests.
func WithClock(c Clock) Option {
	return func(s *Sensor) { s.clock = c }
}

// WithLogger sets a logger for per-attempt debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sensor) { s.log = l }
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(s *Sensor) { s.observer = o }
}

// Sensor is a DHT11 on one line. It is safe for concurrent use: reads are
// serialized and never interleave on the line.
type Sensor struct {
	mu       sync.Mutex
	line     *gpio.Controller
	timing   Timing
	clock    Clock
	log      *slog.Logger
	observer Observer

	last    Reading
	hasLast bool
	lastAt  time.Time
}

// New returns a Sensor reading through line. The line must not be used by
// anything else while the Sensor exists.
func New(line *gpio.Controller, opts ...Option) *Sensor {
	s := &Sensor{
		line:   line,
		timing: DefaultTiming(),
		clock:  SystemClock(),
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timing returns the sensor's protocol constants.
func (s *Sensor) Timing() Timing {
	return s.timing
}

// Last returns the most recent good reading, if any.
func (s *Sensor) Last() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// Read returns a reading. If the last good reading is younger than
// MinInterval it is returned without touching the line. Otherwise one
// attempt is made, blocking for roughly InitHold plus the frame time.
// A failed attempt leaves the last good reading in place.
func (s *Sensor) Read() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.clock.Now()
	if s.hasLast && start.Sub(s.lastAt) < s.timing.MinInterval {
		s.notify(Outcome{Cached: true, Reading: s.last})
		return s.last, nil
	}

	r, err := s.attempt()
	took := s.clock.Now().Sub(start)
	if err != nil {
		s.log.Debug("dht read failed", "line", s.line.Offset(), "took", took, "err", err)
		s.notify(Outcome{Duration: took, Err: err})
		return Reading{}, err
	}

	r.CapturedAt = s.clock.Now()
	s.last = r
	s.hasLast = true
	s.lastAt = r.CapturedAt
	s.log.Debug("dht read", "line", s.line.Offset(), "took", took,
		"humidity", r.Humidity, "temperature", r.Temperature, "frame", r.Raw.String())
	s.notify(Outcome{Duration: took, Reading: r})
	return r, nil
}

func (s *Sensor) notify(o Outcome) {
	if s.observer != nil {
		s.observer.ObserveRead(o)
	}
}

// attempt runs the protocol once. The line is released on every return path.
func (s *Sensor) attempt() (r Reading, err error) {
	// Keep the goroutine on one thread so the scheduler does not migrate it
	// between polls.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		if rerr := s.line.Release(); rerr != nil {
			s.log.Warn("dht release line", "line", s.line.Offset(), "err", rerr)
		}
	}()

	if err := s.initiate(); err != nil {
		return Reading{}, err
	}

	bits, err := s.capture()
	if err != nil {
		return Reading{}, err
	}

	r, err = Decode(bits)
	if err != nil {
		return Reading{}, failAt(StateDecoding, err)
	}
	return r, nil
}

// initiate drives the start signal: HIGH to settle, LOW for InitHold,
// then hands the line back to the sensor as an input.
func (s *Sensor) initiate() error {
	t := s.timing

	if err := s.line.ClaimOutput(gpio.High); err != nil {
		return failAt(StateInitiating, err)
	}
	s.clock.Sleep(t.StabilizeHigh)

	if err := s.line.Write(gpio.Low); err != nil {
		return failAt(StateInitiating, err)
	}
	s.clock.Sleep(t.InitHold)

	pull := gpio.PullNone
	if t.PullUp {
		pull = gpio.PullUp
	}
	if err := s.line.ClaimInput(pull); err != nil {
		return failAt(StateInitiating, err)
	}
	return nil
}

// capture waits out the response handshake and times the 40 data pulses.
//
// After the start signal the sensor pulls LOW for ~80µs and HIGH for ~80µs.
// Each bit is then ~50µs LOW followed by a HIGH pulse of ~26-28µs (0) or
// ~70µs (1). The width of the HIGH pulse is measured as the time spent
// waiting for the line to fall again.
func (s *Sensor) capture() ([FrameBits]bool, error) {
	var bits [FrameBits]bool
	t := s.timing
	w := EdgeWaiter{Line: s.line, Clock: s.clock, Poll: t.PollInterval}

	s.clock.Sleep(t.GuardDelay)

	if _, ok, err := w.WaitForLevel(gpio.Low, t.ResponseTimeout); err != nil {
		return bits, failAt(StateAwaitingResponseLow, err)
	} else if !ok {
		return bits, failAt(StateAwaitingResponseLow, ErrNoResponse)
	}
	if _, ok, err := w.WaitForLevel(gpio.High, t.ResponseTimeout); err != nil {
		return bits, failAt(StateAwaitingResponseHigh, err)
	} else if !ok {
		return bits, failAt(StateAwaitingResponseHigh, ErrNoResponse)
	}

	// End of the response HIGH is the first bit boundary.
	if _, ok, err := w.WaitForLevel(gpio.Low, t.BitTimeout); err != nil || !ok {
		return bits, truncated(0, err)
	}

	for i := range bits {
		if _, ok, err := w.WaitForLevel(gpio.High, t.BitTimeout); err != nil || !ok {
			return bits, truncated(i, err)
		}
		width, ok, err := w.WaitForLevel(gpio.Low, t.BitTimeout)
		if err != nil || !ok {
			return bits, truncated(i, err)
		}
		if width <= 0 || width > t.BitTimeout {
			return bits, truncated(i, nil)
		}
		bits[i] = width > t.BitThreshold
	}
	return bits, nil
}

func truncated(bit int, err error) *ReadError {
	if err == nil {
		err = ErrTruncatedFrame
	} else {
		err = errors.Join(ErrTruncatedFrame, err)
	}
	return &ReadError{State: StateCapturingBits, Bit: bit, Err: err}
}
