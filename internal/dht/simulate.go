package dht

import (
	"time"

	"github.com/sweeney/dht11-sensor/internal/gpio"
)

// Simulator plays a DHT11 on a gpio.FakeChip. It answers a start signal of at
// least MinHold with the response handshake and the current frame, timed
// against Clock. It backs the "fake" GPIO backend and the package tests.
type Simulator struct {
	Clock Clock

	// Frame is transmitted on each start signal unless NextFrame is set.
	Frame     Frame
	NextFrame func() Frame

	// MinHold is the shortest start pulse the sensor recognises.
	MinHold time.Duration
	// Delay is how long after release the sensor starts its response.
	Delay time.Duration
	// ZeroWidth and OneWidth are the HIGH pulse widths for 0 and 1 bits.
	ZeroWidth time.Duration
	OneWidth  time.Duration
	// Silent sensors never respond.
	Silent bool
	// StopAfter, if >= 0, stops transmitting after that many bits and
	// leaves the line HIGH.
	StopAfter int

	// Starts counts start signals the sensor answered.
	Starts int

	lowAt      time.Time
	driving    bool
	responding bool
	start      time.Time
	sending    Frame
}

// NewSimulator returns a Simulator with datasheet timing sending frame.
func NewSimulator(clock Clock, frame Frame) *Simulator {
	return &Simulator{
		Clock:     clock,
		Frame:     frame,
		MinHold:   18 * time.Millisecond,
		Delay:     30 * time.Microsecond,
		ZeroWidth: 27 * time.Microsecond,
		OneWidth:  70 * time.Microsecond,
		StopAfter: -1,
	}
}

// EncodeFrame builds the frame a DHT11 sends for the given values.
func EncodeFrame(humidity, temperature int) Frame {
	f := Frame{byte(humidity), 0, byte(temperature), 0, 0}
	f[4] = f.Sum()
	return f
}

// Attach installs the simulator as chip's level source and line hooks.
func (s *Simulator) Attach(chip *gpio.FakeChip) {
	chip.Source = s.level
	chip.OnWrite = func(_ int, l gpio.Level) {
		s.responding = false
		s.driving = l == gpio.Low
		if s.driving {
			s.lowAt = s.Clock.Now()
		}
	}
	chip.OnClaimInput = func(int, gpio.Pull) {
		now := s.Clock.Now()
		if s.driving && !s.Silent && now.Sub(s.lowAt) >= s.MinHold {
			s.responding = true
			s.start = now
			s.Starts++
			s.sending = s.Frame
			if s.NextFrame != nil {
				s.sending = s.NextFrame()
			}
		}
		s.driving = false
	}
}

func (s *Simulator) bit(i int) bool {
	return s.sending[i/8]&(0x80>>(i%8)) != 0
}

func (s *Simulator) level(int) gpio.Level {
	if !s.responding {
		return gpio.High
	}
	t := s.Clock.Now().Sub(s.start) - s.Delay
	if t < 0 {
		return gpio.High
	}

	const (
		respLow  = 80 * time.Microsecond
		respHigh = 80 * time.Microsecond
		bitLow   = 50 * time.Microsecond
	)
	if t < respLow {
		return gpio.Low
	}
	t -= respLow
	if t < respHigh {
		return gpio.High
	}
	t -= respHigh

	for i := 0; i < FrameBits; i++ {
		if s.StopAfter >= 0 && i >= s.StopAfter {
			return gpio.High
		}
		if t < bitLow {
			return gpio.Low
		}
		t -= bitLow
		w := s.ZeroWidth
		if s.bit(i) {
			w = s.OneWidth
		}
		if t < w {
			return gpio.High
		}
		t -= w
	}
	if t < bitLow {
		return gpio.Low
	}
	return gpio.High
}
