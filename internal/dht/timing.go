package dht

import "time"

// Timing holds the protocol constants for the sensor family. They are
// calibration values rather than protocol semantics and may be tuned.
type Timing struct {
	// StabilizeHigh is how long the line is driven HIGH before the start pulse.
	StabilizeHigh time.Duration

	// InitHold is how long the line is held LOW to request a reading.
	InitHold time.Duration

	// GuardDelay is waited after switching to input, before looking for the
	// sensor's response.
	GuardDelay time.Duration

	// ResponseTimeout bounds each half of the sensor's response handshake.
	ResponseTimeout time.Duration

	// BitTimeout bounds each edge wait during bit capture.
	BitTimeout time.Duration

	// BitThreshold discriminates bits: a HIGH pulse strictly longer than the
	// threshold is a 1, anything else is a 0. It is compared against the
	// measured HIGH width (nominally 26-28µs for a 0 and 70µs for a 1), not
	// the whole bit period.
	BitThreshold time.Duration

	// PollInterval is the pause between line samples while waiting for an edge.
	PollInterval time.Duration

	// MinInterval is the minimum time between two reads of the sensor.
	// Reads requested sooner return the last good reading.
	MinInterval time.Duration

	// PullUp enables the internal pull-up while listening.
	PullUp bool
}

// DefaultTiming returns DHT11 timing.
func DefaultTiming() Timing {
	return Timing{
		StabilizeHigh:   time.Millisecond,
		InitHold:        18 * time.Millisecond,
		GuardDelay:      10 * time.Microsecond,
		ResponseTimeout: 100 * time.Microsecond,
		BitTimeout:      time.Millisecond,
		BitThreshold:    50 * time.Microsecond,
		PollInterval:    time.Microsecond,
		MinInterval:     2 * time.Second,
		PullUp:          true,
	}
}

// Clock is the time source for the protocol. Now must be monotonic.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// spinBelow is the duration under which SystemClock busy-waits instead of
// handing control to the scheduler, whose wake-up latency is far coarser
// than the pulses being timed.
const spinBelow = time.Millisecond

type systemClock struct{}

// SystemClock returns a Clock backed by the runtime's monotonic clock.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if d >= spinBelow {
		time.Sleep(d)
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}
