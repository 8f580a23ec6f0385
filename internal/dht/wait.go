package dht

import (
	"time"

	"github.com/sweeney/dht11-sensor/internal/gpio"
)

// LevelReader samples a line. *gpio.Controller satisfies it.
type LevelReader interface {
	Read() (gpio.Level, error)
}

// EdgeWaiter polls a line until it reaches a level.
type EdgeWaiter struct {
	Line  LevelReader
	Clock Clock
	Poll  time.Duration
}

// WaitForLevel polls until the line reads target or timeout elapses.
// It returns the time spent waiting and whether the level was reached.
// A sample taken after timeout has passed never counts as reaching the
// level. A non-nil error means the line could not be read at all.
func (w EdgeWaiter) WaitForLevel(target gpio.Level, timeout time.Duration) (time.Duration, bool, error) {
	start := w.Clock.Now()
	for {
		level, err := w.Line.Read()
		if err != nil {
			return 0, false, err
		}
		elapsed := w.Clock.Now().Sub(start)
		if elapsed > timeout {
			return elapsed, false, nil
		}
		if level == target {
			return elapsed, true, nil
		}
		if elapsed == timeout {
			return elapsed, false, nil
		}
		w.Clock.Sleep(w.Poll)
	}
}
