// Package gpio provides exclusive access to a single GPIO line.
// The real implementations use the Linux GPIO character device or periph.io.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// Level is the logic level of a line.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Pull is the bias applied to a line claimed as input.
type Pull int

const (
	PullNone Pull = iota
	PullUp
)

func (p Pull) String() string {
	if p == PullUp {
		return "pull-up"
	}
	return "none"
}

var (
	// ErrLineBusy is returned when a line is already claimed elsewhere.
	ErrLineBusy = errors.New("gpio: line busy")

	// ErrLineUnavailable is returned when the chip handle is invalid or the
	// line cannot be accessed at all.
	ErrLineUnavailable = errors.New("gpio: line unavailable")

	// ErrWrongMode is returned by Write on a line not claimed as output and
	// by Read on a line not claimed as input.
	ErrWrongMode = errors.New("gpio: operation not valid in current mode")
)

// Chip is the host platform's GPIO capability.
// Offsets are chip-relative line numbers (BCM numbering on a Raspberry Pi).
type Chip interface {
	// ClaimOutput requests the line as an output driven to initial.
	// Returns ErrLineBusy if the line is already claimed.
	ClaimOutput(offset int, initial Level) error

	// ClaimInput requests the line as an input with the given bias.
	// Returns ErrLineBusy if the line is already claimed.
	ClaimInput(offset int, pull Pull) error

	// Write drives a line claimed as output.
	Write(offset int, level Level) error

	// Read samples a line claimed as input.
	Read(offset int) (Level, error)

	// Free releases a claimed line. Freeing an unclaimed line is a no-op.
	Free(offset int) error

	// Close frees every claimed line and releases the chip handle.
	Close() error
}

// DefaultPin is the BCM line the sensor's data pin is wired to.
const DefaultPin = 4

// DefaultChip is the character device chip exposing the header pins.
const DefaultChip = "gpiochip0"

// Consumer is the label attached to claimed lines.
const Consumer = "dht11-sensor"
