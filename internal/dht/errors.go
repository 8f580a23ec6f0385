package dht

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResponse means the sensor did not acknowledge the start signal.
	ErrNoResponse = errors.New("dht: no response from sensor")

	// ErrTruncatedFrame means a wait timed out (or a pulse had zero width)
	// while capturing the 40 data bits.
	ErrTruncatedFrame = errors.New("dht: truncated frame")

	// ErrChecksumMismatch means a full frame was captured but its checksum
	// byte does not match the sum of the data bytes.
	ErrChecksumMismatch = errors.New("dht: checksum mismatch")
)

// State is a step of the read protocol.
type State int

const (
	StateIdle State = iota
	StateInitiating
	StateAwaitingResponseLow
	StateAwaitingResponseHigh
	StateCapturingBits
	StateDecoding
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                 "idle",
	StateInitiating:           "initiating",
	StateAwaitingResponseLow:  "awaiting-response-low",
	StateAwaitingResponseHigh: "awaiting-response-high",
	StateCapturingBits:        "capturing-bits",
	StateDecoding:             "decoding",
	StateDone:                 "done",
	StateFailed:               "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ReadError describes a failed read attempt. Err is one of ErrNoResponse,
// ErrTruncatedFrame, ErrChecksumMismatch, gpio.ErrLineBusy or
// gpio.ErrLineUnavailable (possibly wrapped).
type ReadError struct {
	State State // state the attempt failed in
	Bit   int   // bit index when State is StateCapturingBits, else -1
	Err   error
}

func (e *ReadError) Error() string {
	if e.State == StateCapturingBits && e.Bit >= 0 {
		return fmt.Sprintf("dht read failed in %s at bit %d: %v", e.State, e.Bit, e.Err)
	}
	return fmt.Sprintf("dht read failed in %s: %v", e.State, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

func failAt(state State, err error) *ReadError {
	return &ReadError{State: state, Bit: -1, Err: err}
}
