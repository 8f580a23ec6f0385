package gpio

import (
	"errors"
	"sync"
)

// FakeChip is a test double that records every line access.
// Input levels come from Source; outputs are recorded in Writes.
type FakeChip struct {
	mu sync.Mutex

	// Source supplies the level returned by Read. If nil, Read returns High
	// (an idle bus with pull-up).
	Source func(offset int) Level

	// Busy marks offsets that are claimed by another consumer.
	Busy map[int]bool

	// Unavailable, if set, makes every claim fail with ErrLineUnavailable.
	Unavailable bool

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Writes contains every level driven, in order, including the initial
	// level of each ClaimOutput.
	Writes []Level

	// OnWrite, if set, is called after every recorded write.
	OnWrite func(offset int, level Level)

	// OnClaimInput, if set, is called after a successful ClaimInput.
	OnClaimInput func(offset int, pull Pull)

	// Claims and Frees count successful claim and free calls on claimed lines.
	Claims int
	Frees  int
	Reads  int

	// Closed tracks if Close was called.
	Closed bool

	claimed map[int]Mode
	pulls   map[int]Pull
}

// NewFakeChip creates a FakeChip whose inputs read from source.
func NewFakeChip(source func(offset int) Level) *FakeChip {
	return &FakeChip{Source: source}
}

// ClaimOutput records an output claim.
func (f *FakeChip) ClaimOutput(offset int, initial Level) error {
	f.mu.Lock()
	if err := f.claimLocked(offset, ModeOutput); err != nil {
		f.mu.Unlock()
		return err
	}
	f.Writes = append(f.Writes, initial)
	hook := f.OnWrite
	f.mu.Unlock()

	if hook != nil {
		hook(offset, initial)
	}
	return nil
}

// ClaimInput records an input claim.
func (f *FakeChip) ClaimInput(offset int, pull Pull) error {
	f.mu.Lock()
	if err := f.claimLocked(offset, ModeInput); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.pulls == nil {
		f.pulls = make(map[int]Pull)
	}
	f.pulls[offset] = pull
	hook := f.OnClaimInput
	f.mu.Unlock()

	if hook != nil {
		hook(offset, pull)
	}
	return nil
}

func (f *FakeChip) claimLocked(offset int, mode Mode) error {
	if f.Unavailable || f.Closed {
		return ErrLineUnavailable
	}
	if f.Busy[offset] {
		return ErrLineBusy
	}
	if f.claimed == nil {
		f.claimed = make(map[int]Mode)
	}
	if _, ok := f.claimed[offset]; ok {
		return ErrLineBusy
	}
	f.claimed[offset] = mode
	f.Claims++
	return nil
}

// Write records the driven level.
func (f *FakeChip) Write(offset int, level Level) error {
	f.mu.Lock()
	if f.claimed[offset] != ModeOutput {
		f.mu.Unlock()
		return ErrWrongMode
	}
	f.Writes = append(f.Writes, level)
	hook := f.OnWrite
	f.mu.Unlock()

	if hook != nil {
		hook(offset, level)
	}
	return nil
}

// Read returns the level from Source.
func (f *FakeChip) Read(offset int) (Level, error) {
	f.mu.Lock()
	if f.ReadError != nil {
		f.mu.Unlock()
		return Low, f.ReadError
	}
	if f.claimed[offset] != ModeInput {
		f.mu.Unlock()
		return Low, ErrWrongMode
	}
	f.Reads++
	source := f.Source
	f.mu.Unlock()

	if source == nil {
		return High, nil
	}
	return source(offset), nil
}

// Free releases a claimed line. Freeing an unclaimed line is a no-op.
func (f *FakeChip) Free(offset int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claimed[offset]; !ok {
		return nil
	}
	delete(f.claimed, offset)
	f.Frees++
	return nil
}

// Close marks the chip as closed and frees everything.
func (f *FakeChip) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return errors.New("fake chip already closed")
	}
	for offset := range f.claimed {
		delete(f.claimed, offset)
		f.Frees++
	}
	f.Closed = true
	return nil
}

// Claimed reports whether offset currently holds a claim.
func (f *FakeChip) Claimed(offset int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.claimed[offset]
	return ok
}

// PullFor returns the bias of the most recent input claim on offset.
func (f *FakeChip) PullFor(offset int) Pull {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulls[offset]
}

// Counts returns claims, frees and reads under the lock.
func (f *FakeChip) Counts() (claims, frees, reads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Claims, f.Frees, f.Reads
}

// Reset clears recorded accesses and claims.
func (f *FakeChip) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = nil
	f.Claims = 0
	f.Frees = 0
	f.Reads = 0
	f.Closed = false
	f.claimed = nil
	f.pulls = nil
}
