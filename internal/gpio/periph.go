package gpio

import (
	"fmt"
	"strconv"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphChip drives lines through the periph.io host drivers. periph has no
// notion of a claim, so PeriphChip keeps its own claim table to give the same
// busy semantics as the character device.
type PeriphChip struct {
	mu      sync.Mutex
	lookup  func(name string) pgpio.PinIO
	claimed map[int]pgpio.PinIO
}

// OpenPeriph initialises the periph host drivers.
func OpenPeriph() (*PeriphChip, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w: %v", ErrLineUnavailable, err)
	}
	return newPeriphChip(gpioreg.ByName), nil
}

func newPeriphChip(lookup func(name string) pgpio.PinIO) *PeriphChip {
	return &PeriphChip{
		lookup:  lookup,
		claimed: make(map[int]pgpio.PinIO),
	}
}

// PinName returns the periph registry name for a BCM offset.
func PinName(offset int) string {
	return "GPIO" + strconv.Itoa(offset)
}

// ClaimOutput requests the line as an output driven to initial.
func (p *PeriphChip) ClaimOutput(offset int, initial Level) error {
	return p.claim(offset, func(pin pgpio.PinIO) error {
		return pin.Out(initial == High)
	})
}

// ClaimInput requests the line as an input with the given bias.
func (p *PeriphChip) ClaimInput(offset int, pull Pull) error {
	bias := pgpio.Float
	if pull == PullUp {
		bias = pgpio.PullUp
	}
	return p.claim(offset, func(pin pgpio.PinIO) error {
		return pin.In(bias, pgpio.NoEdge)
	})
}

func (p *PeriphChip) claim(offset int, configure func(pgpio.PinIO) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.claimed[offset]; ok {
		return ErrLineBusy
	}
	pin := p.lookup(PinName(offset))
	if pin == nil {
		return fmt.Errorf("pin %s: %w", PinName(offset), ErrLineUnavailable)
	}
	if err := configure(pin); err != nil {
		return fmt.Errorf("configure pin %s: %w: %v", PinName(offset), ErrLineUnavailable, err)
	}
	p.claimed[offset] = pin
	return nil
}

// Write drives a claimed output line.
func (p *PeriphChip) Write(offset int, level Level) error {
	pin, err := p.pin(offset)
	if err != nil {
		return err
	}
	if err := pin.Out(level == High); err != nil {
		return fmt.Errorf("write pin %s: %w: %v", PinName(offset), ErrLineUnavailable, err)
	}
	return nil
}

// Read samples a claimed input line.
func (p *PeriphChip) Read(offset int) (Level, error) {
	pin, err := p.pin(offset)
	if err != nil {
		return Low, err
	}
	if pin.Read() == pgpio.High {
		return High, nil
	}
	return Low, nil
}

func (p *PeriphChip) pin(offset int) (pgpio.PinIO, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pin, ok := p.claimed[offset]
	if !ok {
		return nil, fmt.Errorf("pin %s not claimed: %w", PinName(offset), ErrWrongMode)
	}
	return pin, nil
}

// Free releases a claimed line. Freeing an unclaimed line is a no-op.
func (p *PeriphChip) Free(offset int) error {
	p.mu.Lock()
	pin, ok := p.claimed[offset]
	delete(p.claimed, offset)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	if err := pin.Halt(); err != nil {
		return fmt.Errorf("halt pin %s: %w", PinName(offset), err)
	}
	return nil
}

// Close frees every claimed line.
func (p *PeriphChip) Close() error {
	p.mu.Lock()
	offsets := make([]int, 0, len(p.claimed))
	for offset := range p.claimed {
		offsets = append(offsets, offset)
	}
	p.mu.Unlock()

	var errs []error
	for _, offset := range offsets {
		if err := p.Free(offset); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
