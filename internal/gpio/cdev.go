//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/warthog618/go-gpiocdev"
)

// CdevChip drives lines through the Linux GPIO character device.
type CdevChip struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// OpenCdev opens the named chip (e.g. "gpiochip0").
// Failure here is fatal to the caller: nothing can be claimed without a chip.
func OpenCdev(name string) (*CdevChip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w: %v", name, ErrLineUnavailable, err)
	}
	return &CdevChip{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// ClaimOutput requests the line as an output driven to initial.
func (c *CdevChip) ClaimOutput(offset int, initial Level) error {
	return c.request(offset, gpiocdev.AsOutput(int(initial)))
}

// ClaimInput requests the line as an input with the given bias.
func (c *CdevChip) ClaimInput(offset int, pull Pull) error {
	bias := gpiocdev.WithBiasDisabled
	if pull == PullUp {
		bias = gpiocdev.WithPullUp
	}
	return c.request(offset, gpiocdev.AsInput, bias)
}

func (c *CdevChip) request(offset int, opts ...gpiocdev.LineReqOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chip == nil {
		return ErrLineUnavailable
	}
	if _, ok := c.lines[offset]; ok {
		return ErrLineBusy
	}

	line, err := c.chip.RequestLine(offset, opts...)
	if err != nil {
		return mapRequestError(offset, err)
	}
	c.lines[offset] = line
	return nil
}

func mapRequestError(offset int, err error) error {
	switch {
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("request line %d: %w", offset, ErrLineBusy)
	default:
		return fmt.Errorf("request line %d: %w: %v", offset, ErrLineUnavailable, err)
	}
}

// Write drives a claimed output line.
func (c *CdevChip) Write(offset int, level Level) error {
	line, err := c.line(offset)
	if err != nil {
		return err
	}
	if err := line.SetValue(int(level)); err != nil {
		return fmt.Errorf("write line %d: %w: %v", offset, ErrLineUnavailable, err)
	}
	return nil
}

// Read samples a claimed input line.
func (c *CdevChip) Read(offset int) (Level, error) {
	line, err := c.line(offset)
	if err != nil {
		return Low, err
	}
	v, err := line.Value()
	if err != nil {
		return Low, fmt.Errorf("read line %d: %w: %v", offset, ErrLineUnavailable, err)
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

func (c *CdevChip) line(offset int) (*gpiocdev.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[offset]
	if !ok {
		return nil, fmt.Errorf("line %d not claimed: %w", offset, ErrWrongMode)
	}
	return line, nil
}

// Free releases a claimed line. Freeing an unclaimed line is a no-op.
func (c *CdevChip) Free(offset int) error {
	c.mu.Lock()
	line, ok := c.lines[offset]
	delete(c.lines, offset)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if err := line.Close(); err != nil {
		return fmt.Errorf("close line %d: %w", offset, err)
	}
	return nil
}

// Close frees all claimed lines and closes the chip.
// Lines are left as inputs with bias disabled so the sensor's own pull-up
// holds the bus idle between runs.
func (c *CdevChip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for offset, line := range c.lines {
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", offset, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", offset, err))
		}
		delete(c.lines, offset)
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
