package gpio

import "fmt"

// Mode is the direction a Controller currently holds its line in.
type Mode int

const (
	ModeFree Mode = iota
	ModeInput
	ModeOutput
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeOutput:
		return "output"
	default:
		return "free"
	}
}

// Controller owns one line of a Chip and guarantees it holds at most one
// claim at a time. It is not safe for concurrent use; callers serialize.
type Controller struct {
	chip   Chip
	offset int
	mode   Mode
}

// NewController returns a Controller for the given line. Nothing is claimed
// until ClaimOutput or ClaimInput is called.
func NewController(chip Chip, offset int) *Controller {
	return &Controller{chip: chip, offset: offset}
}

// Offset returns the controlled line.
func (c *Controller) Offset() int {
	return c.offset
}

// Mode returns the current claim direction.
func (c *Controller) Mode() Mode {
	return c.mode
}

// ClaimOutput releases any existing claim and requests the line as output.
func (c *Controller) ClaimOutput(initial Level) error {
	if err := c.Release(); err != nil {
		return err
	}
	if err := c.chip.ClaimOutput(c.offset, initial); err != nil {
		return fmt.Errorf("claim line %d as output: %w", c.offset, err)
	}
	c.mode = ModeOutput
	return nil
}

// ClaimInput releases any existing claim and requests the line as input.
func (c *Controller) ClaimInput(pull Pull) error {
	if err := c.Release(); err != nil {
		return err
	}
	if err := c.chip.ClaimInput(c.offset, pull); err != nil {
		return fmt.Errorf("claim line %d as input: %w", c.offset, err)
	}
	c.mode = ModeInput
	return nil
}

// Write drives the line. Fails fast unless claimed as output.
func (c *Controller) Write(level Level) error {
	if c.mode != ModeOutput {
		return fmt.Errorf("write line %d (%s): %w", c.offset, c.mode, ErrWrongMode)
	}
	return c.chip.Write(c.offset, level)
}

// Read samples the line. Fails fast unless claimed as input.
func (c *Controller) Read() (Level, error) {
	if c.mode != ModeInput {
		return Low, fmt.Errorf("read line %d (%s): %w", c.offset, c.mode, ErrWrongMode)
	}
	return c.chip.Read(c.offset)
}

// Release frees the line. Releasing a free line is a no-op.
func (c *Controller) Release() error {
	if c.mode == ModeFree {
		return nil
	}
	// The claim is gone from our side even if the chip reports an error.
	c.mode = ModeFree
	if err := c.chip.Free(c.offset); err != nil {
		return fmt.Errorf("free line %d: %w", c.offset, err)
	}
	return nil
}
