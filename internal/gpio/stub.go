//go:build !linux

package gpio

import "errors"

// CdevChip is not available on non-Linux platforms.
type CdevChip struct{}

// OpenCdev returns an error on non-Linux platforms.
func OpenCdev(name string) (*CdevChip, error) {
	return nil, errors.Join(ErrLineUnavailable, errors.New("gpio: character device requires Linux"))
}

// ClaimOutput is not implemented on non-Linux platforms.
func (c *CdevChip) ClaimOutput(offset int, initial Level) error { return ErrLineUnavailable }

// ClaimInput is not implemented on non-Linux platforms.
func (c *CdevChip) ClaimInput(offset int, pull Pull) error { return ErrLineUnavailable }

// Write is not implemented on non-Linux platforms.
func (c *CdevChip) Write(offset int, level Level) error { return ErrLineUnavailable }

// Read is not implemented on non-Linux platforms.
func (c *CdevChip) Read(offset int) (Level, error) { return Low, ErrLineUnavailable }

// Free is a no-op on non-Linux platforms.
func (c *CdevChip) Free(offset int) error { return nil }

// Close is a no-op on non-Linux platforms.
func (c *CdevChip) Close() error { return nil }
