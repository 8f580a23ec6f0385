package dht

import (
	"fmt"
	"time"
)

// FrameBits is the number of bits the sensor sends per reading.
const FrameBits = 40

// Frame is a captured payload:
// humidity integral, humidity fraction, temperature integral,
// temperature fraction, checksum.
type Frame [5]byte

// Sum returns the low byte of the sum of the four data bytes.
func (f Frame) Sum() byte {
	return f[0] + f[1] + f[2] + f[3]
}

// Valid reports whether the checksum byte matches the data bytes.
func (f Frame) Valid() bool {
	return f[4] == f.Sum()
}

func (f Frame) String() string {
	return fmt.Sprintf("%02x %02x %02x %02x %02x", f[0], f[1], f[2], f[3], f[4])
}

// Reading is a validated sensor sample. It is a value type and never
// modified after it is produced.
type Reading struct {
	Humidity    int // percent relative humidity
	Temperature int // degrees Celsius
	CapturedAt  time.Time

	// Raw retains the full frame, including the fraction bytes, which are
	// always zero for this sensor class.
	Raw Frame
}

// Pack groups bits MSB-first into bytes, 8 bits per byte in capture order.
func Pack(bits [FrameBits]bool) Frame {
	var f Frame
	for i, b := range bits {
		if b {
			f[i/8] |= 0x80 >> (i % 8)
		}
	}
	return f
}

// Decode packs a captured bit sequence and validates its checksum.
// It has no side effects; CapturedAt is left for the caller to stamp.
func Decode(bits [FrameBits]bool) (Reading, error) {
	f := Pack(bits)
	if !f.Valid() {
		return Reading{}, fmt.Errorf("%w: frame %s, want checksum %02x", ErrChecksumMismatch, f, f.Sum())
	}
	return Reading{
		Humidity:    int(f[0]),
		Temperature: int(f[2]),
		Raw:         f,
	}, nil
}
