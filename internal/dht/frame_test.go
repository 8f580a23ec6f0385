package dht

import (
	"errors"
	"math/rand"
	"testing"
)

// bitsFromBytes unpacks five bytes MSB-first.
func bitsFromBytes(b [5]byte) [FrameBits]bool {
	var bits [FrameBits]bool
	for i := range bits {
		bits[i] = b[i/8]&(0x80>>(i%8)) != 0
	}
	return bits
}

// bitsFromString parses "0"/"1" characters, ignoring spaces.
func bitsFromString(t *testing.T, s string) [FrameBits]bool {
	t.Helper()
	var bits [FrameBits]bool
	n := 0
	for _, c := range s {
		switch c {
		case ' ':
			continue
		case '0', '1':
			if n >= FrameBits {
				t.Fatalf("too many bits in %q", s)
			}
			bits[n] = c == '1'
			n++
		default:
			t.Fatalf("bad bit %q in %q", c, s)
		}
	}
	if n != FrameBits {
		t.Fatalf("got %d bits in %q, want %d", n, s, FrameBits)
	}
	return bits
}

func TestPackMSBFirst(t *testing.T) {
	bits := bitsFromString(t, "11000101 00000000 00100011 00000000 11101000")
	got := Pack(bits)
	want := Frame{0xC5, 0x00, 0x23, 0x00, 0xE8}
	if got != want {
		t.Errorf("Pack: got %s, want %s", got, want)
	}
}

func TestDecodeValidFrame(t *testing.T) {
	bits := bitsFromString(t, "00110010 00000000 00011001 00000000 01001011")

	r, err := Decode(bits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Humidity != 50 {
		t.Errorf("Humidity: got %d, want 50", r.Humidity)
	}
	if r.Temperature != 25 {
		t.Errorf("Temperature: got %d, want 25", r.Temperature)
	}
	if !r.CapturedAt.IsZero() {
		t.Errorf("Decode should not stamp CapturedAt, got %v", r.CapturedAt)
	}
	if r.Raw != (Frame{0x32, 0x00, 0x19, 0x00, 0x4B}) {
		t.Errorf("Raw: got %s", r.Raw)
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	bits := bitsFromString(t, "00110010 00000000 00011001 00000000 01001100")

	_, err := Decode(bits)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("got %v, want ErrChecksumMismatch", err)
	}
}

func TestDecodeHighHumidityFrame(t *testing.T) {
	bits := bitsFromString(t, "11000101 00000000 00100011 00000000 11101000")

	r, err := Decode(bits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Humidity != 0xC5 || r.Temperature != 0x23 {
		t.Errorf("got humidity=%d temperature=%d, want 197 and 35", r.Humidity, r.Temperature)
	}
}

func TestDecodeChecksumWraps(t *testing.T) {
	// 0x90+0x05+0x80+0x01 = 0x116, low byte 0x16
	r, err := Decode(bitsFromBytes([5]byte{0x90, 0x05, 0x80, 0x01, 0x16}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Raw[1] != 0x05 || r.Raw[3] != 0x01 {
		t.Errorf("fraction bytes not retained: %s", r.Raw)
	}
}

func TestDecodeChecksumLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		var b [5]byte
		for j := 0; j < 4; j++ {
			b[j] = byte(rng.Intn(256))
		}
		sum := byte((int(b[0]) + int(b[1]) + int(b[2]) + int(b[3])) % 256)

		b[4] = sum
		r, err := Decode(bitsFromBytes(b))
		if err != nil {
			t.Fatalf("frame %x: unexpected error: %v", b, err)
		}
		if r.Humidity != int(b[0]) || r.Temperature != int(b[2]) {
			t.Fatalf("frame %x: got %+v", b, r)
		}

		b[4] = sum + byte(1+rng.Intn(255))
		if _, err := Decode(bitsFromBytes(b)); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("frame %x: got %v, want ErrChecksumMismatch", b, err)
		}
	}
}

func TestDecodeDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 200; i++ {
		var bits [FrameBits]bool
		for j := range bits {
			bits[j] = rng.Intn(2) == 1
		}
		r1, err1 := Decode(bits)
		r2, err2 := Decode(bits)
		if r1 != r2 {
			t.Fatalf("readings differ for same input: %+v vs %+v", r1, r2)
		}
		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("errors differ for same input: %v vs %v", err1, err2)
		}
	}
}

func TestFrameValid(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  bool
	}{
		{"zero", Frame{}, true},
		{"simple", Frame{50, 0, 25, 0, 75}, true},
		{"off by one", Frame{50, 0, 25, 0, 76}, false},
		{"overflow", Frame{0xFF, 0xFF, 0xFF, 0xFF, 0xFC}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.Valid(); got != tt.want {
				t.Errorf("Valid(%s): got %v, want %v", tt.frame, got, tt.want)
			}
		})
	}
}
