package gpio

import (
	"errors"
	"testing"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func newTestPeriphChip(pins ...*gpiotest.Pin) *PeriphChip {
	byName := make(map[string]pgpio.PinIO, len(pins))
	for _, p := range pins {
		byName[p.N] = p
	}
	return newPeriphChip(func(name string) pgpio.PinIO {
		if p, ok := byName[name]; ok {
			return p
		}
		return nil
	})
}

func TestPinName(t *testing.T) {
	if got := PinName(4); got != "GPIO4" {
		t.Errorf("got %q, want GPIO4", got)
	}
}

func TestPeriphChipOutput(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO4", Num: 4}
	chip := newTestPeriphChip(pin)

	if err := chip.ClaimOutput(4, High); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if pin.L != pgpio.High {
		t.Errorf("initial level: got %v, want High", pin.L)
	}
	if err := chip.Write(4, Low); err != nil {
		t.Fatalf("write: %v", err)
	}
	if pin.L != pgpio.Low {
		t.Errorf("level: got %v, want Low", pin.L)
	}
}

func TestPeriphChipInput(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO4", Num: 4}
	chip := newTestPeriphChip(pin)

	if err := chip.ClaimInput(4, PullUp); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if pin.P != pgpio.PullUp {
		t.Errorf("pull: got %v, want PullUp", pin.P)
	}

	pin.L = pgpio.High
	level, err := chip.Read(4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if level != High {
		t.Errorf("got %s, want HIGH", level)
	}
}

func TestPeriphChipBusyAndFree(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO4", Num: 4}
	chip := newTestPeriphChip(pin)

	chip.ClaimInput(4, PullNone)
	if err := chip.ClaimOutput(4, High); !errors.Is(err, ErrLineBusy) {
		t.Errorf("got %v, want ErrLineBusy", err)
	}

	if err := chip.Free(4); err != nil {
		t.Fatalf("free: %v", err)
	}
	if err := chip.Free(4); err != nil {
		t.Errorf("second free should be a no-op, got %v", err)
	}
	if err := chip.ClaimOutput(4, High); err != nil {
		t.Errorf("claim after free: %v", err)
	}
	if err := chip.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if _, err := chip.Read(4); !errors.Is(err, ErrWrongMode) {
		t.Errorf("read after close: got %v, want ErrWrongMode", err)
	}
}

func TestPeriphChipUnknownPin(t *testing.T) {
	chip := newTestPeriphChip()

	if err := chip.ClaimInput(99, PullUp); !errors.Is(err, ErrLineUnavailable) {
		t.Errorf("got %v, want ErrLineUnavailable", err)
	}
}
