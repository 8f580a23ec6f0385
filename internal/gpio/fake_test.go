package gpio

import (
	"errors"
	"testing"
)

func TestFakeChipDoubleClaimIsBusy(t *testing.T) {
	f := NewFakeChip(nil)

	if err := f.ClaimInput(7, PullUp); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := f.ClaimOutput(7, High); !errors.Is(err, ErrLineBusy) {
		t.Errorf("second claim: got %v, want ErrLineBusy", err)
	}
}

func TestFakeChipReadDefaultsHigh(t *testing.T) {
	f := NewFakeChip(nil)
	f.ClaimInput(7, PullUp)

	level, err := f.Read(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != High {
		t.Errorf("got %s, want HIGH", level)
	}
}

func TestFakeChipReadError(t *testing.T) {
	f := NewFakeChip(nil)
	f.ClaimInput(7, PullUp)
	f.ReadError = errors.New("simulated error")

	_, err := f.Read(7)
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeChipHooks(t *testing.T) {
	f := NewFakeChip(nil)
	var written []Level
	inputs := 0
	f.OnWrite = func(_ int, l Level) { written = append(written, l) }
	f.OnClaimInput = func(int, Pull) { inputs++ }

	f.ClaimOutput(7, High)
	f.Write(7, Low)
	f.Free(7)
	f.ClaimInput(7, PullNone)

	if len(written) != 2 || written[0] != High || written[1] != Low {
		t.Errorf("written: got %v", written)
	}
	if inputs != 1 {
		t.Errorf("input claims: got %d, want 1", inputs)
	}
}

func TestFakeChipCloseFreesClaims(t *testing.T) {
	f := NewFakeChip(nil)
	f.ClaimInput(7, PullUp)

	if err := f.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
	if f.Claimed(7) {
		t.Error("claims should be freed on Close()")
	}
	if err := f.ClaimInput(7, PullUp); !errors.Is(err, ErrLineUnavailable) {
		t.Errorf("claim after close: got %v, want ErrLineUnavailable", err)
	}
}

func TestFakeChipReset(t *testing.T) {
	f := NewFakeChip(nil)
	f.ClaimOutput(7, High)
	f.Close()

	f.Reset()

	claims, frees, reads := f.Counts()
	if claims != 0 || frees != 0 || reads != 0 || f.Closed || len(f.Writes) != 0 {
		t.Errorf("reset left state: claims=%d frees=%d reads=%d closed=%v writes=%v",
			claims, frees, reads, f.Closed, f.Writes)
	}
}
