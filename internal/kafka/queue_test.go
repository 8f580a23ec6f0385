package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/dht11-sensor/internal/dht"
)

// gateWriter blocks every write until release is closed or the write context
// ends.
type gateWriter struct {
	release chan struct{}
	started chan struct{}

	mu       sync.Mutex
	written  []dht.Reading
	canceled int
}

func newGateWriter() *gateWriter {
	return &gateWriter{release: make(chan struct{}), started: make(chan struct{}, 64)}
}

func (g *gateWriter) WriteReading(ctx context.Context, r dht.Reading) error {
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		g.mu.Lock()
		g.canceled++
		g.mu.Unlock()
		return ctx.Err()
	}
	g.mu.Lock()
	g.written = append(g.written, r)
	g.mu.Unlock()
	return nil
}

func (g *gateWriter) count() (written, canceled int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.written), g.canceled
}

func waitStarted(t *testing.T, g *gateWriter) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("write never started")
	}
}

func TestQueueWriteDoesNotBlock(t *testing.T) {
	g := newGateWriter()
	q := NewQueue(g, 4, time.Second, nil)

	start := time.Now()
	if err := q.WriteReading(context.Background(), testReading()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitStarted(t, g)
	// The writer is stalled; further writes still return at once.
	if err := q.WriteReading(context.Background(), testReading()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if took := time.Since(start); took > time.Second {
		t.Errorf("WriteReading blocked for %v", took)
	}

	close(g.release)
	q.Close()
	if written, _ := g.count(); written != 2 {
		t.Errorf("written: got %d, want 2", written)
	}
}

func TestQueueFull(t *testing.T) {
	g := newGateWriter()
	q := NewQueue(g, 1, time.Second, nil)

	q.WriteReading(context.Background(), testReading())
	waitStarted(t, g)
	if err := q.WriteReading(context.Background(), testReading()); err != nil {
		t.Fatalf("queue with one free slot: %v", err)
	}
	if err := q.WriteReading(context.Background(), testReading()); !errors.Is(err, ErrQueueFull) {
		t.Errorf("got %v, want ErrQueueFull", err)
	}

	close(g.release)
	q.Close()
}

func TestQueueCloseCancelsStalledWrites(t *testing.T) {
	g := newGateWriter()
	q := NewQueue(g, 4, 50*time.Millisecond, nil)

	q.WriteReading(context.Background(), testReading())
	q.WriteReading(context.Background(), testReading())
	waitStarted(t, g)

	start := time.Now()
	q.Close()
	if took := time.Since(start); took > 2*time.Second {
		t.Errorf("Close took %v with a stalled writer", took)
	}
	if written, canceled := g.count(); written != 0 || canceled != 2 {
		t.Errorf("got written=%d canceled=%d, want 0 and 2", written, canceled)
	}
}

func TestQueueWriteAfterClose(t *testing.T) {
	q := NewQueue(newGateWriter(), 1, time.Second, nil)
	q.Close()

	if err := q.WriteReading(context.Background(), testReading()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("got %v, want ErrQueueClosed", err)
	}
	// A second Close is harmless.
	q.Close()
}

func TestQueueForwardsToSink(t *testing.T) {
	w := &fakeWriter{}
	q := NewQueue(newSink(w, Options{Topic: "t", InstanceID: "abc"}), 4, time.Second, nil)

	if err := q.WriteReading(context.Background(), testReading()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.Close()

	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "abc" {
		t.Errorf("expected one message keyed abc, got %d", len(w.msgs))
	}
}
