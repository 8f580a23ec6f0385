package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sweeney/dht11-sensor/internal/dht"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
	ctxHad bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	_, f.ctxHad = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testReading() dht.Reading {
	return dht.Reading{
		Humidity:    50,
		Temperature: 25,
		CapturedAt:  time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Raw:         dht.Frame{0x32, 0x00, 0x19, 0x00, 0x4B},
	}
}

func TestFormatRecord(t *testing.T) {
	value, err := FormatRecord("abc", testReading())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"instance_id":"abc","timestamp":"2026-02-02T22:18:12Z","temperature":25,"humidity":50,"frame":"32 00 19 00 4b"}`
	if string(value) != want {
		t.Errorf("record mismatch:\ngot:  %s\nwant: %s", value, want)
	}
}

func TestWriteReading(t *testing.T) {
	w := &fakeWriter{}
	s := newSink(w, Options{Topic: "t", InstanceID: "abc"})

	if err := s.WriteReading(context.Background(), testReading()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "abc" {
		t.Errorf("key: got %q, want abc", msg.Key)
	}
	if !msg.Time.Equal(testReading().CapturedAt) {
		t.Errorf("time: got %v", msg.Time)
	}
	var rec Record
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec.Temperature != 25 || rec.Humidity != 50 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if !w.ctxHad {
		t.Error("expected write context to carry a deadline")
	}
}

func TestWriteReadingError(t *testing.T) {
	boom := errors.New("broker down")
	w := &fakeWriter{err: boom}
	s := newSink(w, Options{Topic: "t"})

	err := s.WriteReading(context.Background(), testReading())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped broker error, got %v", err)
	}
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	s := newSink(w, Options{})
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.closed {
		t.Error("writer not closed")
	}
}

func TestNewSinkRequiresBrokers(t *testing.T) {
	if _, err := NewSink(Options{}); err == nil {
		t.Error("expected error with no brokers")
	}
}

func TestNewSinkDefaultTopic(t *testing.T) {
	s, err := NewSink(Options{Brokers: []string{"localhost:9092"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()
	if s.topic != DefaultTopic {
		t.Errorf("topic: got %s, want %s", s.topic, DefaultTopic)
	}
}
