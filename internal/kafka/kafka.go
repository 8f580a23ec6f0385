// Package kafka forwards good readings to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sweeney/dht11-sensor/internal/dht"
)

// DefaultTopic is used when Options.Topic is empty.
const DefaultTopic = "dht11.readings"

// messageWriter is the subset of *kafkago.Writer used by Sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Options configures a Sink.
type Options struct {
	Brokers      []string
	Topic        string
	InstanceID   string
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Sink writes one message per reading, keyed by instance ID so readings from
// one daemon stay ordered within a partition.
type Sink struct {
	w          messageWriter
	topic      string
	instanceID string
	timeout    time.Duration
	log        *slog.Logger
}

// NewSink returns a Sink writing to the given brokers. No connection is made
// until the first write.
func NewSink(o Options) (*Sink, error) {
	if len(o.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: no brokers configured")
	}
	if o.Topic == "" {
		o.Topic = DefaultTopic
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(o.Brokers...),
		Topic:        o.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		Async:        false,
	}
	return newSink(w, o), nil
}

func newSink(w messageWriter, o Options) *Sink {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sink{
		w:          w,
		topic:      o.Topic,
		instanceID: o.InstanceID,
		timeout:    o.WriteTimeout,
		log:        o.Logger.With(slog.String("component", "kafka-sink")),
	}
}

// Record is the message value written for each reading.
type Record struct {
	InstanceID  string `json:"instance_id"`
	Timestamp   string `json:"timestamp"`
	Temperature int    `json:"temperature"`
	Humidity    int    `json:"humidity"`
	Frame       string `json:"frame"`
}

// FormatRecord builds the message value for r.
func FormatRecord(instanceID string, r dht.Reading) ([]byte, error) {
	return json.Marshal(Record{
		InstanceID:  instanceID,
		Timestamp:   r.CapturedAt.UTC().Format(time.RFC3339Nano),
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Frame:       r.Raw.String(),
	})
}

// WriteReading sends r to the topic. It blocks for at most the write timeout.
func (s *Sink) WriteReading(ctx context.Context, r dht.Reading) error {
	value, err := FormatRecord(s.instanceID, r)
	if err != nil {
		return fmt.Errorf("format record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(s.instanceID),
		Value: value,
		Time:  r.CapturedAt,
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", s.topic, err)
	}
	s.log.Debug("reading forwarded", "topic", s.topic)
	return nil
}

// Close flushes and closes the writer.
func (s *Sink) Close() error {
	return s.w.Close()
}
