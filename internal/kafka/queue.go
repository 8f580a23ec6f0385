package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/dht11-sensor/internal/dht"
)

// DefaultQueueSize is the number of readings held while the broker is slow.
const DefaultQueueSize = 32

// ErrQueueFull is returned when a reading is dropped because the queue is full.
var ErrQueueFull = errors.New("kafka queue full")

// ErrQueueClosed is returned for writes after Close.
var ErrQueueClosed = errors.New("kafka queue closed")

// readingWriter is the part of Sink used by Queue.
type readingWriter interface {
	WriteReading(ctx context.Context, r dht.Reading) error
}

// Queue hands readings to a writer on its own goroutine so a stalled broker
// never holds up the caller. WriteReading never blocks.
type Queue struct {
	w     readingWriter
	ch    chan dht.Reading
	drain time.Duration
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewQueue starts a Queue in front of w holding up to size readings.
// On Close, pending readings get up to drain to be written before the
// in-flight write is cancelled.
func NewQueue(w readingWriter, size int, drain time.Duration, log *slog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		w:      w,
		ch:     make(chan dht.Reading, size),
		drain:  drain,
		log:    log.With(slog.String("component", "kafka-queue")),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// WriteReading queues r. The context is not used; writes run under the
// queue's own context.
func (q *Queue) WriteReading(_ context.Context, r dht.Reading) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for r := range q.ch {
		if err := q.w.WriteReading(q.ctx, r); err != nil {
			q.log.Warn("kafka write failed", "err", err)
		}
	}
}

// Close stops accepting readings and waits for the queue to drain, cancelling
// outstanding writes once the drain time has passed. It does not close the
// underlying writer.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	timer := time.NewTimer(q.drain)
	defer timer.Stop()
	select {
	case <-q.done:
	case <-timer.C:
		q.cancel()
		<-q.done
	}
	q.cancel()
	return nil
}
