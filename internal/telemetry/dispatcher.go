package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"intentgate/internal/logging"
)

const defaultQueueSize = 1024

// Dispatcher queues events and writes them to every sink from a single
// background goroutine. When the queue is full the oldest event is dropped.
type Dispatcher struct {
	sinks []Sink
	queue chan Event

	stopped atomic.Bool
	dropped atomic.Int64
	written atomic.Int64

	mu sync.Mutex
}

// NewDispatcher creates a dispatcher. It does nothing until Run is called.
func NewDispatcher(queueSize int, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{sinks: sinks, queue: make(chan Event, queueSize)}
}

// Emit queues an event without blocking.
func (d *Dispatcher) Emit(ev Event) {
	if d.stopped.Load() {
		d.dropped.Add(1)
		return
	}

	// Serialize producers only around the drop-oldest path.
	select {
	case d.queue <- ev:
		return
	default:
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.queue:
		d.dropped.Add(1)
	default:
	}
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		logging.Get(logging.CategoryTelemetry).Warn("telemetry queue full, event dropped")
	}
}

// Run writes queued events until ctx is done, then drains what is left.
// It always returns nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	log := logging.Get(logging.CategoryTelemetry)
	log.Info("telemetry dispatcher started: sinks=%d queue=%d", len(d.sinks), cap(d.queue))

	for {
		select {
		case ev := <-d.queue:
			d.write(ctx, ev)
		case <-ctx.Done():
			d.stopped.Store(true)
			drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			n := d.drain(drainCtx)
			cancel()
			log.Info("telemetry dispatcher stopped: drained=%d dropped=%d", n, d.dropped.Load())
			return nil
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case ev := <-d.queue:
			d.write(ctx, ev)
			n++
		default:
			return n
		}
	}
}

func (d *Dispatcher) write(ctx context.Context, ev Event) {
	for _, s := range d.sinks {
		start := time.Now()
		if err := s.Write(ctx, ev); err != nil {
			logging.Get(logging.CategoryTelemetry).Warn("sink %s: %v", s.Name(), err)
			continue
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			logging.Get(logging.CategoryTelemetry).Warn("slow sink %s: %v", s.Name(), elapsed)
		}
	}
	d.written.Add(1)
}

// Stats reports how many events were written and dropped.
func (d *Dispatcher) Stats() (written, dropped int64) {
	return d.written.Load(), d.dropped.Load()
}
