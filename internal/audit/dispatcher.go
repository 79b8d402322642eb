package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher asynchronously forwards security events to a sink. Emission
// never blocks the triggering action when DropIfFull is set; dropped events
// are counted instead.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	events chan Event
	quit   chan struct{}
	relay  sync.WaitGroup

	closed  atomic.Bool
	stop    sync.Once
	dropped atomic.Uint64
}

// NewDispatcher returns nil when cfg.Enabled is false; a nil *Dispatcher is
// a valid no-op receiver for Emit, Close and Dropped.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		events:     make(chan Event, buffer),
		quit:       make(chan struct{}),
	}
	d.relay.Add(1)
	go d.forward()
	return d
}

// forward is the single consumer of the event channel. After a stop signal
// it flushes whatever is already buffered before returning, so Close never
// loses events that were accepted by Emit.
func (d *Dispatcher) forward() {
	defer d.relay.Done()
	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			d.flush()
			return
		}
	}
}

func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues event for asynchronous delivery. Events emitted after Close
// are silently discarded. A zero Timestamp is stamped with the current time.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		case <-d.quit:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops the dispatcher and waits for buffered events to be delivered.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stop.Do(func() {
		d.closed.Store(true)
		close(d.quit)
		d.relay.Wait()
	})
}

// Dropped reports how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
