package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events instead of blocking the login path when the
	// buffer is full. Discarded events are counted by Dropped.
	DropIfFull bool
	// Now stamps events that arrive without a Timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher stamps events with request context and hands them to a sink
// from one background goroutine, so a slow sink never holds up a login.
// A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	sink       Sink
	now        func() time.Time
	dropIfFull bool

	queue chan Event
	stop  chan struct{}
	idle  sync.WaitGroup
	once  sync.Once

	closed    atomic.Bool
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	d := &Dispatcher{
		sink:       sink,
		now:        now,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, size),
		stop:       make(chan struct{}),
	}
	d.idle.Add(1)
	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer d.idle.Done()
	for {
		select {
		case e := <-d.queue:
			d.deliver(e)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain delivers whatever is still buffered after Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case e := <-d.queue:
			d.deliver(e)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(e Event) {
	d.sink.Emit(context.Background(), e)
	d.delivered.Add(1)
}

// stamp fills the fields the caller leaves to the dispatcher: the time, and
// the client address and request id carried on ctx.
func (d *Dispatcher) stamp(ctx context.Context, e *Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = d.now().UTC()
	}
	if e.IP == "" {
		e.IP = ClientIP(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = RequestID(ctx)
	}
}

// Emit stamps and queues e. With DropIfFull a full buffer drops the event;
// otherwise Emit waits for room until ctx ends, which also counts as a drop.
func (d *Dispatcher) Emit(ctx context.Context, e Event) {
	if d == nil || d.closed.Load() {
		return
	}
	d.stamp(ctx, &e)

	if d.dropIfFull {
		select {
		case d.queue <- e:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- e:
	case <-d.stop:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events, delivers the buffered ones and waits for the
// sink. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.idle.Wait()
	})
}

// Dropped reports events discarded because the buffer was full or the
// caller's context ended first.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered reports events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
