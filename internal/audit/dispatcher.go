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
	// DropIfFull discards events when the buffer is full instead of blocking the emitter.
	DropIfFull bool
	// Keep lists event types that wait for buffer space even when DropIfFull is set, so a
	// sink never misses the start or end of a session.
	Keep []string
	// Now stamps events emitted without a Timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Stats counts dispatcher outcomes.
type Stats struct {
	Delivered uint64
	Dropped   uint64
	Failed    uint64
}

// Dispatcher relays events to a Sink on one goroutine. Events are numbered at Emit and a
// sink observes them in that order.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	stop       chan struct{}
	relay      sync.WaitGroup
	dropIfFull bool
	keep       map[string]struct{}
	now        func() time.Time

	seq       atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closing   atomic.Bool
	once      sync.Once
}

// NewDispatcher returns nil when auditing is disabled; a nil Dispatcher is a valid no-op.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, cfg.BufferSize),
		stop:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		keep:       make(map[string]struct{}, len(cfg.Keep)),
		now:        cfg.Now,
	}
	for _, typ := range cfg.Keep {
		d.keep[typ] = struct{}{}
	}

	d.relay.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.relay.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

// deliver keeps the relay alive when a sink panics.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if recover() != nil {
			d.failed.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit numbers and stamps event, then queues it. Events emitted after Close are ignored.
// A blocking emit whose ctx ends first counts as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}
	event.Seq = d.seq.Add(1)

	if _, kept := d.keep[event.EventType]; d.dropIfFull && !kept {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-d.stop:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close delivers buffered events and stops the relay.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.relay.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed counts events whose sink panicked.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		Failed:    d.failed.Load(),
	}
}
