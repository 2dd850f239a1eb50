package identity

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples audit emission from the request path. Events queue
// on a buffered channel and a single delivery goroutine hands them to the
// sink; with DropIfFull set, a full queue sheds events instead of blocking
// the caller.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditEvent
	stop       chan struct{}
	idle       chan struct{}
	dropIfFull bool
	dropped    atomic.Uint64
	stopping   atomic.Bool
	stopOnce   sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}

	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditEvent, size),
		stop:       make(chan struct{}),
		idle:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}
	go d.deliverLoop()

	return d
}

// deliverLoop owns the sink: every event crosses exactly one goroutine
// boundary, so sinks see sequential Emit calls in queue order.
func (d *auditDispatcher) deliverLoop() {
	defer close(d.idle)

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush empties whatever is queued at shutdown without waiting for more.
func (d *auditDispatcher) flush() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.stopping.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close flushes pending events and stops delivery. Safe to call more than
// once; Emit after Close is a no-op.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopping.Store(true)
		close(d.stop)
		<-d.idle
	})
}

// Dropped reports how many events were shed under DropIfFull.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
