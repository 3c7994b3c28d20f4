package hostrt

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/gomlx/asyncflow/types/xsync"
)

// Context is a device context: the owner of streams and events. Its registry
// is append-only; handles stay valid until Close.
type Context struct {
	id uuid.UUID

	mu      sync.Mutex
	streams []*Stream
	closed  bool
}

// NewContext creates a device context.
func NewContext() *Context {
	ctx := &Context{id: uuid.New()}
	klog.V(3).Infof("hostrt: new context %s", ctx.id)
	return ctx
}

// ID returns the context's unique id.
func (ctx *Context) ID() uuid.UUID { return ctx.id }

// NewStream creates an ordered command queue owned by this context. The
// stream's goroutine runs until the context is closed.
func (ctx *Context) NewStream() *Stream {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.closed {
		exceptions.Panicf("hostrt: NewStream on closed context %s", ctx.id)
	}
	s := &Stream{id: uuid.New(), ctx: ctx, joined: make(chan struct{})}
	s.cond = sync.Cond{L: &s.mu}
	ctx.streams = append(ctx.streams, s)
	go s.run()
	klog.V(3).Infof("hostrt: new stream %s on context %s", s.id, ctx.id)
	return s
}

// NewEvent creates an unrecorded event owned by this context.
func (ctx *Context) NewEvent() *Event {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.closed {
		exceptions.Panicf("hostrt: NewEvent on closed context %s", ctx.id)
	}
	return &Event{id: uuid.New(), ctx: ctx, latch: xsync.NewLatch()}
}

// Close drains every stream and joins their goroutines. Work already
// enqueued still runs; Enqueue after Close panics.
func (ctx *Context) Close() {
	ctx.mu.Lock()
	if ctx.closed {
		ctx.mu.Unlock()
		return
	}
	ctx.closed = true
	streams := ctx.streams
	ctx.mu.Unlock()
	for _, s := range streams {
		s.close()
	}
	klog.V(3).Infof("hostrt: closed context %s (%d streams)", ctx.id, len(streams))
}

// Stream is an ordered, host-non-blocking command queue. Entries run in
// issue order on a dedicated goroutine.
type Stream struct {
	id  uuid.UUID
	ctx *Context

	mu      sync.Mutex
	cond    sync.Cond // Signaled whenever queue grows or the stream closes.
	queue   []func()
	closing bool
	joined  chan struct{}
}

// ID returns the stream's unique id.
func (s *Stream) ID() uuid.UUID { return s.id }

// Context returns the context owning this stream.
func (s *Stream) Context() *Context { return s.ctx }

// Enqueue appends fn to the stream. It never blocks the caller; fn runs
// after every previously enqueued entry has finished.
func (s *Stream) Enqueue(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		exceptions.Panicf("hostrt: Enqueue on closed stream %s", s.id)
	}
	s.queue = append(s.queue, fn)
	s.cond.Signal()
}

// WaitEvent makes the stream wait for event before running anything enqueued
// later. The host thread does not block.
func (s *Stream) WaitEvent(event *Event) {
	s.Enqueue(func() {
		klog.V(3).Infof("hostrt: stream %s waiting on event %s", s.id, event.id)
		event.latch.Wait()
	})
}

// run is the stream's worker goroutine.
func (s *Stream) run() {
	s.mu.Lock()
	for {
		for len(s.queue) == 0 {
			if s.closing {
				s.mu.Unlock()
				close(s.joined)
				return
			}
			s.cond.Wait()
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
		s.mu.Lock()
	}
}

// close drains the queue and joins the worker goroutine.
func (s *Stream) close() {
	s.mu.Lock()
	s.closing = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.joined
}

// Event is a point-in-time marker recorded on a stream. A wait on an event
// completes only after everything enqueued on the recording stream before
// the record has completed. Events are single-shot.
type Event struct {
	id    uuid.UUID
	ctx   *Context
	latch *xsync.Latch
}

// ID returns the event's unique id.
func (e *Event) ID() uuid.UUID { return e.id }

// Context returns the context owning this event.
func (e *Event) Context() *Context { return e.ctx }

// RecordOn marks the event complete once all work enqueued on stream so far
// has completed. The host thread does not block.
func (e *Event) RecordOn(stream *Stream) {
	stream.Enqueue(func() {
		klog.V(3).Infof("hostrt: event %s recorded on stream %s", e.id, stream.id)
		e.latch.Trigger()
	})
}

// Done reports whether the event has been reached, without blocking.
func (e *Event) Done() bool { return e.latch.Test() }
