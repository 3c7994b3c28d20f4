// Package hostrt implements the runtime collaborators of the lowering
// pipeline: the host-side chain primitive, and a device runtime of contexts,
// streams and events.
//
// The runtime honors the two ordering models the lowered program composes:
//
//   - A Chain is an opaque, payload-free happens-before signal with a single
//     producer. Consumers wait on it; it carries no payload.
//
//   - A Stream is an ordered command queue, host-non-blocking: Enqueue never
//     blocks the caller, and entries execute in issue order on a dedicated
//     goroutine. No order holds across streams unless one waits on an Event
//     recorded on the other.
//
// The device surface is exactly what lowered programs need: create a stream
// or event from a context, look up a stream's context, record an event on a
// stream, and make a stream wait on an event. Streams stay alive until their
// owning Context is closed; every chain a program produces must be treated
// as the authoritative completion signal before the context may go away.
package hostrt

import (
	"sync/atomic"

	"github.com/gomlx/exceptions"

	"github.com/gomlx/asyncflow/types/xsync"
)

// Chain is a single-producer, multi-consumer completion signal.
type Chain struct {
	latch    *xsync.Latch
	resolved atomic.Bool
}

// NewChain returns an unresolved chain.
func NewChain() *Chain {
	return &Chain{latch: xsync.NewLatch()}
}

// ResolvedChain returns a chain that is already resolved, used as the
// incoming chain of a program's entry.
func ResolvedChain() *Chain {
	c := NewChain()
	c.Resolve()
	return c
}

// Resolve marks the chain complete. Chains have a single producer per
// control path; resolving twice is a bug and panics.
func (c *Chain) Resolve() {
	if !c.resolved.CompareAndSwap(false, true) {
		exceptions.Panicf("hostrt: chain resolved twice")
	}
	c.latch.Trigger()
}

// Done reports whether the chain has resolved, without blocking.
func (c *Chain) Done() bool { return c.latch.Test() }

// Wait blocks until the chain resolves.
func (c *Chain) Wait() { c.latch.Wait() }

// WaitChan returns a channel closed when the chain resolves, for use in
// select statements.
func (c *Chain) WaitChan() <-chan struct{} { return c.latch.WaitChan() }
