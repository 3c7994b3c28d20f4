// Package xsync implements some extra synchronization tools.
package xsync

import "sync"

// Latch is a one-shot completion signal. It starts untriggered; Trigger
// moves it to the triggered state permanently, releasing every current and
// future waiter. Triggering more than once is a no-op.
type Latch struct {
	once sync.Once
	done chan struct{}
}

// NewLatch returns an untriggered latch.
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Trigger fires the latch. Safe to call from any goroutine, any number of
// times.
func (l *Latch) Trigger() {
	l.once.Do(func() { close(l.done) })
}

// Wait blocks until the latch triggers.
func (l *Latch) Wait() {
	<-l.done
}

// Test reports whether the latch has triggered, without blocking.
func (l *Latch) Test() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// WaitChan returns a channel closed when the latch triggers, for use in
// select statements.
func (l *Latch) WaitChan() <-chan struct{} {
	return l.done
}
