// Package events provides the ordered event queue between feed producers and
// a strategy runtime. Multiple producers enqueue; exactly one consumer drains,
// which serializes all buffer and decision-state mutations for an instance.
package events

import (
	"context"
	"sync"
)

// Queue is a bounded FIFO of feed events. Push blocks when full rather than
// dropping, so the consumer sees every bar in arrival order.
type Queue struct {
	ch        chan Event
	closeOnce sync.Once
}

// NewQueue allocates a queue with the given buffer size.
func NewQueue(buffer int) *Queue {
	if buffer <= 0 {
		buffer = 256
	}
	return &Queue{ch: make(chan Event, buffer)}
}

// Push enqueues an event, blocking while the queue is full. It returns the
// context error if the producer is cancelled first.
func (q *Queue) Push(ctx context.Context, e Event) error {
	select {
	case q.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events is the consumer side. The channel closes after Close once drained.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Close signals end of input. Producers must not Push afterwards.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}
