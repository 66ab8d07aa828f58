// Package queue implements a fixed-capacity, lock-free multi-producer
// multi-consumer queue. It backs the scheduler run queue, the slot pool,
// and every actor mailbox in package actor.
//
// The algorithm is the classic per-cell sequence-number ring buffer
// (Vyukov's bounded MPMC queue), the same cycle-tagged-slot technique the
// hayabusa-cloud-lfq library documents for its SCQ variant, adapted here
// to a single physical slot per capacity unit (no 2n blow-up) and built on
// plain sync/atomic rather than a private atomics package.
package queue

import "sync/atomic"

type cell[T any] struct {
	sequence atomic.Uint64
	data     T
}

// Queue is a bounded MPMC queue of T. Push never blocks: it fails and
// hands the element back when the queue is full. Pop never blocks: it
// returns the zero value and false when the queue is empty.
type Queue[T any] struct {
	buffer     []cell[T]
	capacity   uint64
	enqueuePos atomic.Uint64
	dequeuePos atomic.Uint64
}

// New creates a queue with the given fixed capacity. Panics if capacity
// is not positive: a zero-capacity queue can hold nothing. NewEngine
// rejects a non-positive process capacity before reaching here; Spawn
// does not check Props.MailboxCapacity, so a non-positive mailbox
// capacity panics here.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	q := &Queue[T]{
		buffer:   make([]cell[T], capacity),
		capacity: uint64(capacity),
	}
	for i := range q.buffer {
		q.buffer[i].sequence.Store(uint64(i))
	}
	return q
}

// Cap returns the queue's fixed capacity.
func (q *Queue[T]) Cap() int {
	return int(q.capacity)
}

// Push attempts to enqueue v. On success it returns the zero value of T
// and true. When the queue is full it returns v unchanged and false so
// the caller can retry, drop it, or shed load.
func (q *Queue[T]) Push(v T) (T, bool) {
	pos := q.enqueuePos.Load()
	for {
		c := &q.buffer[pos%q.capacity]
		seq := c.sequence.Load()
		diff := int64(seq - pos)
		switch {
		case diff == 0:
			if q.enqueuePos.CompareAndSwap(pos, pos+1) {
				c.data = v
				c.sequence.Store(pos + 1)
				var zero T
				return zero, true
			}
			pos = q.enqueuePos.Load()
		case diff < 0:
			return v, false
		default:
			pos = q.enqueuePos.Load()
		}
	}
}

// Peek reports whether a Pop would currently succeed, without consuming
// anything. It is a hint, not a guarantee: a concurrent Push or Pop can
// invalidate the answer the instant after it's returned. Callers use it
// to decide whether a recheck is worth doing, never as a precondition for
// correctness.
func (q *Queue[T]) Peek() bool {
	pos := q.dequeuePos.Load()
	c := &q.buffer[pos%q.capacity]
	seq := c.sequence.Load()
	return int64(seq-(pos+1)) == 0
}

// Pop attempts to dequeue an element. It returns the zero value and false
// when the queue is currently empty.
func (q *Queue[T]) Pop() (T, bool) {
	pos := q.dequeuePos.Load()
	for {
		c := &q.buffer[pos%q.capacity]
		seq := c.sequence.Load()
		diff := int64(seq - (pos + 1))
		switch {
		case diff == 0:
			if q.dequeuePos.CompareAndSwap(pos, pos+1) {
				data := c.data
				var zero T
				c.data = zero
				c.sequence.Store(pos + q.capacity)
				return data, true
			}
			pos = q.dequeuePos.Load()
		case diff < 0:
			var zero T
			return zero, false
		default:
			pos = q.dequeuePos.Load()
		}
	}
}
