// spsc_queue.go: Unbounded lock-free single-producer/single-consumer queue
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import "sync/atomic"

type spscNode[T any] struct {
	value T
	next  atomic.Pointer[spscNode[T]]
}

// spscQueue is a linked-list queue with a stub head node. Exactly one
// goroutine may push and exactly one may pop at a time; push and pop never
// block each other. Pop and pushNode never allocate.
//
// Closing is a signal from the consumer: pushes after Close fail so the
// producer can drop the queue.
type spscQueue[T any] struct {
	// consumer side
	head *spscNode[T]

	// producer side
	tail *spscNode[T]

	closed atomic.Bool
	length atomic.Int64
}

func newSPSCQueue[T any]() *spscQueue[T] {
	stub := &spscNode[T]{}
	return &spscQueue[T]{head: stub, tail: stub}
}

// push appends v. It reports false when the consumer closed the queue.
func (q *spscQueue[T]) push(v T) bool {
	if q.closed.Load() {
		return false
	}
	return q.pushNode(&spscNode[T]{value: v})
}

// pushNode appends a node allocated by the caller, so that a real-time
// producer can push without allocating. n must not already be queued.
func (q *spscQueue[T]) pushNode(n *spscNode[T]) bool {
	if q.closed.Load() {
		return false
	}
	n.next.Store(nil)
	q.tail.next.Store(n)
	q.tail = n
	q.length.Add(1)
	return true
}

// pop removes the oldest value without blocking.
func (q *spscQueue[T]) pop() (T, bool) {
	var zero T
	next := q.head.next.Load()
	if next == nil {
		return zero, false
	}
	v := next.value
	next.value = zero
	q.head = next
	q.length.Add(-1)
	return v, true
}

// drainLast pops everything and returns the newest value.
func (q *spscQueue[T]) drainLast() (T, bool) {
	var last T
	got := false
	for {
		v, ok := q.pop()
		if !ok {
			return last, got
		}
		last, got = v, true
	}
}

// close marks the queue as abandoned by its consumer.
func (q *spscQueue[T]) close() { q.closed.Store(true) }

// len is approximate while the other side is active.
func (q *spscQueue[T]) len() int { return int(q.length.Load()) }
