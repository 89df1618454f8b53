package loop

import "sync"

// mailbox is a thread-safe unbounded FIFO queue.
//
// The loop uses one mailbox for inbound events, one for effects waiting to be
// accepted, and one per observer. It is unbounded so that producers (including
// the effect connection feeding events back) never block on the consumer.
//
// The signal channel enables context-aware waiting in the consumer goroutine:
//
//	select {
//	case <-ctx.Done():
//	    return
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
type mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{} // Signals item availability (buffered, size 1)
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{
		items:  make([]T, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an item to the back of the queue.
// Returns false if the mailbox is closed.
func (q *mailbox[T]) Enqueue(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, item)

	// Non-blocking: the buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front item without blocking.
// Returns false if the mailbox is empty.
func (q *mailbox[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]

	// Clear the slot so the backing array does not pin the item
	q.items[0] = zero

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return item, true
}

// Wait returns a channel that signals when items may be available. The
// channel is closed by Close, so it fires forever afterwards.
func (q *mailbox[T]) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *mailbox[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drained reports whether the mailbox is closed and empty; the consumer
// should exit.
func (q *mailbox[T]) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

// Close stops further enqueues and wakes the consumer. Already queued items
// stay available to TryDequeue.
func (q *mailbox[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Discard closes the mailbox and drops every queued item. Returns the number
// of items dropped.
func (q *mailbox[T]) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	clear(q.items)
	q.items = q.items[:0]

	if !q.closed {
		q.closed = true
		close(q.signal)
	}
	return n
}
