package loop

import "sync/atomic"

// Clock is a monotonic logical clock.
//
// A loop stamps each applied transition with Clock.Next(), giving every
// transition a strictly increasing sequence number independent of wall time.
// The trace recorder uses the same numbering so recorded transitions replay
// in dispatch order.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
