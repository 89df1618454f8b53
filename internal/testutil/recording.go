package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// pollInterval is the sleep between checks in the Wait helpers.
const pollInterval = 5 * time.Millisecond

// waitFor polls cond until it holds or timeout elapses.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

// RecordingConnection records every accepted value and every Dispose call.
// It satisfies loop.Connection[T].
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingConnection[T any] struct {
	mu       sync.Mutex
	values   []T
	disposed int

	// OnAccept, if set, is called after a value is recorded. It runs on the
	// caller's goroutine.
	OnAccept func(value T)
}

// NewRecordingConnection creates an empty RecordingConnection.
func NewRecordingConnection[T any]() *RecordingConnection[T] {
	return &RecordingConnection[T]{}
}

// Accept records value.
func (c *RecordingConnection[T]) Accept(value T) {
	c.mu.Lock()
	c.values = append(c.values, value)
	hook := c.OnAccept
	c.mu.Unlock()

	if hook != nil {
		hook(value)
	}
}

// Dispose counts the call. The loop must call it exactly once.
func (c *RecordingConnection[T]) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed++
}

// Values returns a copy of the accepted values in order.
func (c *RecordingConnection[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.values))
	copy(out, c.values)
	return out
}

// ValueCount returns the number of accepted values.
func (c *RecordingConnection[T]) ValueCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// DisposeCount returns how many times Dispose was called.
func (c *RecordingConnection[T]) DisposeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// WaitForCount waits until at least n values were accepted.
func (c *RecordingConnection[T]) WaitForCount(n int, timeout time.Duration) bool {
	return waitFor(timeout, func() bool { return c.ValueCount() >= n })
}

// WaitForDispose waits until Dispose was called at least once.
func (c *RecordingConnection[T]) WaitForDispose(timeout time.Duration) bool {
	return waitFor(timeout, func() bool { return c.DisposeCount() > 0 })
}

// AssertValues asserts the accepted values equal expected, in order.
func (c *RecordingConnection[T]) AssertValues(t testing.TB, expected ...T) bool {
	t.Helper()
	if len(expected) == 0 {
		return assert.Empty(t, c.Values())
	}
	return assert.Equal(t, expected, c.Values())
}

// AssertValuesInAnyOrder asserts the accepted values match expected, ignoring
// order.
func (c *RecordingConnection[T]) AssertValuesInAnyOrder(t testing.TB, expected ...T) bool {
	t.Helper()
	return assert.ElementsMatch(t, expected, c.Values())
}

// RecordingObserver records the model stream of a loop. It satisfies
// loop.Observer[M].
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingObserver[M any] struct {
	mu        sync.Mutex
	models    []M
	err       error
	errors    int
	completed int
}

// NewRecordingObserver creates an empty RecordingObserver.
func NewRecordingObserver[M any]() *RecordingObserver[M] {
	return &RecordingObserver[M]{}
}

// OnModel records a model.
func (o *RecordingObserver[M]) OnModel(model M) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.models = append(o.models, model)
}

// OnError records the terminal error.
func (o *RecordingObserver[M]) OnError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
	o.errors++
}

// OnComplete records normal completion.
func (o *RecordingObserver[M]) OnComplete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed++
}

// Models returns a copy of the received models in order.
func (o *RecordingObserver[M]) Models() []M {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]M, len(o.models))
	copy(out, o.models)
	return out
}

// ModelCount returns the number of received models.
func (o *RecordingObserver[M]) ModelCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.models)
}

// Err returns the last terminal error, if any.
func (o *RecordingObserver[M]) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// ErrorCount returns how many times OnError was called.
func (o *RecordingObserver[M]) ErrorCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errors
}

// CompleteCount returns how many times OnComplete was called.
func (o *RecordingObserver[M]) CompleteCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.completed
}

// Terminated reports whether OnError or OnComplete was called.
func (o *RecordingObserver[M]) Terminated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errors+o.completed > 0
}

// WaitForCount waits until at least n models were received.
func (o *RecordingObserver[M]) WaitForCount(n int, timeout time.Duration) bool {
	return waitFor(timeout, func() bool { return o.ModelCount() >= n })
}

// WaitForTerminal waits until OnError or OnComplete was called.
func (o *RecordingObserver[M]) WaitForTerminal(timeout time.Duration) bool {
	return waitFor(timeout, o.Terminated)
}

// AssertModels asserts the received models equal expected, in order.
func (o *RecordingObserver[M]) AssertModels(t testing.TB, expected ...M) bool {
	t.Helper()
	return assert.Equal(t, expected, o.Models())
}

// RecordingConsumer records values passed to Accept. Its Accept method value
// can be used as a loop.Consumer.
type RecordingConsumer[T any] struct {
	mu     sync.Mutex
	values []T
}

// Accept records value.
func (c *RecordingConsumer[T]) Accept(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, value)
}

// Values returns a copy of the recorded values.
func (c *RecordingConsumer[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.values))
	copy(out, c.values)
	return out
}
