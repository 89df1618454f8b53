package loop

import (
	"sync"
	"sync/atomic"
)

// Consumer receives values. The loop hands a Consumer[E] to the effect
// handler so it can feed events back into the dispatch mailbox.
type Consumer[T any] func(value T)

// Connection is a live handle that accepts values of type I.
//
// Accept may return before the work it triggers completes. Dispose releases
// whatever the connection owns; it is called exactly once, and Accept is never
// called after it.
type Connection[I any] interface {
	Accept(value I)
	Dispose()
}

// Connectable creates a Connection that accepts I and reports O through the
// given output consumer.
type Connectable[I, O any] interface {
	Connect(output Consumer[O]) (Connection[I], error)
}

// ConnectableFunc adapts a function to Connectable.
type ConnectableFunc[I, O any] func(output Consumer[O]) (Connection[I], error)

// Connect calls f(output).
func (f ConnectableFunc[I, O]) Connect(output Consumer[O]) (Connection[I], error) {
	return f(output)
}

// ConnectionFuncs adapts plain functions to Connection. A nil OnDispose is a
// no-op.
type ConnectionFuncs[I any] struct {
	OnAccept  func(value I)
	OnDispose func()
}

// Accept calls OnAccept.
func (c ConnectionFuncs[I]) Accept(value I) {
	c.OnAccept(value)
}

// Dispose calls OnDispose if set.
func (c ConnectionFuncs[I]) Dispose() {
	if c.OnDispose != nil {
		c.OnDispose()
	}
}

// ConnectOnce wraps a Connectable so that it can be connected at most once.
// Every later Connect returns ErrConnectionLimitExceeded without calling the
// wrapped Connectable and without affecting the first connection.
//
// The limit is a flag on the returned value, not a global registry: wrap once
// per loop instance.
func ConnectOnce[I, O any](c Connectable[I, O]) Connectable[I, O] {
	return &onceConnectable[I, O]{delegate: c}
}

type onceConnectable[I, O any] struct {
	delegate  Connectable[I, O]
	connected atomic.Bool
}

func (o *onceConnectable[I, O]) Connect(output Consumer[O]) (Connection[I], error) {
	if !o.connected.CompareAndSwap(false, true) {
		return nil, ErrConnectionLimitExceeded
	}
	return o.delegate.Connect(output)
}

// guardedConnection enforces the Connection contract: Accept after Dispose and
// a second Dispose are programmer errors and panic.
type guardedConnection[I any] struct {
	mu       sync.Mutex
	delegate Connection[I]
	disposed bool
}

func guardConnection[I any](c Connection[I]) *guardedConnection[I] {
	return &guardedConnection[I]{delegate: c}
}

func (g *guardedConnection[I]) Accept(value I) {
	g.mu.Lock()
	disposed := g.disposed
	g.mu.Unlock()

	if disposed {
		panic(newContractViolation("accept called on a disposed connection"))
	}
	g.delegate.Accept(value)
}

func (g *guardedConnection[I]) Dispose() {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		panic(newContractViolation("connection disposed twice"))
	}
	g.disposed = true
	g.mu.Unlock()

	g.delegate.Dispose()
}
