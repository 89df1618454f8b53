// Package loop implements the unidirectional update loop.
//
// A loop owns one model, one effect connection and a set of observers. Events
// go in, the pure Update function turns (model, event) into a Next value, new
// models are published to observers and effects are handed to the effect
// connection.
//
// ARCHITECTURE:
//
// Single-Writer Dispatch:
// Every event, whether dispatched by a caller, produced by an event source or
// fed back by the effect connection, enters the same FIFO mailbox. One
// dispatch goroutine drains it, so Update never runs concurrently with itself
// and the model has exactly one writer.
//
// Event Processing Flow:
//  1. Dispatch() / EventSource / effect feedback enqueue the event
//  2. The dispatch goroutine dequeues one event at a time
//  3. Update(model, event) returns Next
//  4. If Next carries a model it replaces the current one and is published
//  5. Next's effects are handed, in order, to the effect runner
//  6. The effect runner calls Connection.Accept in handoff order
//
// Steps 4 and 5 happen under Loop.mu and finish before the next event is
// dequeued, so model publication order and effect order always agree.
//
// Lifecycle:
//
//	Created -> Running -> Disposed
//	                   -> Failed
//
// Disposed and Failed are terminal. Failed is reached only when an event
// source reports an error; observers receive it wrapped so that a broken
// source can be told apart from anything the Update function did.
//
// One connection per loop instance: the Connectable is wrapped with
// ConnectOnce when the loop starts. A second Connect on the same instance
// returns ErrConnectionLimitExceeded and leaves the first connection alone.
package loop
