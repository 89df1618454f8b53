package loop

import "context"

// EventSource produces events for a loop from outside it.
//
// Run blocks until the source is exhausted or ctx is cancelled, calling emit
// for every event. Returning nil (or ctx.Err() after cancellation) ends the
// source quietly. Any other error means the source itself is broken: the loop
// moves to Failed and reports the error, wrapped, to its observers.
type EventSource[E any] interface {
	Run(ctx context.Context, emit Consumer[E]) error
}

// SourceFunc adapts a function to EventSource.
type SourceFunc[E any] func(ctx context.Context, emit Consumer[E]) error

// Run calls f(ctx, emit).
func (f SourceFunc[E]) Run(ctx context.Context, emit Consumer[E]) error {
	return f(ctx, emit)
}

// ChannelSource forwards values from Events and fails on the first value from
// Errs. Closing Events ends the source normally; a nil Errs channel never
// fires.
type ChannelSource[E any] struct {
	Events <-chan E
	Errs   <-chan error
}

// Run forwards events until Events is closed, an error arrives or ctx ends.
func (s ChannelSource[E]) Run(ctx context.Context, emit Consumer[E]) error {
	errs := s.Errs
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				// Closed without an error: stop listening
				errs = nil
				continue
			}
			if err != nil {
				return err
			}

		case ev, ok := <-s.Events:
			if !ok {
				return nil
			}
			emit(ev)
		}
	}
}
