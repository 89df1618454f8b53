package loop

import (
	"fmt"
	"log/slog"
)

// Builder holds the configuration of a loop. It is an immutable value: every
// With method returns a modified copy, so one Builder can start any number of
// independent loops.
type Builder[M, E, F any] struct {
	update  Update[M, E, F]
	effects Connectable[F, E]
	init    Init[M, F]
	sources []EventSource[E]
	watch   []Observer[M]
	logger  Logger[M, E, F]
	log     *slog.Logger
	ids     IDGenerator
	id      string
}

// NewBuilder creates a Builder from an Update function and an effect handler.
//
// The effect handler is connected once per started loop; its Connection
// receives every effect and may feed events back through the Consumer it is
// given.
func NewBuilder[M, E, F any](update Update[M, E, F], effects Connectable[F, E]) Builder[M, E, F] {
	return Builder[M, E, F]{
		update:  update,
		effects: effects,
	}
}

// WithInit sets the Init function. With Init configured, StartFrom treats its
// model as a seed and must not be given start effects.
func (b Builder[M, E, F]) WithInit(init Init[M, F]) Builder[M, E, F] {
	b.init = init
	return b
}

// WithEventSource adds an event source. Sources start with the loop and are
// cancelled when it terminates.
func (b Builder[M, E, F]) WithEventSource(src EventSource[E]) Builder[M, E, F] {
	sources := make([]EventSource[E], len(b.sources), len(b.sources)+1)
	copy(sources, b.sources)
	b.sources = append(sources, src)
	return b
}

// WithObserver adds an observer that is attached before the loop starts, so
// it receives the first model ahead of any event from a source or from the
// effect handler. It is attached to every loop started from this builder.
func (b Builder[M, E, F]) WithObserver(o Observer[M]) Builder[M, E, F] {
	watch := make([]Observer[M], len(b.watch), len(b.watch)+1)
	copy(watch, b.watch)
	b.watch = append(watch, o)
	return b
}

// WithLogger sets the instrumentation Logger.
func (b Builder[M, E, F]) WithLogger(logger Logger[M, E, F]) Builder[M, E, F] {
	b.logger = logger
	return b
}

// WithSlog sets the slog.Logger used for lifecycle diagnostics.
// Default: slog.Default().
func (b Builder[M, E, F]) WithSlog(log *slog.Logger) Builder[M, E, F] {
	b.log = log
	return b
}

// WithIDGenerator sets the loop ID generator. Default: UUIDv7Generator.
func (b Builder[M, E, F]) WithIDGenerator(ids IDGenerator) Builder[M, E, F] {
	b.ids = ids
	return b
}

// WithID fixes the ID of loops started from this builder. Takes precedence
// over WithIDGenerator.
func (b Builder[M, E, F]) WithID(id string) Builder[M, E, F] {
	b.id = id
	return b
}

// Validate reports missing required configuration.
func (b Builder[M, E, F]) Validate() error {
	if b.update == nil {
		return NewConfigError("update function is required")
	}
	if b.effects == nil {
		return NewConfigError("effect handler is required")
	}
	for i, src := range b.sources {
		if src == nil {
			return NewConfigError("event source %d is nil", i)
		}
	}
	for i, o := range b.watch {
		if o == nil {
			return NewConfigError("observer %d is nil", i)
		}
	}
	return nil
}

// StartFrom resolves the first model and starts a loop.
//
// Without an Init function, model and effects are used as given. With an
// Init function, model is the seed passed to Init; passing start effects as
// well is a configuration error, reported before anything runs.
//
// A panic in Init is logged and re-raised.
func (b Builder[M, E, F]) StartFrom(model M, effects ...F) (*Loop[M, E, F], error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.init != nil && len(effects) > 0 {
		return nil, NewConfigError("start effects cannot be combined with an init function (got %d effects)", len(effects))
	}

	id := b.id
	if id == "" {
		ids := b.ids
		if ids == nil {
			ids = UUIDv7Generator{}
		}
		id = ids.Generate()
	}

	logger := b.logger
	if logger == nil {
		logger = NoopLogger[M, E, F]{}
	}

	log := b.log
	if log == nil {
		log = slog.Default()
	}

	l := newLoop(id, b.update, logger, log.With("loop_id", id))

	logger.BeforeInit(model)
	var first First[M, F]
	if b.init != nil {
		first = l.applyInit(b.init, model)
	} else {
		first = StartWith(model, effects...)
	}
	logger.AfterInit(model, first)

	if err := l.start(b.effects, first, b.watch, b.sources); err != nil {
		return nil, fmt.Errorf("start loop %s: %w", id, err)
	}
	return l, nil
}
