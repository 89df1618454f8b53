package loop

// Update is the pure transition function of a loop. It must not block, perform
// I/O or retain the model; anything slow belongs in the effect connection.
type Update[M, E, F any] func(model M, event E) Next[M, F]

// Init resolves the first model and start effects from a seed model.
type Init[M, F any] func(model M) First[M, F]

// Next is the result of one Update call.
//
// It is a tagged variant: either Unchanged (no new model) or Updated (a new
// model), both carrying zero or more effects in emission order. Observers are
// only notified for Updated, even when the new model equals the old one.
type Next[M, F any] struct {
	model    M
	hasModel bool
	effects  []F
}

// Updated returns a Next with a new model and optional effects.
func Updated[M, F any](model M, effects ...F) Next[M, F] {
	return Next[M, F]{model: model, hasModel: true, effects: copyEffects(effects)}
}

// Unchanged returns a Next that keeps the current model and dispatches the
// given effects.
func Unchanged[M, F any](effects ...F) Next[M, F] {
	return Next[M, F]{effects: copyEffects(effects)}
}

// Dispatch is an alias of Unchanged for Update functions that read better as
// "just dispatch these effects".
func Dispatch[M, F any](effects ...F) Next[M, F] {
	return Unchanged[M](effects...)
}

// NoChange returns a Next with no model and no effects.
func NoChange[M, F any]() Next[M, F] {
	return Next[M, F]{}
}

// HasModel reports whether this Next carries a new model.
func (n Next[M, F]) HasModel() bool {
	return n.hasModel
}

// Model returns the new model. Panics if HasModel is false; check first, or
// use ModelOrElse.
func (n Next[M, F]) Model() M {
	if !n.hasModel {
		panic("loop: Next has no model")
	}
	return n.model
}

// ModelOrElse returns the new model, or fallback when there is none.
func (n Next[M, F]) ModelOrElse(fallback M) M {
	if n.hasModel {
		return n.model
	}
	return fallback
}

// HasEffects reports whether any effects were emitted.
func (n Next[M, F]) HasEffects() bool {
	return len(n.effects) > 0
}

// Effects returns a copy of the effects in emission order.
func (n Next[M, F]) Effects() []F {
	return copyEffects(n.effects)
}

// First is the resolved start of a loop: the initial model and any start
// effects.
type First[M, F any] struct {
	model   M
	effects []F
}

// StartWith returns a First with the given model and start effects.
func StartWith[M, F any](model M, effects ...F) First[M, F] {
	return First[M, F]{model: model, effects: copyEffects(effects)}
}

// Model returns the initial model.
func (f First[M, F]) Model() M {
	return f.model
}

// HasEffects reports whether any start effects were supplied.
func (f First[M, F]) HasEffects() bool {
	return len(f.effects) > 0
}

// Effects returns a copy of the start effects in order.
func (f First[M, F]) Effects() []F {
	return copyEffects(f.effects)
}

func copyEffects[F any](effects []F) []F {
	if len(effects) == 0 {
		return nil
	}
	out := make([]F, len(effects))
	copy(out, effects)
	return out
}
