package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cycle/internal/loop"
)

// Recorder writes a loop's trace to a Sink.
//
// Wire it as both the loop's Logger and one of its observers, and give the
// loop the recorder's ID:
//
//	rec := trace.NewRecorder[M, E, F](ctx, sink, id, log)
//	l, err := builder.WithID(id).WithLogger(rec).StartFrom(model)
//	l.Observe(rec)
//
// Sink errors are logged and collected (see Err); they never reach the loop.
//
// Seq counts Update calls, starting at 1.
type Recorder[M, E, F any] struct {
	loop.NoopLogger[M, E, F]

	ctx    context.Context
	sink   Sink
	loopID string
	clock  *loop.Clock
	log    *slog.Logger

	mu     sync.Mutex
	errs   []error
	once   sync.Once
	done   chan struct{}
	status Status
}

// NewRecorder creates a Recorder for the loop with the given ID. A nil log
// uses slog.Default().
func NewRecorder[M, E, F any](ctx context.Context, sink Sink, loopID string, log *slog.Logger) *Recorder[M, E, F] {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder[M, E, F]{
		ctx:    ctx,
		sink:   sink,
		loopID: loopID,
		clock:  loop.NewClock(),
		log:    log.With("loop_id", loopID),
		done:   make(chan struct{}),
		status: StatusRunning,
	}
}

// LoopID returns the ID records are written under.
func (r *Recorder[M, E, F]) LoopID() string {
	return r.loopID
}

// AfterInit records the start model and start effects.
func (r *Recorder[M, E, F]) AfterInit(_ M, first loop.First[M, F]) {
	model, err := MarshalCanonical(first.Model())
	if err != nil {
		r.record(fmt.Errorf("encode start model: %w", err))
		return
	}
	effects, err := marshalEffects(first.Effects())
	if err != nil {
		r.record(fmt.Errorf("encode start effects: %w", err))
		return
	}

	r.record(r.sink.WriteLoop(r.ctx, LoopRecord{
		ID:           r.loopID,
		StartModel:   model,
		StartEffects: effects,
		Status:       StatusRunning,
	}))
}

func (r *Recorder[M, E, F]) ExceptionDuringInit(_ M, err error) {
	r.log.Error("init raised", "error", err)
}

// AfterUpdate records one transition.
func (r *Recorder[M, E, F]) AfterUpdate(_ M, event E, next loop.Next[M, F]) {
	seq := r.clock.Next()

	rec := TransitionRecord{
		LoopID:  r.loopID,
		Seq:     seq,
		Changed: next.HasModel(),
	}

	var err error
	if rec.Event, err = MarshalCanonical(event); err != nil {
		r.record(fmt.Errorf("encode event seq=%d: %w", seq, err))
		return
	}
	if next.HasModel() {
		if rec.Model, err = MarshalCanonical(next.Model()); err != nil {
			r.record(fmt.Errorf("encode model seq=%d: %w", seq, err))
			return
		}
	}
	if rec.Effects, err = marshalEffects(next.Effects()); err != nil {
		r.record(fmt.Errorf("encode effects seq=%d: %w", seq, err))
		return
	}

	r.record(r.sink.WriteTransition(r.ctx, rec))
}

func (r *Recorder[M, E, F]) ExceptionDuringUpdate(_ M, event E, err error) {
	r.log.Error("update raised", "event", fmt.Sprint(event), "error", err)
}

// OnModel is a no-op; models are recorded from AfterUpdate.
func (r *Recorder[M, E, F]) OnModel(M) {}

// OnError records that the loop failed.
func (r *Recorder[M, E, F]) OnError(err error) {
	r.finish(StatusFailed, err.Error())
}

// OnComplete records that the loop was disposed.
func (r *Recorder[M, E, F]) OnComplete() {
	r.finish(StatusDisposed, "")
}

// Done is closed once the terminal status has been written.
func (r *Recorder[M, E, F]) Done() <-chan struct{} {
	return r.done
}

// Status returns the last recorded status.
func (r *Recorder[M, E, F]) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns every sink error seen so far, joined.
func (r *Recorder[M, E, F]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errs...)
}

func (r *Recorder[M, E, F]) finish(status Status, errMsg string) {
	r.once.Do(func() {
		r.record(r.sink.FinishLoop(r.ctx, r.loopID, status, errMsg))

		r.mu.Lock()
		r.status = status
		r.mu.Unlock()

		close(r.done)
	})
}

func (r *Recorder[M, E, F]) record(err error) {
	if err == nil {
		return
	}
	r.log.Error("trace write failed", "error", err)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// marshalEffects always yields a JSON array, never null.
func marshalEffects[F any](effects []F) ([]byte, error) {
	if effects == nil {
		effects = []F{}
	}
	return MarshalCanonical(effects)
}
