package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a loop.
type State int

const (
	// StateCreated is the state before the effect handler is connected.
	StateCreated State = iota
	// StateRunning accepts events.
	StateRunning
	// StateDisposed is terminal, reached through Dispose.
	StateDisposed
	// StateFailed is terminal, reached when an event source fails.
	StateFailed
)

var stateNames = map[State]string{
	StateCreated:  "created",
	StateRunning:  "running",
	StateDisposed: "disposed",
	StateFailed:   "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further events will be processed.
func (s State) Terminal() bool {
	return s == StateDisposed || s == StateFailed
}

// idlePollInterval is how often AwaitIdle re-checks the pending count.
const idlePollInterval = time.Millisecond

// Loop is a running update loop.
//
// Thread-safety model:
//   - Dispatch(), Observe(), Model(), Dispose(): safe from any goroutine,
//     including observer callbacks and Connection.Accept
//   - Update: runs only on the dispatch goroutine
//   - Connection.Accept: runs only on the effect goroutine, in handoff order
//
// INVARIANTS:
//   - model is written only by the dispatch goroutine, under mu
//   - publication and effect handoff of one transition complete before the
//     next event is dequeued
//   - once state is terminal nothing is published or handed off
type Loop[M, E, F any] struct {
	id     string
	update Update[M, E, F]
	logger Logger[M, E, F]
	log    *slog.Logger
	clock  *Clock

	connector Connectable[F, E]
	conn      *guardedConnection[F]

	// acceptMu is held by the effect goroutine from the state check until
	// Accept returns. accepting is set while Accept runs.
	acceptMu  sync.Mutex
	accepting atomic.Bool

	// beforeAccept, if set, runs between the state check and Accept.
	beforeAccept func()

	events  *mailbox[E]
	effects *mailbox[F]
	pending atomic.Int64 // events and effects queued or being processed

	mu             sync.Mutex
	state          State
	model          M
	err            error
	observers      map[uint64]*subscription[M]
	nextObserverID uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

func newLoop[M, E, F any](id string, update Update[M, E, F], logger Logger[M, E, F], log *slog.Logger) *Loop[M, E, F] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop[M, E, F]{
		id:        id,
		update:    update,
		logger:    logger,
		log:       log,
		clock:     NewClock(),
		events:    newMailbox[E](),
		effects:   newMailbox[F](),
		observers: make(map[uint64]*subscription[M]),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// start connects the effect handler, attaches the initial observers, hands
// off the start effects and launches the dispatch goroutine, the effect
// goroutine and every event source.
func (l *Loop[M, E, F]) start(effects Connectable[F, E], first First[M, F], observers []Observer[M], sources []EventSource[E]) error {
	l.connector = ConnectOnce(effects)

	conn, err := l.connector.Connect(l.feedback)
	if err != nil {
		l.cancel()
		return fmt.Errorf("connect effect handler: %w", err)
	}
	if conn == nil {
		l.cancel()
		return NewConfigError("effect handler returned a nil connection")
	}
	l.conn = guardConnection(conn)

	l.mu.Lock()
	l.model = first.Model()
	l.state = StateRunning
	for _, o := range observers {
		l.attach(newSubscription(o))
	}
	for _, f := range first.Effects() {
		l.handoff(f)
	}
	l.mu.Unlock()

	l.wg.Add(2)
	go l.runDispatch()
	go l.runEffects()

	for _, src := range sources {
		l.wg.Add(1)
		go l.runSource(src)
	}

	go func() {
		l.wg.Wait()
		close(l.done)
	}()

	l.log.Info("loop started",
		"start_effects", len(first.Effects()),
		"sources", len(sources),
	)
	return nil
}

// ID returns the loop instance ID.
func (l *Loop[M, E, F]) ID() string {
	return l.id
}

// Dispatch enqueues an event. Safe from any goroutine.
//
// Returns an error matching ErrLoopDisposed or ErrLoopFailed once the loop has
// terminated.
func (l *Loop[M, E, F]) Dispatch(event E) error {
	if err := l.terminatedErr(); err != nil {
		return err
	}

	l.pending.Add(1)
	if !l.events.Enqueue(event) {
		l.pending.Add(-1)
		return l.terminatedErr()
	}
	return nil
}

// feedback is the Consumer handed to the effect handler and to event sources.
// Events that arrive after termination are dropped.
func (l *Loop[M, E, F]) feedback(event E) {
	if err := l.Dispatch(event); err != nil {
		l.log.Debug("dropping event after termination",
			"event", event,
			"state", l.State(),
		)
	}
}

// Observe attaches an observer. It first receives the current model, then
// every published model, then one terminal notification. Attaching to a
// terminated loop delivers only the terminal notification.
//
// The returned function detaches the observer; no terminal notification is
// delivered after it returns.
func (l *Loop[M, E, F]) Observe(o Observer[M]) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := newSubscription(o)

	switch l.state {
	case StateRunning:
		id := l.attach(s)
		return func() {
			l.mu.Lock()
			delete(l.observers, id)
			l.mu.Unlock()
			s.cancel()
		}

	case StateFailed:
		s.fail(l.err)

	default:
		s.complete()
	}

	return s.cancel
}

// attach publishes the current model to s and registers it. Caller holds mu
// and the loop is running.
func (l *Loop[M, E, F]) attach(s *subscription[M]) uint64 {
	s.publish(l.model)
	id := l.nextObserverID
	l.nextObserverID++
	l.observers[id] = s
	return id
}

// Model returns the most recently published model.
func (l *Loop[M, E, F]) Model() M {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.model
}

// State returns the lifecycle state.
func (l *Loop[M, E, F]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the failure reported to observers, or nil unless the loop is
// in StateFailed.
func (l *Loop[M, E, F]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Transitions returns the number of transitions applied so far.
func (l *Loop[M, E, F]) Transitions() int64 {
	return l.clock.Current()
}

// QueueLen returns the number of events waiting to be dispatched.
func (l *Loop[M, E, F]) QueueLen() int {
	return l.events.Len()
}

// Done is closed once every loop goroutine has exited and the effect
// connection has been released.
func (l *Loop[M, E, F]) Done() <-chan struct{} {
	return l.done
}

// AwaitIdle blocks until no event or effect is queued or being processed, or
// the loop has terminated. Events fed back asynchronously by the effect
// handler after Accept returns are not waited for.
func (l *Loop[M, E, F]) AwaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		if l.pending.Load() == 0 || l.State().Terminal() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Dispose stops the loop. Queued events and effects are discarded, observers
// are completed and the effect connection is released. Idempotent.
//
// After Dispose returns no transition is applied, no model is published and
// no effect reaches Accept. It waits for an effect whose state check already
// passed; an Accept that was running when Dispose was called, including the
// one Dispose is called from, may still be running. Observer callbacks are
// not waited for; use Done() for that.
func (l *Loop[M, E, F]) Dispose() {
	if l.terminate(StateDisposed, nil) {
		l.log.Info("loop disposed", "transitions", l.clock.Current())
	}
}

// fail moves the loop to StateFailed because an event source broke.
func (l *Loop[M, E, F]) fail(cause error) {
	wrapped := NewUnrecoverableError(l.id, cause)
	if l.terminate(StateFailed, wrapped) {
		l.log.Error("loop failed", "error", cause)
	}
}

// terminate performs the single transition into a terminal state. Returns
// false if the loop had already terminated.
func (l *Loop[M, E, F]) terminate(state State, err error) bool {
	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return false
	}

	l.state = state
	l.err = err

	for _, s := range l.observers {
		if err != nil {
			s.fail(err)
		} else {
			s.complete()
		}
	}
	l.observers = nil

	dropped := l.events.Discard() + l.effects.Discard()
	l.pending.Add(-int64(dropped))
	l.mu.Unlock()

	if dropped > 0 {
		l.log.Debug("discarded pending work", "count", dropped)
	}

	// Wait out an effect that passed the state check before the transition.
	// Skipped while Accept runs: it may be the caller.
	if !l.accepting.Load() {
		l.acceptMu.Lock()
		l.acceptMu.Unlock()
	}

	l.cancel()
	return true
}

func (l *Loop[M, E, F]) terminatedErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateDisposed:
		return &Error{Code: ErrCodeDisposed, Message: ErrLoopDisposed.Message, LoopID: l.id}
	case StateFailed:
		return &Error{Code: ErrCodeFailed, Message: ErrLoopFailed.Message, LoopID: l.id, Err: l.err}
	}
	return nil
}

// handoff queues an effect for the effect goroutine. Caller holds mu.
func (l *Loop[M, E, F]) handoff(effect F) {
	l.pending.Add(1)
	if !l.effects.Enqueue(effect) {
		l.pending.Add(-1)
	}
}

// runDispatch is the single writer. It dequeues events one at a time until
// the events mailbox is closed.
func (l *Loop[M, E, F]) runDispatch() {
	defer l.wg.Done()

	for {
		event, ok := l.events.TryDequeue()
		if ok {
			l.step(event)
			l.pending.Add(-1)
			continue
		}

		if l.events.Drained() {
			return
		}

		select {
		case <-l.ctx.Done():
			return
		case <-l.events.Wait():
		}
	}
}

// step applies one event.
// CRITICAL: Called only from runDispatch - single-writer guarantee.
func (l *Loop[M, E, F]) step(event E) {
	if l.State() != StateRunning {
		return
	}

	// Only this goroutine writes l.model, so reading it unlocked is safe.
	model := l.model

	l.logger.BeforeUpdate(model, event)
	next := l.applyUpdate(model, event)
	l.logger.AfterUpdate(model, event, next)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Disposed while Update ran: the result is dropped.
	if l.state != StateRunning {
		return
	}

	l.clock.Next()

	if next.HasModel() {
		l.model = next.Model()
		for _, s := range l.observers {
			s.publish(l.model)
		}
	}

	for _, f := range next.effects {
		l.handoff(f)
	}
}

// runEffects hands effects to the connection in order and releases the
// connection exactly once when the effects mailbox closes.
func (l *Loop[M, E, F]) runEffects() {
	defer l.wg.Done()
	defer l.conn.Dispose()

	for {
		effect, ok := l.effects.TryDequeue()
		if ok {
			l.accept(effect)
			l.pending.Add(-1)
			continue
		}

		if l.effects.Drained() {
			return
		}
		<-l.effects.Wait()
	}
}

// accept hands one effect to the connection unless the loop has terminated.
// CRITICAL: Called only from runEffects.
func (l *Loop[M, E, F]) accept(effect F) {
	l.acceptMu.Lock()
	defer l.acceptMu.Unlock()

	if l.State() != StateRunning {
		return
	}
	if l.beforeAccept != nil {
		l.beforeAccept()
	}

	l.accepting.Store(true)
	defer l.accepting.Store(false)
	l.conn.Accept(effect)
}

func (l *Loop[M, E, F]) runSource(src EventSource[E]) {
	defer l.wg.Done()

	err := src.Run(l.ctx, l.feedback)
	if err == nil || l.ctx.Err() != nil {
		return
	}
	l.fail(err)
}

// applyUpdate calls Update. A panic is a defect: it is logged and re-raised.
func (l *Loop[M, E, F]) applyUpdate(model M, event E) Next[M, F] {
	defer func() {
		if r := recover(); r != nil {
			err := panicError(r)
			l.log.Error("update panicked", "event", event, "error", err)
			l.logger.ExceptionDuringUpdate(model, event, err)
			panic(r)
		}
	}()
	return l.update(model, event)
}

// applyInit calls Init. A panic is a defect: it is logged and re-raised.
func (l *Loop[M, E, F]) applyInit(init Init[M, F], model M) First[M, F] {
	defer func() {
		if r := recover(); r != nil {
			err := panicError(r)
			l.log.Error("init panicked", "error", err)
			l.logger.ExceptionDuringInit(model, err)
			panic(r)
		}
	}()
	return init(model)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
