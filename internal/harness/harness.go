package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/roach88/cycle/internal/loop"
	"github.com/roach88/cycle/internal/store"
	"github.com/roach88/cycle/internal/testutil"
	"github.com/roach88/cycle/internal/trace"
)

// DefaultTimeout bounds each wait for the loop: idleness after an event and
// termination at the end of the scenario.
const DefaultTimeout = 5 * time.Second

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation matched.
	Pass bool `json:"pass"`

	LoopID string `json:"loop_id"`

	// Models is the published model sequence replayed from the trace.
	Models []string `json:"models"`

	// Effects is every effect that reached the connection, in order.
	Effects []string `json:"effects"`

	// Status is the recorded terminal status; empty if the loop never started.
	Status trace.Status `json:"status,omitempty"`

	// Err is the start or terminal error message.
	Err string `json:"error,omitempty"`

	Transitions []trace.TransitionRecord `json:"transitions"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Models:      []string{},
		Effects:     []string{},
		Transitions: []trace.TransitionRecord{},
		Errors:      []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Harness runs scenarios against one store.
type Harness struct {
	store   *store.Store
	ids     loop.IDGenerator
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Harness.
type Option func(*Harness)

// WithIDGenerator sets the loop ID generator used when a scenario does not
// fix its loop ID. Default: a fixed "test-loop-default".
func WithIDGenerator(ids loop.IDGenerator) Option {
	return func(h *Harness) { h.ids = ids }
}

// WithLogger sets the slog.Logger passed to each loop. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) { h.timeout = d }
}

// New creates a Harness recording into st.
func New(st *store.Store, opts ...Option) *Harness {
	h := &Harness{
		store:   st,
		ids:     testutil.NewFixedIDGenerator(""),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario in a fresh in-memory database.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	return New(st).Run(context.Background(), scenario)
}

// Run executes one scenario and returns its result. Expectation mismatches
// are reported in the Result; the error is reserved for scenarios that cannot
// be run at all or for store failures.
//
// Execution flow:
//  1. Start the loop with a recording connection and trace recorder
//  2. Dispatch each event, waiting for idleness after each one
//  3. Fail the event source (source_error) or dispose the loop
//  4. Replay models from the store and compare with the expectations
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	prog, ok := LookupProgram(scenario.Program)
	if !ok {
		return nil, fmt.Errorf("unknown program %q", scenario.Program)
	}

	id := scenario.LoopID
	if id == "" {
		id = h.ids.Generate()
	}

	result := NewResult()
	result.LoopID = id

	rec := trace.NewRecorder[string, string, string](ctx, h.store, id, h.logger)
	conn := testutil.NewRecordingConnection[string]()
	effects := loop.ConnectableFunc[string, string](func(output loop.Consumer[string]) (loop.Connection[string], error) {
		conn.OnAccept = func(effect string) { prog.Handle(effect, output) }
		return conn, nil
	})

	observed := testutil.NewRecordingObserver[string]()
	sourceErrs := make(chan error, 1)
	builder := loop.NewBuilder(prog.Update, effects).
		WithID(id).
		WithLogger(loop.Loggers[string, string, string](rec, loop.NewSlogLogger[string, string, string](h.logger))).
		WithSlog(h.logger).
		WithEventSource(loop.ChannelSource[string]{Errs: sourceErrs}).
		WithObserver(rec).
		WithObserver(observed)
	if scenario.Start.Init {
		builder = builder.WithInit(prog.Init)
	}

	l, err := builder.StartFrom(scenario.Start.Model, scenario.Start.Effects...)
	if err != nil {
		result.Err = err.Error()
		checkExpectations(scenario, result)
		return result, nil
	}
	defer l.Dispose()

	if err := h.awaitIdle(ctx, l); err != nil {
		result.AddError("start: %v", err)
	}
	for i, event := range scenario.Events {
		if err := l.Dispatch(event); err != nil {
			result.AddError("events[%d] %q: %v", i, event, err)
			break
		}
		if err := h.awaitIdle(ctx, l); err != nil {
			result.AddError("events[%d] %q: %v", i, event, err)
			break
		}
	}

	if scenario.SourceError != "" {
		sourceErrs <- errors.New(scenario.SourceError)
	} else {
		l.Dispose()
	}

	if !h.wait(l.Done()) || !h.wait(rec.Done()) || !observed.WaitForTerminal(h.timeout) {
		result.AddError("loop did not terminate within %s", h.timeout)
	}

	result.Effects = append(result.Effects, conn.Values()...)
	result.Status = rec.Status()
	if err := observed.Err(); err != nil {
		result.Err = err.Error()
	}
	if err := rec.Err(); err != nil {
		return nil, fmt.Errorf("record trace: %w", err)
	}

	if err := h.readTrace(ctx, id, result); err != nil {
		return nil, err
	}

	// Observers attached at start see exactly the replayed sequence.
	if got := observed.Models(); !slices.Equal(got, result.Models) {
		result.AddError("observed models %q differ from replayed models %q", got, result.Models)
	}

	checkExpectations(scenario, result)
	return result, nil
}

func (h *Harness) awaitIdle(ctx context.Context, l *loop.Loop[string, string, string]) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return l.AwaitIdle(ctx)
}

func (h *Harness) wait(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-time.After(h.timeout):
		return false
	}
}

func (h *Harness) readTrace(ctx context.Context, id string, result *Result) error {
	transitions, err := h.store.ReadTransitions(ctx, id)
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}
	result.Transitions = transitions

	models, err := h.store.ReplayModels(ctx, id)
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}
	for _, raw := range models {
		var m string
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("decode replayed model %s: %w", raw, err)
		}
		result.Models = append(result.Models, m)
	}
	return nil
}

func checkExpectations(s *Scenario, r *Result) {
	if s.Expect.Models != nil && !slices.Equal(s.Expect.Models, r.Models) {
		r.AddError("models: expected %q, got %q", s.Expect.Models, r.Models)
	}
	if s.Expect.Effects != nil && !slices.Equal(s.Expect.Effects, r.Effects) {
		r.AddError("effects: expected %q, got %q", s.Expect.Effects, r.Effects)
	}

	switch {
	case s.Expect.Error == "" && r.Err != "":
		r.AddError("unexpected error: %s", r.Err)
	case s.Expect.Error != "" && !strings.Contains(r.Err, s.Expect.Error):
		r.AddError("error: expected %q, got %q", s.Expect.Error, r.Err)
	}
}
