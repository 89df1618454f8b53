package trace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cycle/internal/loop"
)

// memorySink is an in-memory Sink.
type memorySink struct {
	mu          sync.Mutex
	loops       map[string]LoopRecord
	transitions []TransitionRecord
	failWrites  error
}

func newMemorySink() *memorySink {
	return &memorySink{loops: make(map[string]LoopRecord)}
}

func (m *memorySink) WriteLoop(_ context.Context, rec LoopRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loops[rec.ID]; !ok {
		m.loops[rec.ID] = rec
	}
	return nil
}

func (m *memorySink) WriteTransition(_ context.Context, rec TransitionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	m.transitions = append(m.transitions, rec)
	return nil
}

func (m *memorySink) FinishLoop(_ context.Context, id string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.loops[id]
	rec.Status = status
	rec.Error = errMsg
	m.loops[id] = rec
	return nil
}

func (m *memorySink) snapshot(id string) (LoopRecord, []TransitionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loops[id], append([]TransitionRecord(nil), m.transitions...)
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// counter keeps an int model; even events emit an effect, zero changes nothing.
func counter(model int, event int) loop.Next[int, string] {
	switch {
	case event == 0:
		return loop.NoChange[int, string]()
	case event%2 == 0:
		return loop.Updated(model+event, "even:"+strconv.Itoa(event))
	default:
		return loop.Updated[int, string](model + event)
	}
}

func startRecorded(t *testing.T, sink Sink, events chan int, errs chan error) (*loop.Loop[int, int, string], *Recorder[int, int, string]) {
	t.Helper()

	rec := NewRecorder[int, int, string](context.Background(), sink, "loop-1", discardLog())
	conn := loop.ConnectableFunc[string, int](func(loop.Consumer[int]) (loop.Connection[string], error) {
		return loop.ConnectionFuncs[string]{OnAccept: func(string) {}}, nil
	})

	l, err := loop.NewBuilder[int, int, string](counter, conn).
		WithID(rec.LoopID()).
		WithLogger(rec).
		WithSlog(discardLog()).
		WithEventSource(loop.ChannelSource[int]{Events: events, Errs: errs}).
		StartFrom(10, "boot")
	require.NoError(t, err)
	l.Observe(rec)
	t.Cleanup(l.Dispose)
	return l, rec
}

func TestRecorder_RecordsTransitionsAndDisposal(t *testing.T) {
	sink := newMemorySink()
	l, rec := startRecorded(t, sink, nil, nil)

	for _, ev := range []int{1, 0, 2} {
		require.NoError(t, l.Dispatch(ev))
	}
	require.NoError(t, l.AwaitIdle(context.Background()))
	l.Dispose()

	select {
	case <-rec.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("recorder not finished")
	}

	start, transitions := sink.snapshot("loop-1")
	assert.Equal(t, StatusDisposed, start.Status)
	assert.Equal(t, StatusDisposed, rec.Status())
	assert.JSONEq(t, `10`, string(start.StartModel))
	assert.Equal(t, `["boot"]`, string(start.StartEffects))

	require.Len(t, transitions, 3)
	assert.Equal(t, int64(1), transitions[0].Seq)
	assert.Equal(t, `11`, string(transitions[0].Model))
	assert.Equal(t, `[]`, string(transitions[0].Effects))

	assert.False(t, transitions[1].Changed)
	assert.Nil(t, transitions[1].Model)

	assert.Equal(t, int64(3), transitions[2].Seq)
	assert.Equal(t, `13`, string(transitions[2].Model))
	assert.Equal(t, `["even:2"]`, string(transitions[2].Effects))

	assert.NoError(t, rec.Err())
}

func TestRecorder_RecordsFailure(t *testing.T) {
	sink := newMemorySink()
	errs := make(chan error, 1)
	_, rec := startRecorded(t, sink, nil, errs)

	errs <- errors.New("socket closed")

	select {
	case <-rec.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("recorder not finished")
	}

	start, _ := sink.snapshot("loop-1")
	assert.Equal(t, StatusFailed, start.Status)
	assert.Contains(t, start.Error, "socket closed")
}

func TestRecorder_SinkErrorsAreCollected(t *testing.T) {
	sink := newMemorySink()
	sink.failWrites = errors.New("disk full")
	l, rec := startRecorded(t, sink, nil, nil)

	require.NoError(t, l.Dispatch(1))
	require.NoError(t, l.AwaitIdle(context.Background()))

	assert.Equal(t, 11, l.Model(), "sink errors must not affect the loop")
	assert.ErrorContains(t, rec.Err(), "disk full")
}
