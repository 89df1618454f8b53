package testutil

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("loop-1")

	assert.Equal(t, "loop-1", gen.Generate())
	assert.Equal(t, "loop-1", gen.Generate())
}

func TestFixedIDGenerator_DefaultID(t *testing.T) {
	gen := NewFixedIDGenerator("")
	assert.Equal(t, "test-loop-default", gen.Generate())
}

func TestRecordingConnection_RecordsInOrder(t *testing.T) {
	conn := NewRecordingConnection[int]()

	conn.Accept(1)
	conn.Accept(2)
	conn.Accept(3)
	conn.Dispose()

	assert.Equal(t, []int{1, 2, 3}, conn.Values())
	assert.Equal(t, 3, conn.ValueCount())
	assert.Equal(t, 1, conn.DisposeCount())
	conn.AssertValues(t, 1, 2, 3)
	conn.AssertValuesInAnyOrder(t, 3, 1, 2)
}

func TestRecordingConnection_OnAcceptHook(t *testing.T) {
	conn := NewRecordingConnection[string]()
	var seen []string
	conn.OnAccept = func(v string) { seen = append(seen, v) }

	conn.Accept("a")

	assert.Equal(t, []string{"a"}, seen)
}

func TestRecordingConnection_WaitForCount(t *testing.T) {
	conn := NewRecordingConnection[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		conn.Accept(1)
		conn.Accept(2)
	}()

	assert.True(t, conn.WaitForCount(2, DefaultWait))
	assert.False(t, conn.WaitForCount(3, 20*time.Millisecond))
}

func TestRecordingObserver_RecordsModelsAndTerminal(t *testing.T) {
	obs := NewRecordingObserver[string]()

	obs.OnModel("a")
	obs.OnModel("b")
	assert.False(t, obs.Terminated())

	expected := errors.New("broken")
	obs.OnError(expected)

	assert.True(t, obs.Terminated())
	assert.Equal(t, 1, obs.ErrorCount())
	assert.Equal(t, 0, obs.CompleteCount())
	assert.ErrorIs(t, obs.Err(), expected)
	obs.AssertModels(t, "a", "b")
}

func TestRecordingObserver_ConcurrentUse(t *testing.T) {
	obs := NewRecordingObserver[int]()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			obs.OnModel(v)
		}(i)
	}
	wg.Wait()

	require.True(t, obs.WaitForCount(10, DefaultWait))
	assert.Len(t, obs.Models(), 10)
}

func TestRecordingConsumer_Values(t *testing.T) {
	var c RecordingConsumer[int]
	accept := c.Accept

	accept(4)
	accept(2)

	assert.Equal(t, []int{4, 2}, c.Values())
}

func TestContextWithTestDeadline_HasDeadline(t *testing.T) {
	ctx := ContextWithTestDeadline(t, time.Minute)

	_, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.NoError(t, ctx.Err())
}
