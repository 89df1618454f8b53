package loop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cycle/internal/testutil"
)

func recordingConnectable(conn *testutil.RecordingConnection[bool]) (Connectable[bool, int], *int) {
	calls := 0
	return ConnectableFunc[bool, int](func(output Consumer[int]) (Connection[bool], error) {
		calls++
		return conn, nil
	}), &calls
}

func TestConnectOnce_SecondConnectFails(t *testing.T) {
	conn := testutil.NewRecordingConnection[bool]()
	c, calls := recordingConnectable(conn)
	once := ConnectOnce(c)

	first, err := once.Connect(func(int) {})
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := once.Connect(func(int) {})
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrConnectionLimitExceeded)
	assert.True(t, IsConnectionLimitError(err))
	assert.Equal(t, 1, *calls, "delegate must not be called again")

	// First connection still works
	first.Accept(true)
	conn.AssertValues(t, true)
	assert.Equal(t, 0, conn.DisposeCount())
}

func TestConnectOnce_IsPerInstance(t *testing.T) {
	conn := testutil.NewRecordingConnection[bool]()
	c, calls := recordingConnectable(conn)

	_, err := ConnectOnce(c).Connect(func(int) {})
	require.NoError(t, err)
	_, err = ConnectOnce(c).Connect(func(int) {})
	require.NoError(t, err, "separate wrappers have separate limits")

	assert.Equal(t, 2, *calls)
}

func TestGuardedConnection_AcceptAfterDisposePanics(t *testing.T) {
	conn := testutil.NewRecordingConnection[bool]()
	g := guardConnection[bool](conn)

	g.Accept(true)
	g.Dispose()

	assert.PanicsWithError(t, "CONTRACT_VIOLATION: accept called on a disposed connection", func() {
		g.Accept(false)
	})
	conn.AssertValues(t, true)
}

func TestGuardedConnection_DoubleDisposePanics(t *testing.T) {
	conn := testutil.NewRecordingConnection[bool]()
	g := guardConnection[bool](conn)

	g.Dispose()
	assert.Panics(t, g.Dispose)
	assert.Equal(t, 1, conn.DisposeCount(), "delegate disposed exactly once")
}

func TestConnectionFuncs(t *testing.T) {
	var got []int
	disposed := false
	c := ConnectionFuncs[int]{
		OnAccept:  func(v int) { got = append(got, v) },
		OnDispose: func() { disposed = true },
	}

	c.Accept(1)
	c.Accept(2)
	c.Dispose()

	assert.Equal(t, []int{1, 2}, got)
	assert.True(t, disposed)

	assert.NotPanics(t, ConnectionFuncs[int]{OnAccept: func(int) {}}.Dispose)
}
