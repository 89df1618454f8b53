package loop

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEffects() Connectable[bool, int] {
	return ConnectableFunc[bool, int](func(Consumer[int]) (Connection[bool], error) {
		return ConnectionFuncs[bool]{OnAccept: func(bool) {}}, nil
	})
}

func TestBuilder_Validate(t *testing.T) {
	tests := []struct {
		name    string
		builder Builder[string, int, bool]
		wantErr string
	}{
		{
			name:    "complete",
			builder: NewBuilder[string, int, bool](appendUpdate, noEffects()),
		},
		{
			name:    "missing update",
			builder: NewBuilder[string, int, bool](nil, noEffects()),
			wantErr: "CONFIG: update function is required",
		},
		{
			name:    "missing effect handler",
			builder: NewBuilder[string, int, bool](appendUpdate, nil),
			wantErr: "CONFIG: effect handler is required",
		},
		{
			name:    "nil event source",
			builder: NewBuilder[string, int, bool](appendUpdate, noEffects()).WithEventSource(nil),
			wantErr: "CONFIG: event source 0 is nil",
		},
		{
			name:    "nil observer",
			builder: NewBuilder[string, int, bool](appendUpdate, noEffects()).WithObserver(nil),
			wantErr: "CONFIG: observer 0 is nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantErr)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestBuilder_StartFromRejectsInvalidConfig(t *testing.T) {
	l, err := NewBuilder[string, int, bool](nil, noEffects()).StartFrom("")
	assert.Nil(t, l)
	assert.True(t, IsConfigError(err))
}

func TestBuilder_WithMethodsReturnCopies(t *testing.T) {
	base := NewBuilder[string, int, bool](appendUpdate, noEffects())

	withInit := base.WithInit(appendInit)
	withSource := base.WithEventSource(ChannelSource[int]{})
	withTwo := withSource.WithEventSource(ChannelSource[int]{})
	withObserver := base.WithObserver(ObserverFuncs[string]{})

	assert.Nil(t, base.init)
	assert.NotNil(t, withInit.init)
	assert.Empty(t, base.sources)
	assert.Len(t, withSource.sources, 1)
	assert.Len(t, withTwo.sources, 2)
	assert.Empty(t, base.watch)
	assert.Len(t, withObserver.watch, 1)
}

func TestBuilder_StartsIndependentLoops(t *testing.T) {
	b := NewBuilder[string, int, bool](appendUpdate, noEffects()).
		WithSlog(discardLog()).
		WithIDGenerator(NewFixedGenerator("a", "b"))

	first, err := b.StartFrom("x")
	require.NoError(t, err)
	defer first.Dispose()

	second, err := b.StartFrom("y")
	require.NoError(t, err)
	defer second.Dispose()

	assert.Equal(t, "a", first.ID())
	assert.Equal(t, "b", second.ID())

	require.NoError(t, first.Dispatch(1))
	require.Eventually(t, func() bool { return first.Model() == "x1" }, wait, time.Millisecond)
	assert.Equal(t, "y", second.Model())
}

func TestBuilder_DefaultIDIsUUIDv7(t *testing.T) {
	l, err := NewBuilder[string, int, bool](appendUpdate, noEffects()).
		WithSlog(discardLog()).
		StartFrom("")
	require.NoError(t, err)
	defer l.Dispose()

	parsed, err := uuid.Parse(l.ID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
