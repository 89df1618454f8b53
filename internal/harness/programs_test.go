package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/cycle/internal/testutil"
)

func TestCounterUpdate(t *testing.T) {
	tests := []struct {
		model, event string
		changed      bool
		wantModel    string
		wantEffects  []string
	}{
		{"0", "inc", true, "1", nil},
		{"3", "dec", true, "2", nil},
		{"0", "dec", false, "", []string{"underflow"}},
		{"7", "save", false, "", []string{"checkpoint:7"}},
		{"7", "saved", false, "", nil},
		{"5", "loaded", true, "15", nil},
		{"5", "noop", false, "", nil},
		{"junk", "inc", true, "1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.model+"/"+tt.event, func(t *testing.T) {
			next := counterUpdate(tt.model, tt.event)
			assert.Equal(t, tt.changed, next.HasModel())
			if tt.changed {
				assert.Equal(t, tt.wantModel, next.Model())
			}
			assert.Equal(t, tt.wantEffects, next.Effects())
		})
	}
}

func TestCounterInit(t *testing.T) {
	first := counterInit("")
	assert.Equal(t, "0", first.Model())
	assert.Equal(t, []string{"load"}, first.Effects())

	first = counterInit("4")
	assert.Equal(t, "4", first.Model())
	assert.Empty(t, first.Effects())
}

func TestCounterHandle(t *testing.T) {
	out := &testutil.RecordingConsumer[string]{}

	counterHandle("load", out.Accept)
	counterHandle("checkpoint:3", out.Accept)
	counterHandle("underflow", out.Accept)

	assert.Equal(t, []string{"loaded", "saved"}, out.Values())
}

func TestProgramNames(t *testing.T) {
	assert.Equal(t, []string{"append", "counter"}, ProgramNames())

	p, ok := LookupProgram("append")
	assert.True(t, ok)
	assert.Equal(t, "hi-init", p.Init("hi").Model())

	_, ok = LookupProgram("teapot")
	assert.False(t, ok)
}
