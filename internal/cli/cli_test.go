package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const appendScenario = `name: greet
description: Appends every event to the start model
program: append
start:
  model: a
events: ["1", "2"]
expect:
  models: [a, a1, a12]
`

const counterScenario = `name: counter_underflow
description: Decrementing at zero emits an underflow effect
program: counter
start:
  model: "1"
events: [dec, dec]
expect:
  models: ["1", "0"]
  effects: [underflow]
`

const failingScenario = `name: wrong_models
description: Expects a model sequence the program never produces
program: append
start:
  model: a
events: ["1"]
expect:
  models: [a, b]
`

const invalidScenario = `name: typo
description: Misspells the events field
program: append
start:
  model: a
event: ["1"]
expect: {}
`

// writeScenario writes content to dir/file and returns its path.
func writeScenario(t *testing.T, dir, file, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
