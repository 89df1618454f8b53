package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommandValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "greet.yaml", appendScenario)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+path)
	assert.Contains(t, out, "1 file(s), 0 invalid")
}

func TestValidateCommandDirectory(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "greet.yaml", appendScenario)
	typo := writeScenario(t, dir, "typo.yaml", invalidScenario)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+typo)
	assert.Contains(t, out, "2 file(s), 1 invalid")
}

func TestValidateCommandJSON(t *testing.T) {
	dir := t.TempDir()
	typo := writeScenario(t, dir, "typo.yaml", invalidScenario)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, typo, resp.Data.Errors[0].File)
	assert.Contains(t, resp.Data.Errors[0].Message, "schema violation")
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidScenario, resp.Error.Code)
}

func TestValidateCommandMissingPath(t *testing.T) {
	_, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
