package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cycle/internal/harness"
)

// FileError is a scenario file that failed validation.
type FileError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool        `json:"valid"`
	Files  []string    `json:"files"`
	Errors []FileError `json:"errors,omitempty"`
}

// WriteText prints one line per file.
func (r ValidationResult) WriteText(w io.Writer) {
	failed := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		failed[e.File] = e.Message
	}
	for _, f := range r.Files {
		if msg, ok := failed[f]; ok {
			fmt.Fprintf(w, "✗ %s\n  %s\n", f, msg)
		} else {
			fmt.Fprintf(w, "✓ %s\n", f)
		}
	}
	fmt.Fprintf(w, "\n%d file(s), %d invalid\n", len(r.Files), len(r.Errors))
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate scenario files without running them",
		Long: `Check scenario files against the scenario schema.

<path> is a single scenario file or a directory searched recursively for
.yaml, .yml and .cue files. Unknown fields, unknown programs and values of
the wrong type are reported.

Exit codes:
  0 - All scenario files are valid
  1 - One or more scenario files are invalid
  2 - Command error (path not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	files, err := scenarioPaths(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	formatter.VerboseLog("Found %d scenario file(s) in %s", len(files), path)

	result := ValidationResult{Valid: true, Files: files}
	for _, file := range files {
		if err := harness.ValidateScenario(file); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, FileError{File: file, Message: err.Error()})
		}
	}

	if !result.Valid {
		msg := fmt.Sprintf("%d invalid scenario file(s)", len(result.Errors))
		if err := formatter.Failure(ErrCodeInvalidScenario, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(result)
}

// scenarioPaths expands a directory into its scenario files. A file path is
// returned as is, whatever its extension.
func scenarioPaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	return harness.FindScenarioFiles(path, "")
}
