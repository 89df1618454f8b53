package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cycle/internal/harness"
	"github.com/roach88/cycle/internal/loop"
	"github.com/roach88/cycle/internal/store"
	"github.com/roach88/cycle/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // optional - record the trace here
}

// RunResult is the output of the run command.
type RunResult struct {
	Scenario    string       `json:"scenario"`
	LoopID      string       `json:"loop_id"`
	Pass        bool         `json:"pass"`
	Status      trace.Status `json:"status,omitempty"`
	Error       string       `json:"error,omitempty"`
	Models      []string     `json:"models"`
	Effects     []string     `json:"effects"`
	Fingerprint string       `json:"fingerprint"`
	Errors      []string     `json:"errors,omitempty"`
}

// WriteText prints the result for humans.
func (r RunResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Scenario:    %s\n", r.Scenario)
	fmt.Fprintf(w, "Loop:        %s\n", r.LoopID)
	if r.Status != "" {
		fmt.Fprintf(w, "Status:      %s\n", r.Status)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", r.Error)
	}
	fmt.Fprintf(w, "Models:      %s\n", quoteAll(r.Models))
	fmt.Fprintf(w, "Effects:     %s\n", quoteAll(r.Effects))
	fmt.Fprintf(w, "Fingerprint: %s\n", r.Fingerprint)

	if r.Pass {
		fmt.Fprintln(w, "✓ passed")
		return
	}
	fmt.Fprintln(w, "✗ failed")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario",
		Long: `Run a single scenario file and print the published models, the
effects handed to the effect handler and the trace fingerprint.

With --db the trace is recorded into a SQLite database that can be
inspected with "cycle trace".

Exit codes:
  0 - Scenario expectations matched
  1 - Scenario failed or is invalid
  2 - Command error (database cannot be opened, etc.)

Examples:
  cycle run ./scenarios/counter.yaml
  cycle run ./scenarios/counter.yaml --db ./cycle.db
  cycle run ./scenarios/counter.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the trace into this SQLite database")

	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		if outErr := formatter.Error(ErrCodeInvalidScenario, err.Error(), path); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "invalid scenario", err)
	}
	formatter.VerboseLog("Loaded scenario %s (program %s)", scenario.Name, scenario.Program)

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = ":memory:"
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	h := harness.New(st,
		harness.WithIDGenerator(loop.UUIDv7Generator{}),
		harness.WithLogger(opts.logger(cmd)),
	)
	result, err := h.Run(cmd.Context(), scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to run scenario %s", scenario.Name), err)
	}

	out, err := newRunResult(scenario.Name, result)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fingerprint trace", err)
	}
	if opts.Database != "" {
		formatter.VerboseLog("Recorded loop %s into %s", result.LoopID, opts.Database)
	}

	if !result.Pass {
		if err := formatter.Failure(ErrCodeScenarioFailed, "scenario failed", out); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return formatter.Success(out)
}

// newRunResult builds the command output. The fingerprint covers the
// snapshot, which leaves out the loop ID, so identical runs share it.
func newRunResult(name string, result *harness.Result) (RunResult, error) {
	fp, err := trace.Fingerprint(harness.Snapshot(name, result))
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{
		Scenario:    name,
		LoopID:      result.LoopID,
		Pass:        result.Pass,
		Status:      result.Status,
		Error:       result.Err,
		Models:      result.Models,
		Effects:     result.Effects,
		Fingerprint: fp,
		Errors:      result.Errors,
	}, nil
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, " ") + "]"
}
