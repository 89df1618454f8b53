package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/cycle/internal/store"
	"github.com/roach88/cycle/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	LoopID   string // optional - show one loop in detail
}

// LoopList is the output of the trace command without --loop.
type LoopList struct {
	Loops []trace.LoopRecord `json:"loops"`
}

// WriteText prints one row per loop.
func (l LoopList) WriteText(w io.Writer) {
	if len(l.Loops) == 0 {
		fmt.Fprintln(w, "No loops recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tERROR")
	for _, rec := range l.Loops {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.ID, rec.Status, rec.Error)
	}
	tw.Flush()
}

// TraceResult is the output of the trace command with --loop.
type TraceResult struct {
	Loop        trace.LoopRecord         `json:"loop"`
	Transitions []trace.TransitionRecord `json:"transitions"`
	Models      []json.RawMessage        `json:"models"`
	Fingerprint string                   `json:"fingerprint"`
}

// WriteText prints the loop header, its transitions and the replayed
// model sequence.
func (r TraceResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Loop %s (%s)\n", r.Loop.ID, r.Loop.Status)
	if r.Loop.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Loop.Error)
	}
	fmt.Fprintf(w, "  start: model=%s effects=%s\n", r.Loop.StartModel, r.Loop.StartEffects)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Transitions (%d):\n", len(r.Transitions))
	for _, t := range r.Transitions {
		model := "unchanged"
		if t.Changed {
			model = "model=" + string(t.Model)
		}
		fmt.Fprintf(w, "  #%d event=%s %s effects=%s\n", t.Seq, t.Event, model, t.Effects)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Models (%d):\n", len(r.Models))
	for _, m := range r.Models {
		fmt.Fprintf(w, "  %s\n", m)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Fingerprint: %s\n", r.Fingerprint)
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded loops",
		Long: `Inspect a trace database written by "cycle run --db".

Without --loop, every recorded loop is listed with its status. With
--loop, the loop's transitions are printed in order together with the
model sequence replayed from them and a fingerprint of the transitions.

Examples:
  cycle trace --db ./cycle.db
  cycle trace --db ./cycle.db --loop 0190f3a2-...
  cycle trace --db ./cycle.db --loop 0190f3a2-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.LoopID, "loop", "", "loop ID to show")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	// store.Open would create a missing database.
	if _, err := os.Stat(opts.Database); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.LoopID == "" {
		loops, err := st.ListLoops(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list loops", err)
		}
		return formatter.Success(LoopList{Loops: loops})
	}

	rec, err := st.ReadLoop(ctx, opts.LoopID)
	if errors.Is(err, store.ErrNotFound) {
		msg := fmt.Sprintf("loop not found: %s", opts.LoopID)
		if err := formatter.Error(ErrCodeLoopNotFound, msg, nil); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read loop", err)
	}
	formatter.VerboseLog("Loop %s status %s", rec.ID, rec.Status)

	transitions, err := st.ReadTransitions(ctx, rec.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transitions", err)
	}
	models, err := st.ReplayModels(ctx, rec.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay models", err)
	}
	fp, err := trace.Fingerprint(transitions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fingerprint transitions", err)
	}

	return formatter.Success(TraceResult{
		Loop:        rec,
		Transitions: transitions,
		Models:      models,
		Fingerprint: fp,
	})
}
