package store

import (
	"context"
	"fmt"

	"github.com/roach88/cycle/internal/trace"
)

// WriteLoop inserts a loop record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: a second write with the same
// ID is silently ignored, even if its contents differ.
func (s *Store) WriteLoop(ctx context.Context, rec trace.LoopRecord) error {
	status := rec.Status
	if status == "" {
		status = trace.StatusRunning
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loops (id, start_model, start_effects, status, error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		string(rec.StartModel),
		jsonArray(rec.StartEffects),
		string(status),
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("write loop %s: %w", rec.ID, err)
	}
	return nil
}

// WriteTransition appends a transition.
// Uses ON CONFLICT(loop_id, seq) DO NOTHING for idempotency.
//
// Note: the loop must already be recorded (foreign key constraint).
func (s *Store) WriteTransition(ctx context.Context, rec trace.TransitionRecord) error {
	var model any
	if rec.Changed {
		model = string(rec.Model)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (loop_id, seq, event, changed, model, effects)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(loop_id, seq) DO NOTHING
	`,
		rec.LoopID,
		rec.Seq,
		string(rec.Event),
		rec.Changed,
		model,
		jsonArray(rec.Effects),
	)
	if err != nil {
		return fmt.Errorf("write transition %s/%d: %w", rec.LoopID, rec.Seq, err)
	}
	return nil
}

// FinishLoop sets the terminal status of a loop.
// Returns ErrNotFound if the loop was never recorded.
func (s *Store) FinishLoop(ctx context.Context, loopID string, status trace.Status, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE loops SET status = ?, error = ? WHERE id = ?
	`, string(status), errMsg, loopID)
	if err != nil {
		return fmt.Errorf("finish loop %s: %w", loopID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish loop %s: %w", loopID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish loop %s: %w", loopID, ErrNotFound)
	}
	return nil
}

// jsonArray stores an empty payload as an empty JSON array.
func jsonArray(raw []byte) string {
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}
