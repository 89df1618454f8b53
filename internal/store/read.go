package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/cycle/internal/trace"
)

// ReadLoop returns one loop record.
// Returns an error matching ErrNotFound if the loop does not exist.
func (s *Store) ReadLoop(ctx context.Context, id string) (trace.LoopRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, start_model, start_effects, status, error
		FROM loops
		WHERE id = ?
	`, id)

	rec, err := scanLoop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return trace.LoopRecord{}, fmt.Errorf("read loop %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return trace.LoopRecord{}, fmt.Errorf("read loop %s: %w", id, err)
	}
	return rec, nil
}

// ListLoops returns every recorded loop ordered by ID.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListLoops(ctx context.Context) ([]trace.LoopRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_model, start_effects, status, error
		FROM loops
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query loops: %w", err)
	}
	defer rows.Close()

	loops := []trace.LoopRecord{}
	for rows.Next() {
		rec, err := scanLoop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loop: %w", err)
		}
		loops = append(loops, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loops: %w", err)
	}
	return loops, nil
}

// ReadTransitions returns every transition of a loop ordered by seq.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadTransitions(ctx context.Context, loopID string) ([]trace.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT loop_id, seq, event, changed, model, effects
		FROM transitions
		WHERE loop_id = ?
		ORDER BY seq ASC
	`, loopID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	transitions := []trace.TransitionRecord{}
	for rows.Next() {
		var (
			rec     trace.TransitionRecord
			event   string
			model   sql.NullString
			effects string
		)
		if err := rows.Scan(&rec.LoopID, &rec.Seq, &event, &rec.Changed, &model, &effects); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		rec.Event = json.RawMessage(event)
		rec.Effects = json.RawMessage(effects)
		if model.Valid {
			rec.Model = json.RawMessage(model.String)
		}
		transitions = append(transitions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return transitions, nil
}

// rowScanner is implemented by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoop(row rowScanner) (trace.LoopRecord, error) {
	var (
		rec          trace.LoopRecord
		startModel   string
		startEffects string
		status       string
	)
	if err := row.Scan(&rec.ID, &startModel, &startEffects, &status, &rec.Error); err != nil {
		return trace.LoopRecord{}, err
	}
	rec.StartModel = json.RawMessage(startModel)
	rec.StartEffects = json.RawMessage(startEffects)
	rec.Status = trace.Status(status)
	return rec, nil
}
