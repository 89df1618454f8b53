package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// ReplayModels rebuilds the published model sequence of a recorded loop: the
// start model followed by every changed model in seq order. This is exactly
// what an observer attached at start received.
func (s *Store) ReplayModels(ctx context.Context, loopID string) ([]json.RawMessage, error) {
	start, err := s.ReadLoop(ctx, loopID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model
		FROM transitions
		WHERE loop_id = ? AND changed = 1
		ORDER BY seq ASC
	`, loopID)
	if err != nil {
		return nil, fmt.Errorf("replay: query models: %w", err)
	}
	defer rows.Close()

	models := []json.RawMessage{start.StartModel}
	for rows.Next() {
		var model string
		if err := rows.Scan(&model); err != nil {
			return nil, fmt.Errorf("replay: scan model: %w", err)
		}
		models = append(models, json.RawMessage(model))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("replay: iterate models: %w", err)
	}
	return models, nil
}
