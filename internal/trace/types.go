package trace

import (
	"context"
	"encoding/json"
)

// Status is the recorded lifecycle status of a loop.
type Status string

const (
	StatusRunning  Status = "running"
	StatusDisposed Status = "disposed"
	StatusFailed   Status = "failed"
)

// LoopRecord describes one started loop.
type LoopRecord struct {
	ID           string          `json:"id"`
	StartModel   json.RawMessage `json:"start_model"`
	StartEffects json.RawMessage `json:"start_effects"`
	Status       Status          `json:"status"`
	Error        string          `json:"error,omitempty"`
}

// TransitionRecord is one Update call. Model is nil when the model did not
// change; Effects is always a JSON array.
type TransitionRecord struct {
	LoopID  string          `json:"loop_id"`
	Seq     int64           `json:"seq"`
	Event   json.RawMessage `json:"event"`
	Changed bool            `json:"changed"`
	Model   json.RawMessage `json:"model,omitempty"`
	Effects json.RawMessage `json:"effects"`
}

// Sink persists trace records.
type Sink interface {
	// WriteLoop records a loop start. Writing the same ID twice is a no-op.
	WriteLoop(ctx context.Context, rec LoopRecord) error

	// WriteTransition appends a transition. Writing the same (LoopID, Seq)
	// twice is a no-op.
	WriteTransition(ctx context.Context, rec TransitionRecord) error

	// FinishLoop stores the terminal status of a loop.
	FinishLoop(ctx context.Context, loopID string, status Status, errMsg string) error
}
