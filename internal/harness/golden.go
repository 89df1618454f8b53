package harness

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cycle/internal/trace"
)

// TraceSnapshot is the golden-file form of a Result. The loop ID is left
// out, and masked as LoopIDPlaceholder in the error, so that snapshots do not
// depend on the ID generator.
type TraceSnapshot struct {
	Scenario    string               `json:"scenario"`
	Status      trace.Status         `json:"status,omitempty"`
	Error       string               `json:"error,omitempty"`
	Models      []string             `json:"models"`
	Effects     []string             `json:"effects"`
	Transitions []SnapshotTransition `json:"transitions"`
}

// LoopIDPlaceholder replaces the loop ID inside snapshot error messages.
const LoopIDPlaceholder = "<loop>"

// SnapshotTransition is a transition without its loop ID.
type SnapshotTransition struct {
	Seq     int64           `json:"seq"`
	Event   json.RawMessage `json:"event"`
	Changed bool            `json:"changed"`
	Model   json.RawMessage `json:"model,omitempty"`
	Effects json.RawMessage `json:"effects"`
}

// Snapshot builds the TraceSnapshot of a result.
func Snapshot(scenarioName string, result *Result) TraceSnapshot {
	s := TraceSnapshot{
		Scenario:    scenarioName,
		Status:      result.Status,
		Error:       maskLoopID(result.Err, result.LoopID),
		Models:      append([]string{}, result.Models...),
		Effects:     append([]string{}, result.Effects...),
		Transitions: make([]SnapshotTransition, len(result.Transitions)),
	}
	for i, t := range result.Transitions {
		s.Transitions[i] = SnapshotTransition{
			Seq:     t.Seq,
			Event:   t.Event,
			Changed: t.Changed,
			Model:   t.Model,
			Effects: t.Effects,
		}
	}
	return s
}

func maskLoopID(msg, id string) string {
	if id == "" {
		return msg
	}
	return strings.ReplaceAll(msg, id, LoopIDPlaceholder)
}

// MarshalSnapshot returns the canonical JSON of a result's snapshot.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	return trace.MarshalCanonical(Snapshot(scenarioName, result))
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario cannot be run. Test failure (via goldie)
// occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
