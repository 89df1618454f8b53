// Package harness runs scenario files against real loops.
//
// A scenario names a built-in program, a start configuration, a list of
// events and the expected outcome. The harness starts a loop with a recording
// effect connection, records its trace into SQLite through trace.Recorder,
// and compares the replayed model sequence, the effects that reached the
// connection and the terminal error with the expectations.
//
// # Scenario Format
//
// Scenarios are YAML or CUE files:
//
//	name: counter_checkpoint
//	description: "Init loads, save emits a checkpoint"
//	program: counter
//	start:
//	  model: ""
//	  init: true
//	events: [inc, save, dec]
//	expect:
//	  models: ["0", "10", "11", "10"]
//	  effects: [load, "checkpoint:11"]
//
// Optional fields:
//
//   - start.effects: effects handed to the connection before any event
//     (not allowed together with start.init)
//   - source_error: after all events, the event source fails with this message
//   - expect.error: substring of the terminal or start error, e.g. "CONFIG"
//   - loop_id: fixed loop ID (default "test-loop-default")
//
// Both formats are checked against the embedded CUE schema (schema.cue)
// before they are decoded.
//
// # Determinism
//
// Each event is dispatched only after the loop is idle, so events fed back by
// the effect handler are processed before the next scenario event. Together
// with a fixed loop ID and canonical JSON payloads this makes traces
// byte-identical across runs, which RunWithGolden relies on.
package harness
