// Package store provides SQLite-backed durable storage for loop traces.
//
// The store is an append-only log with two tables:
//   - loops: one row per started loop (start model, start effects, status)
//   - transitions: one row per Update call, keyed by (loop_id, seq)
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses the seq INTEGER column (a loop.Clock), never
//     timestamps, so replay is independent of wall time
//   - All transition queries include ORDER BY seq ASC
//
// Idempotent writes:
//   - WriteLoop is ON CONFLICT(id) DO NOTHING
//   - WriteTransition is ON CONFLICT(loop_id, seq) DO NOTHING
//
// Canonical payloads:
//   - model, event and effects columns hold trace.MarshalCanonical output,
//     so identical runs produce identical rows
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: transitions must reference a recorded loop
package store
