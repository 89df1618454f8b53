// Package trace records the transitions of a running loop.
//
// A Recorder is attached to a loop twice: as its loop.Logger, to capture the
// start model and every Update result, and as an Observer, to capture how the
// loop terminated. Records are written to a Sink; store.Store is the durable
// implementation.
//
// # Canonical Encoding
//
// Models, events and effects are stored as canonical JSON (MarshalCanonical):
// sorted object keys, no HTML escaping, NFC-normalized strings. Two runs of
// the same scenario therefore produce byte-identical traces, which is what
// golden-file tests and Fingerprint rely on.
//
// # Ordering
//
// Transitions carry a logical sequence number from a loop.Clock, starting at
// 1. Readers order by seq, never by wall time.
package trace
