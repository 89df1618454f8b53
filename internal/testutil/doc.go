// Package testutil provides recording doubles and deterministic helpers for
// loop tests: a recording effect connection, a recording model observer, a
// fixed loop ID generator and test-scoped timeouts.
package testutil
