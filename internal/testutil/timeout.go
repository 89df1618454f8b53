package testutil

import (
	"context"
	"testing"
	"time"
)

const (
	// DefaultWait bounds how long tests wait for asynchronous loop output.
	DefaultWait = 2 * time.Second

	// DefaultTestBuffer is subtracted from the test deadline to leave time
	// for cleanup.
	DefaultTestBuffer = time.Second
)

// ContextWithTestDeadline creates a context that respects the test's deadline,
// minus DefaultTestBuffer. If the test has no deadline, fallback is used.
// The context is cancelled when the test ends.
func ContextWithTestDeadline(t testing.TB, fallback time.Duration) context.Context {
	t.Helper()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)

	if d, ok := t.(interface{ Deadline() (time.Time, bool) }); ok {
		if deadline, ok := d.Deadline(); ok {
			adjusted := deadline.Add(-DefaultTestBuffer)
			if time.Until(adjusted) > 0 {
				ctx, cancel = context.WithDeadline(context.Background(), adjusted)
			}
		}
	}

	if ctx == nil {
		ctx, cancel = context.WithTimeout(context.Background(), fallback)
	}

	t.Cleanup(cancel)
	return ctx
}
